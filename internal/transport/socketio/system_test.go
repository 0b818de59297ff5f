package socketio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edumarques81/stellar-playback/internal/version"
)

func TestCPUModel(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"raspberry pi", "processor\t: 0\nModel\t\t: Raspberry Pi 5 Model B Rev 1.0\n", "Raspberry Pi 5 Model B Rev 1.0"},
		{"x86", "processor\t: 0\nmodel name\t: AMD Ryzen 7\nprocessor\t: 1\nmodel name\t: AMD Ryzen 7\n", "AMD Ryzen 7"},
		{"board wins", "model name\t: ARMv8\nModel\t: Pi 4\n", "Pi 4"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cpuModel(tt.in); got != tt.want {
				t.Errorf("cpuModel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetSystemInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpuinfo")
	if err := os.WriteFile(path, []byte("Model\t: Test Board\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	orig := cpuInfoPath
	cpuInfoPath = path
	t.Cleanup(func() { cpuInfoPath = orig })

	info := GetSystemInfo(3)

	if info.Hardware != "Test Board" || info.Clients != 3 {
		t.Errorf("info = %+v", info)
	}
	if info.Version != version.Version {
		t.Errorf("Version = %q", info.Version)
	}
}
