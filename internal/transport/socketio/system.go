package socketio

import (
	"os"
	"strings"

	"github.com/edumarques81/stellar-playback/internal/version"
)

// SystemInfo describes the running service for the UI's about screen.
type SystemInfo struct {
	ID        string `json:"id"`
	Host      string `json:"host"`
	Name      string `json:"name"`
	Version   string `json:"systemversion"`
	BuildDate string `json:"builddate"`
	Hardware  string `json:"hardware"`
	Clients   int    `json:"clients"`
}

// cpuInfoPath is read for the hardware model.
var cpuInfoPath = "/proc/cpuinfo"

// GetSystemInfo collects host and build details.
func GetSystemInfo(clients int) SystemInfo {
	v := version.GetInfo()
	info := SystemInfo{
		Name:      v.Name,
		Version:   v.Version,
		BuildDate: v.BuildTime,
		Hardware:  "unknown",
		Clients:   clients,
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Host = hostname
		info.ID = hostname
	}

	if data, err := os.ReadFile(cpuInfoPath); err == nil {
		if model := cpuModel(string(data)); model != "" {
			info.Hardware = model
		}
	}
	return info
}

// cpuModel pulls the board model (Raspberry Pi) or CPU name out of cpuinfo text.
func cpuModel(cpuinfo string) string {
	var name string
	for _, line := range strings.Split(cpuinfo, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Model":
			return strings.TrimSpace(val)
		case "model name":
			if name == "" {
				name = strings.TrimSpace(val)
			}
		}
	}
	return name
}
