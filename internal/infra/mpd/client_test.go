package mpd_test

import (
	"testing"

	"github.com/edumarques81/stellar-playback/internal/infra/mpd"
)

// Port 16600 is assumed to have no MPD listening.
const deadPort = 16600

func TestNewClient(t *testing.T) {
	client := mpd.NewClient("localhost", 6600, "")

	if client == nil {
		t.Error("NewClient should return a non-nil client")
	}
}

func TestClientConnectFailure(t *testing.T) {
	client := mpd.NewClient("localhost", deadPort, "")

	err := client.Connect()
	if err == nil {
		t.Error("Connect should fail for non-existent server")
		client.Close()
	}
}

func TestClientPingWithoutConnect(t *testing.T) {
	client := mpd.NewClient("localhost", 6600, "")

	err := client.Ping()
	if err == nil {
		t.Error("Ping should fail when not connected")
	}
}

func TestClientCommandsWithoutServer(t *testing.T) {
	client := mpd.NewClient("localhost", deadPort, "")

	tests := []struct {
		name string
		call func() error
	}{
		{"Status", func() error { _, err := client.Status(); return err }},
		{"Clear", client.Clear},
		{"AddID", func() error { _, err := client.AddID("http://example.com/a.mp3"); return err }},
		{"PlayID", func() error { return client.PlayID(1) }},
		{"Pause", func() error { return client.Pause(true) }},
		{"Stop", client.Stop},
		{"SeekCur", func() error { return client.SeekCur(10) }},
		{"SetVolume", func() error { return client.SetVolume(50) }},
		{"ClearError", client.ClearError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err == nil {
				t.Errorf("%s should fail when MPD is unreachable", tt.name)
			}
		})
	}
}

func TestClientWatchFailure(t *testing.T) {
	client := mpd.NewClient("localhost", deadPort, "")

	if _, err := client.Watch("player"); err == nil {
		t.Error("Watch should fail when MPD is unreachable")
	}
}

func TestClientCloseWithoutConnect(t *testing.T) {
	client := mpd.NewClient("localhost", 6600, "")

	if err := client.Close(); err != nil {
		t.Errorf("Close on unconnected client returned %v", err)
	}
}

var _ mpd.Conn = (*mpd.Client)(nil)
