// Package version provides build information for the playback service.
package version

import (
	"fmt"
	"strings"
)

// Set at build time with -ldflags.
var (
	Name      = "Stellar Playback"
	Version   = "0.1.0"
	BuildTime = ""
	GitCommit = ""
)

// Info is served on /api/v1/version and printed by `stellar version`.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"buildTime,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
}

// GetInfo returns the current build information.
func GetInfo() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}
}

// String formats the info for logs and the CLI.
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", i.GitCommit[:min(7, len(i.GitCommit))])
	}
	if i.BuildTime != "" {
		s += fmt.Sprintf(" built %s", i.BuildTime)
	}
	return s
}

// UserAgent is sent on every outbound API request.
func UserAgent() string {
	return strings.ReplaceAll(Name, " ", "-") + "/" + Version
}
