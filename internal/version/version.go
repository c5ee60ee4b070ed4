// Package version exposes build metadata stamped in via -ldflags, falling back
// to the VCS settings the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime/debug"
)

// AppName is the service name used for logs, traces, and profiles.
const AppName = "starter"

var (
	Version    = "dev"
	Commit     = "none"
	CommitDate string
	BuildDate  string
	BuildId    string
	GoVersion  string
	VCSDirty   *bool
)

type Info struct {
	App        string `json:"app"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	CommitDate string `json:"commit_date"`
	BuildDate  string `json:"build_date"`
	BuildId    string `json:"build_id"`
	GoVersion  string `json:"go_version"`
	VCSDirty   *bool  `json:"vcs_dirty,omitempty"`
}

// String is the one-line form printed by -V.
func (i Info) String() string {
	s := fmt.Sprintf("%s %s (commit %s", i.App, i.Version, shortCommit(i.Commit))
	if i.BuildDate != "" {
		s += ", built " + i.BuildDate
	}
	if i.VCSDirty != nil && *i.VCSDirty {
		s += ", dirty"
	}
	if i.GoVersion != "" {
		s += ", " + i.GoVersion
	}
	return s + ")"
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}

func Get() Info {
	out := Info{
		App:        AppName,
		Version:    Version,
		Commit:     Commit,
		CommitDate: CommitDate,
		BuildDate:  BuildDate,
		BuildId:    BuildId,
		GoVersion:  GoVersion,
		VCSDirty:   VCSDirty,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	out.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if out.Commit == "none" && s.Value != "" {
				out.Commit = s.Value
			}
		case "vcs.time":
			if out.BuildDate == "" && s.Value != "" {
				out.BuildDate = s.Value
			}
			if out.CommitDate == "" {
				out.CommitDate = s.Value
			}
		case "vcs.modified":
			if b, err := parseBool(s.Value); err == nil {
				out.VCSDirty = &b
			}
		}
	}
	return out
}

func parseBool(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("not a bool: %q", s)
}
