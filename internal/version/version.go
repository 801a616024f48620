package version

import (
	"fmt"
	"runtime/debug"
)

const AppName = "webbuild"

// set via -ldflags "-X .../internal/version.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate string
	BuildId   string
)

type Info struct {
	AppName    string `json:"app"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	CommitDate string `json:"commit_date,omitempty"`
	BuildDate  string `json:"build_date,omitempty"`
	BuildId    string `json:"build_id,omitempty"`
	GoVersion  string `json:"go_version"`
	VCSDirty   *bool  `json:"vcs_dirty,omitempty"`
}

func Get() Info {
	out := Info{
		AppName:   AppName,
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		BuildId:   BuildId,
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
			out.CommitDate = s.Value
			if out.BuildDate == "" {
				out.BuildDate = s.Value
			}
		case "vcs.modified":
			dirty := s.Value == "true"
			out.VCSDirty = &dirty
		}
	}
	return out
}

func (i Info) String() string {
	dirty := "unknown"
	if i.VCSDirty != nil {
		dirty = fmt.Sprint(*i.VCSDirty)
	}
	return fmt.Sprintf("%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%s)",
		i.AppName, i.Version, i.Commit, i.CommitDate, i.BuildId, i.BuildDate, i.GoVersion, dirty)
}
