package common

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// PV is the current version object of the program
	PV ProgramVersion
	// Version is the current version of the program, set with -ldflags
	Version string
	// CommitHash is the current commit hash of the program, set with -ldflags
	CommitHash string
	// BuildTime is the current build time of the program, set with -ldflags
	BuildTime string
)

func init() {
	PV = ProgramVersion{
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
	}
	PV.fillFromBuildInfo()
}

// ProgramVersion is the version object of the program
type ProgramVersion struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
}

// fillFromBuildInfo fills fields not set at link time from the module build info
func (v *ProgramVersion) fillFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v.Version = strings.TrimPrefix(info.Main.Version, "v")
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if v.CommitHash == "" {
				v.CommitHash = s.Value
			}
		case "vcs.time":
			if v.BuildTime == "" {
				v.BuildTime = s.Value
			}
		}
	}
}

// Short returns the short version of the program
func (v ProgramVersion) Short() string {
	return fmt.Sprintf("v%s-%s-%s", orUnknown(v.Version), orUnknown(v.CommitHash), orUnknown(v.BuildTime))
}

// String returns the verbose version of the program
func (v ProgramVersion) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "url-dedup v%s\n", orUnknown(v.Version))
	fmt.Fprintf(&b, "Commit: %s\n", orUnknown(v.CommitHash))
	fmt.Fprintf(&b, "Build Date: %s\n", orUnknown(v.BuildTime))
	fmt.Fprintf(&b, "Go: %s", v.GoVersion)
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
