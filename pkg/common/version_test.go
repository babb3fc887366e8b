package common

import (
	"strings"
	"testing"
)

func TestProgramVersion(t *testing.T) {
	v := ProgramVersion{Version: "1.2.0", CommitHash: "abc123", BuildTime: "2024-01-01", GoVersion: "go1.24"}

	if got := v.Short(); got != "v1.2.0-abc123-2024-01-01" {
		t.Errorf("Short() = %q", got)
	}
	for _, want := range []string{"url-dedup v1.2.0", "Commit: abc123", "Go: go1.24"} {
		if !strings.Contains(v.String(), want) {
			t.Errorf("String() missing %q:\n%s", want, v.String())
		}
	}
}

func TestProgramVersionUnknown(t *testing.T) {
	if got := (ProgramVersion{}).Short(); got != "vunknown-unknown-unknown" {
		t.Errorf("Short() = %q", got)
	}
}
