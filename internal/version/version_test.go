package version_test

import (
	"strings"
	"testing"

	v "github.com/keithlinneman/linnemanlabs-starter/internal/version"
)

func TestGet_App(t *testing.T) {
	if got := v.Get().App; got != v.AppName {
		t.Fatalf("App = %q, want %q", got, v.AppName)
	}
}

func TestVCSDirtyTriState(t *testing.T) {
	// test binaries carry no vcs settings, so the stamped value wins
	t.Cleanup(func() { v.VCSDirty = nil })

	v.VCSDirty = nil
	if info := v.Get(); info.VCSDirty != nil {
		t.Fatalf("VCSDirty = %v, want nil", *info.VCSDirty)
	}

	trueVal := true
	v.VCSDirty = &trueVal
	if info := v.Get(); info.VCSDirty == nil || !*info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want true", info.VCSDirty)
	}

	falseVal := false
	v.VCSDirty = &falseVal
	if info := v.Get(); info.VCSDirty == nil || *info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want false", info.VCSDirty)
	}
}

func TestInfoString(t *testing.T) {
	dirty := true
	info := v.Info{
		App:       "starter",
		Version:   "1.2.3",
		Commit:    "0123456789abcdef0123",
		BuildDate: "2026-01-02T03:04:05Z",
		GoVersion: "go1.24.11",
		VCSDirty:  &dirty,
	}
	got := info.String()
	want := "starter 1.2.3 (commit 0123456789ab, built 2026-01-02T03:04:05Z, dirty, go1.24.11)"
	if got != want {
		t.Fatalf("String() = %q\nwant       %q", got, want)
	}

	short := v.Info{App: "starter", Version: "dev", Commit: "none"}.String()
	if !strings.HasPrefix(short, "starter dev (commit none") {
		t.Fatalf("String() = %q", short)
	}
}
