package prof

import (
	"context"
	"strings"
	"testing"

	"github.com/keithlinneman/linnemanlabs-starter/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
	"github.com/keithlinneman/linnemanlabs-starter/internal/version"
)

// Disabled path

func TestStart_Disabled(t *testing.T) {
	// Even with nonsense values, disabled should succeed
	stop, err := Start(context.Background(), Options{
		Enabled:              false,
		AuthToken:            "secret",
		TenantID:             "tenant",
		Tags:                 map[string]string{"k": "v"},
		ProfileMutexFraction: 999,
		BlockProfileRate:     999,
	})
	if err != nil {
		t.Fatalf("disabled should never error, got: %v", err)
	}
	if stop == nil {
		t.Fatal("stop func is nil")
	}
	stop()
	stop() // safe to call multiple times
}

func TestStart_Disabled_WithContextLogger(t *testing.T) {
	ctx := log.WithContext(context.Background(), log.Nop())
	stop, err := Start(ctx, Options{Enabled: false})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}

// Enabled - invalid address

func TestStart_Enabled_EmptyServerAddress(t *testing.T) {
	stop, err := Start(context.Background(), Options{
		Enabled:       true,
		AppName:       "myapp",
		ServerAddress: "",
		TenantID:      "tenant456",
	})

	if err == nil {
		t.Fatal("expected error for empty address")
	}
	if !strings.Contains(err.Error(), "invalid server address") {
		t.Fatalf("error = %q, want mention of invalid server address", err.Error())
	}
	// error is always accompanied by a usable stop func
	if stop == nil {
		t.Fatal("stop must be non-nil even on error")
	}
	stop()
	stop()
}

func TestStart_Enabled_UnreachableServer(t *testing.T) {
	// pyroscope uploads in the background, so an unreachable server may or
	// may not fail Start. Either way stop must be callable.
	stop, _ := Start(context.Background(), Options{
		Enabled:       true,
		ServerAddress: "http://localhost:0/nonexistent",
	})
	if stop == nil {
		t.Fatal("stop func should always be non-nil")
	}
	stop()
	stop()
}

// OptionsFromConfig

func TestOptionsFromConfig(t *testing.T) {
	c := cfg.App{
		Env:             cfg.EnvTesting,
		EnablePyroscope: true,
		PyroServer:      "https://pyro.example.com",
		PyroTenantID:    "team-a",
	}
	vi := version.Info{App: "starter", Version: "1.2.3", Commit: "0123456789abcdef"}

	o := OptionsFromConfig(c, vi)

	if !o.Enabled || o.ServerAddress != "https://pyro.example.com" || o.TenantID != "team-a" {
		t.Fatalf("server fields not copied: %+v", o)
	}
	if o.AppName != "starter" {
		t.Fatalf("AppName = %q, want starter", o.AppName)
	}
	want := map[string]string{"env": "testing", "version": "1.2.3", "commit": "0123456789ab"}
	for k, v := range want {
		if o.Tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, o.Tags[k], v)
		}
	}
}
