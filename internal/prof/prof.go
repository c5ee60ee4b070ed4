// Package prof runs optional continuous profiling against a Pyroscope server.
package prof

import (
	"context"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/linnemanlabs-starter/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
	"github.com/keithlinneman/linnemanlabs-starter/internal/version"
	"github.com/keithlinneman/linnemanlabs-starter/internal/xerrors"
)

type Options struct {
	Enabled              bool
	AppName              string
	ServerAddress        string
	AuthToken            string
	TenantID             string
	Tags                 map[string]string
	ProfileMutexFraction int
	BlockProfileRate     int
}

// OptionsFromConfig tags profiles with the environment and build so
// flamegraphs can be compared across releases.
func OptionsFromConfig(c cfg.App, vi version.Info) Options {
	return Options{
		Enabled:       c.EnablePyroscope,
		AppName:       vi.App,
		ServerAddress: c.PyroServer,
		TenantID:      c.PyroTenantID,
		Tags: map[string]string{
			"env":     string(c.Env),
			"version": vi.Version,
			"commit":  shortCommit(vi.Commit),
		},
		ProfileMutexFraction: 5,
		BlockProfileRate:     10_000,
	}
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}

// Start begins profiling. The returned stop is always non-nil and safe to
// call more than once, even when err != nil.
func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx)

	if !opts.Enabled {
		L.Info(ctx, "pyroscope disabled")
		return func() {}, nil
	}

	if opts.ServerAddress == "" {
		err := xerrors.Newf("invalid server address (%q)", opts.ServerAddress)
		L.Error(ctx, err, "pyroscope options")
		return func() {}, err
	}
	if opts.AppName == "" {
		opts.AppName = version.AppName
	}

	if opts.ProfileMutexFraction > 0 {
		runtime.SetMutexProfileFraction(opts.ProfileMutexFraction)
	}
	if opts.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockProfileRate)
	}
	pc := pyroscope.Config{
		ApplicationName: opts.AppName,
		ServerAddress:   opts.ServerAddress,
		AuthToken:       opts.AuthToken,
		TenantID:        opts.TenantID,
		Tags:            opts.Tags,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		},
	}

	profiler, err := pyroscope.Start(pc)
	if err != nil {
		err = xerrors.Wrapf(err, "pyroscope start (server %s)", opts.ServerAddress)
		L.Error(ctx, err, "pyroscope start failed",
			"server_address", opts.ServerAddress,
			"app_name", opts.AppName,
		)
		return func() {}, err
	}

	L.Info(ctx, "pyroscope started",
		"server_address", opts.ServerAddress,
		"app_name", opts.AppName,
	)

	var once sync.Once
	return func() {
		once.Do(func() {
			profiler.Stop()
			L.Info(context.Background(), "pyroscope stopped",
				"server_address", opts.ServerAddress,
				"app_name", opts.AppName,
			)
		})
	}, nil
}
