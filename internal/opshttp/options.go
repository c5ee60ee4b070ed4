package opshttp

import (
	"net/http"

	"github.com/keithlinneman/linnemanlabs-starter/internal/health"
)

type Options struct {
	// Host defaults to all interfaces; requests from public addresses are
	// refused regardless.
	Host        string
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	OnPanic     func() // Optional callback for when panics are recovered, e.g. to increment a prometheus counter
}
