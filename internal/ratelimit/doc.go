// Package ratelimit holds the admission controls that sit in front of the
// router.
//
// Admission is the bounded buffer: a fixed number of requests may wait for a
// FixedWindow slot, and anything beyond that is shed immediately with 503.
// FixedWindow admits at most N requests per window across all clients.
// ClientLimiter is an optional per-client token bucket for abuse control.
//
// Everything here is in-memory and per process. It does not coordinate
// across instances and does not protect against distributed floods; it
// keeps a single instance from exhausting goroutines and memory.
package ratelimit
