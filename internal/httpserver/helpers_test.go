package httpserver

import (
	"context"
	"sync"

	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
)

// spyLogger records messages and key/values; With returns the same spy so
// request-scoped loggers land in one place.
type spyLogger struct {
	mu      sync.Mutex
	entries []spyEntry
}

type spyEntry struct {
	level string
	msg   string
	err   error
	kv    []any
}

func (s *spyLogger) With(...any) log.Logger { return s }
func (s *spyLogger) Sync() error            { return nil }

func (s *spyLogger) Debug(_ context.Context, msg string, kv ...any) { s.record("debug", msg, nil, kv) }
func (s *spyLogger) Info(_ context.Context, msg string, kv ...any)  { s.record("info", msg, nil, kv) }
func (s *spyLogger) Warn(_ context.Context, msg string, kv ...any)  { s.record("warn", msg, nil, kv) }
func (s *spyLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	s.record("error", msg, err, kv)
}

func (s *spyLogger) record(level, msg string, err error, kv []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, spyEntry{level: level, msg: msg, err: err, kv: kv})
}

// infoField returns the value of key on the first info entry with msg.
func (s *spyLogger) infoField(msg, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.level != "info" || e.msg != msg {
			continue
		}
		for i := 0; i+1 < len(e.kv); i += 2 {
			if e.kv[i] == key {
				return e.kv[i+1], true
			}
		}
	}
	return nil, false
}

// count returns how many entries were logged at level.
func (s *spyLogger) count(level string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.level == level {
			n++
		}
	}
	return n
}
