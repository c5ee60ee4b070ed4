package httpmw

import (
	"context"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
)

// spyLogger records With fields and Info/Warn/Error calls.
type spyLogger struct {
	log.Logger
	mu     sync.Mutex
	withs  [][]any
	infos  []spyEntry
	errors []spyEntry
}

type spyEntry struct {
	msg string
	err error
	kv  []any
}

func newSpyLogger() *spyLogger {
	return &spyLogger{Logger: log.Nop()}
}

// With returns self so calls on derived loggers still land here.
func (s *spyLogger) With(kv ...any) log.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withs = append(s.withs, kv)
	return s
}

func (s *spyLogger) Info(_ context.Context, msg string, kv ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos = append(s.infos, spyEntry{msg: msg, kv: kv})
}

func (s *spyLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, spyEntry{msg: msg, err: err, kv: kv})
}

func (s *spyLogger) lastError() (spyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errors) == 0 {
		return spyEntry{}, false
	}
	return s.errors[len(s.errors)-1], true
}

func (s *spyLogger) lastInfo() (spyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.infos) == 0 {
		return spyEntry{}, false
	}
	return s.infos[len(s.infos)-1], true
}

// withField finds key in any With call.
func (s *spyLogger) withField(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kv := range s.withs {
		if v, ok := fieldValue(kv, key); ok {
			return v, true
		}
	}
	return nil, false
}

func fieldValue(kv []any, key string) (any, bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok && k == key {
			return kv[i+1], true
		}
	}
	return nil, false
}

// newRecordingSpan creates a context with a real recording span for testing.
func newRecordingSpan(t *testing.T, name string) (context.Context, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	ctx, _ := tp.Tracer("test").Start(context.Background(), name)
	return ctx, sr
}
