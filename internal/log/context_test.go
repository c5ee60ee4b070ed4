package log

import (
	"context"
	"testing"
)

func TestWithContext_RoundTrip(t *testing.T) {
	l := &slogLogger{}
	ctx := WithContext(context.Background(), l)

	if got := FromContext(ctx); got != l {
		t.Fatal("FromContext returned a different logger than what was stored")
	}
}

func TestFromContext_EmptyContext_ReturnsNop(t *testing.T) {
	got := FromContext(context.Background())
	if _, ok := got.(nopLogger); !ok {
		t.Fatalf("FromContext on empty context = %T, want nopLogger", got)
	}
	got.Info(context.Background(), "safe")
}

func TestFromContext_NilContext(t *testing.T) {
	got := FromContext(nil)
	if got == nil {
		t.Fatal("FromContext(nil) returned nil")
	}
}

func TestFromContext_NilLoggerStored(t *testing.T) {
	ctx := WithContext(context.Background(), nil)
	if FromContext(ctx) == nil {
		t.Fatal("FromContext should fall back to Nop when nil was stored")
	}
}

func TestWithContext_ChildOverridesParent(t *testing.T) {
	parent := &slogLogger{}
	child := &slogLogger{}
	ctx := WithContext(context.Background(), parent)
	ctx = WithContext(ctx, child)

	if FromContext(ctx) != child {
		t.Fatal("inner WithContext should shadow outer logger")
	}
}
