package log

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

type hasPC interface {
	PC() uintptr
}

type hasStack interface {
	StackPCs() []uintptr
}

func callerStack(skip int) []uintptr {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip, pcs)
	return pcs[:n]
}

// internalFrame reports frames that belong to logging/error plumbing rather than callers.
func internalFrame(fn string) bool {
	return strings.HasPrefix(fn, "log/slog.") ||
		strings.Contains(fn, "/internal/log.(") ||
		strings.Contains(fn, "/internal/xerrors.")
}

// renderPCs formats frames as "func\n\tfile:line", starting at the first
// caller frame and stopping at the runtime.
func renderPCs(pcs []uintptr) string {
	if len(pcs) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs)
	var b strings.Builder
	started := false
	for {
		fr, more := frames.Next()
		if strings.HasPrefix(fr.Function, "runtime.") {
			break
		}
		if !started && !internalFrame(fr.Function) {
			started = true
		}
		if started {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", fr.Function, fr.File, fr.Line)
		}
		if !more {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func errorChain(err error) []string {
	out := make([]string, 0, 8)
	var prev string
	for e := err; e != nil; e = errors.Unwrap(e) {
		if msg := e.Error(); msg != prev {
			out = append(out, msg)
			prev = msg
		}
	}

	// errors.Join and friends
	if m, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range m.Unwrap() {
			if s := e.Error(); s != prev {
				out = append(out, s)
				prev = s
			}
		}
	}
	return out
}

func chainLinks(err error, max int) []map[string]any {
	links := make([]map[string]any, 0, 8)
	depth := 0
	for e := err; e != nil && (max <= 0 || depth < max); e = errors.Unwrap(e) {
		link := map[string]any{"msg": e.Error()}
		fn, file, line, ok := errorFrame(e)
		if ok {
			link["func"], link["file"], link["line"] = fn, file, line
		}
		if depth == 0 || ok {
			links = append(links, link)
		}
		depth++
	}
	return links
}

// errorFrame locates where e was created: a single PC from Wrap/New, or the
// first caller frame of a captured stack.
func errorFrame(e error) (fn, file string, line int, ok bool) {
	if hp, isPC := e.(hasPC); isPC {
		if pc := hp.PC(); pc != 0 {
			fr, _ := runtime.CallersFrames([]uintptr{pc}).Next()
			return fr.Function, fr.File, fr.Line, true
		}
		return "", "", 0, false
	}
	hs, isStack := e.(hasStack)
	if !isStack || len(hs.StackPCs()) == 0 {
		return "", "", 0, false
	}
	frames := runtime.CallersFrames(hs.StackPCs())
	for {
		fr, more := frames.Next()
		if !strings.HasPrefix(fr.Function, "runtime.") && !internalFrame(fr.Function) {
			return fr.Function, fr.File, fr.Line, true
		}
		if !more {
			return "", "", 0, false
		}
	}
}

// classifyTypes returns the first non-wrapper type in the chain and the root cause type.
func classifyTypes(err error) (surface, root string) {
	if err == nil {
		return "", ""
	}

	var last error
	for e := err; e != nil; e = errors.Unwrap(e) {
		last = e
		if surface != "" {
			continue
		}
		t := reflect.TypeOf(e)
		u := t
		for u.Kind() == reflect.Ptr {
			u = u.Elem()
		}
		if strings.Contains(u.PkgPath(), "/internal/xerrors") {
			continue
		}
		if u.PkgPath() == "fmt" && u.Name() == "wrapError" {
			continue
		}
		surface = t.String()
	}
	if surface == "" {
		surface = fmt.Sprintf("%T", err)
	}
	return surface, fmt.Sprintf("%T", last)
}
