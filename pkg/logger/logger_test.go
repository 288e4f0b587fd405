package logger

import (
	"fmt"
	"testing"
)

type recorder struct {
	lines []string
}

func (r *recorder) record(level, msg string, keyvals []any) {
	r.lines = append(r.lines, fmt.Sprint(level, " ", msg, " ", keyvals))
}

func (r *recorder) Debug(m string, kv ...any) { r.record("DEBUG", m, kv) }
func (r *recorder) Info(m string, kv ...any) { r.record("INFO", m, kv) }
func (r *recorder) Warn(m string, kv ...any) { r.record("WARN", m, kv) }
func (r *recorder) Error(m string, kv ...any) { r.record("ERROR", m, kv) }
func (r *recorder) Fatal(m string, kv ...any) { r.record("FATAL", m, kv) }

func TestDispatchToAllInstances(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	t.Cleanup(func() { current.Store(nil) })

	Info("hello", "k", 1)
	Warn("careful")

	for _, r := range []*recorder{a, b} {
		if len(r.lines) != 2 {
			t.Fatalf("expected 2 lines, got %d: %v", len(r.lines), r.lines)
		}
		if r.lines[0] != "INFO hello [k 1]" {
			t.Fatalf("unexpected first line %q", r.lines[0])
		}
	}
}

func TestCallsBeforeInitAreDropped(t *testing.T) {
	current.Store(nil)
	// must not panic
	Error("nobody listens")
}
