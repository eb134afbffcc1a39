package logger

import (
	"testing"
)

type recordingInstance struct {
	lines []string
}

func (r *recordingInstance) record(level, message string) {
	r.lines = append(r.lines, level+" "+message)
}

func (r *recordingInstance) Log(message string, keyvals ...any)   { r.record("LOG", message) }
func (r *recordingInstance) Debug(message string, keyvals ...any) { r.record("DEBUG", message) }
func (r *recordingInstance) Info(message string, keyvals ...any)  { r.record("INFO", message) }
func (r *recordingInstance) Warn(message string, keyvals ...any)  { r.record("WARN", message) }
func (r *recordingInstance) Error(message string, keyvals ...any) { r.record("ERROR", message) }
func (r *recordingInstance) Fatal(message string, keyvals ...any) { r.record("FATAL", message) }

func TestDispatchToAllInstances(t *testing.T) {
	a := &recordingInstance{}
	b := &recordingInstance{}
	Init(a, b)
	t.Cleanup(func() { Init() })

	Info("hello", "k", 1)
	Warn("careful")

	for _, inst := range []*recordingInstance{a, b} {
		if len(inst.lines) != 2 {
			t.Fatalf("expected 2 lines, got %v", inst.lines)
		}
		if inst.lines[0] != "INFO hello" || inst.lines[1] != "WARN careful" {
			t.Fatalf("unexpected lines %v", inst.lines)
		}
	}
}

func TestNoInstancesIsNoop(t *testing.T) {
	Init()
	Info("nobody listens")
	Error("still nobody")
}
