package engine

import (
	"context"
	"testing"

	"keepsake/internal/config"
	"keepsake/internal/runner"
)

// fakeRunner records specs and replays scripted results.
type fakeRunner struct {
	specs   []runner.Spec
	results []runner.Result
	fn      func(spec runner.Spec) runner.Result
}

func (f *fakeRunner) Run(_ context.Context, spec runner.Spec) runner.Result {
	f.specs = append(f.specs, spec)
	if f.fn != nil {
		return f.fn(spec)
	}
	if len(f.results) > 0 {
		res := f.results[0]
		f.results = f.results[1:]
		return res
	}
	return runner.Result{Success: true}
}

func hasArgPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func hasArg(args []string, want string) bool {
	for _, arg := range args {
		if arg == want {
			return true
		}
	}
	return false
}

func argValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestNewSelectsAdapterByKind(t *testing.T) {
	cfg := config.Default()
	run := &fakeRunner{}

	eng, err := New(&cfg, run, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if eng.Kind() != KindDiff {
		t.Errorf("Kind = %q, want diff", eng.Kind())
	}

	cfg.Engine.Kind = "snapshot"
	eng, err = New(&cfg, run, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if eng.Kind() != KindSnapshot {
		t.Errorf("Kind = %q, want snapshot", eng.Kind())
	}

	cfg.Engine.Kind = "tape"
	if _, err := New(&cfg, run, nil); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNewRequiresRunner(t *testing.T) {
	cfg := config.Default()
	if _, err := New(&cfg, nil, nil); err == nil {
		t.Fatal("expected error for nil runner")
	}
}
