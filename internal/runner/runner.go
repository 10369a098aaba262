package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// Spec describes one external process invocation.
type Spec struct {
	Executable string
	Args       []string
	// Dir is the working directory; empty inherits the caller's.
	Dir string
	// Env entries are appended to the current environment.
	Env     []string
	Timeout time.Duration
}

// Result captures everything the engine process reported.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Success mirrors ExitCode == 0. Adapters may reclassify warning
	// exits after inspecting the repository.
	Success bool
	// Err holds a spawn or timeout message; empty for a process that
	// ran to completion, even one that exited nonzero.
	Err string
}

// TimedOut reports whether the process was killed by the Spec timeout.
func (r Result) TimedOut() bool {
	return r.Err == timeoutMessage
}

const timeoutMessage = "timed out"

// Runner spawns engine processes. The zero value is usable.
type Runner struct{}

// New returns a Runner.
func New() *Runner {
	return &Runner{}
}

// Run executes the spec and waits for completion. A nonzero exit code
// is reported through the Result, never as an error; the only Go-level
// failure mode is a nil receiver misuse, so the signature stays plain.
func (r *Runner) Run(ctx context.Context, spec Spec) Result {
	executable := strings.TrimSpace(spec.Executable)
	if executable == "" {
		return Result{ExitCode: -1, Err: "executable path required"}
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := commandContext(ctx, executable, spec.Args...) //nolint:gosec
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	switch {
	case err == nil:
		result.ExitCode = 0
		result.Success = true
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		// The deadline and natural completion can race; if the context
		// expired, the timeout outcome wins and the exit code is moot.
		result.ExitCode = -1
		result.Err = timeoutMessage
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			// Spawn failure: binary missing, permission denied, bad dir.
			result.ExitCode = -1
			result.Err = err.Error()
		}
	}
	return result
}

// CommandLine renders the invocation as a single human-readable string
// for logs and error messages. Arguments containing whitespace are
// double-quoted; on Windows a quoted executable additionally gets the
// PowerShell call-operator prefix so the rendered line stays pasteable.
// Execution itself always passes argv directly and never consults this.
func (s Spec) CommandLine() string {
	var b strings.Builder
	quotedExe := quoteArg(s.Executable)
	if runtime.GOOS == "windows" && quotedExe != s.Executable {
		b.WriteString("& ")
	}
	b.WriteString(quotedExe)
	for _, arg := range s.Args {
		b.WriteByte(' ')
		b.WriteString(quoteArg(arg))
	}
	return b.String()
}

func quoteArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if strings.ContainsAny(arg, " \t") {
		return `"` + arg + `"`
	}
	return arg
}
