// Package runner executes external backup-engine binaries and captures
// their outcome without treating a nonzero exit as a Go error.
//
// Engine adapters describe an invocation with a Spec and receive a
// Result carrying stdout, stderr, and the exit code. Spawn failures and
// timeouts are folded into the Result rather than raised, so callers
// can branch on engine exit conventions (rdiff-backup's "completed with
// warnings" exit 1, for example) instead of unwrapping *exec.ExitError.
package runner
