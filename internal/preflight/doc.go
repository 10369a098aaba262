// Package preflight provides readiness checks for the engine binary
// and the filesystem locations a backup is about to touch.
//
// These checks run in two contexts:
//   - The orchestrator calls RunBackupChecks before invoking the
//     engine, so a doomed run fails fast with a named reason instead
//     of a half-written repository.
//   - The CLI "keepsake doctor" command uses RunAll to display overall
//     installation health.
package preflight
