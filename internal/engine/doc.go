// Package engine adapts the two supported backup-engine families to
// one contract.
//
// The diff engine (rdiff-backup) keeps reverse-delta increments and
// operates on directory trees, so single-file backup is expressed as a
// parent-directory backup with an include pattern matching exactly the
// asset. The snapshot engine (restic) addresses content directly and
// takes the file path as-is. Both adapters build argv command lines,
// run them through the runner, and own the parsing rules for their
// engine's output. They are flat strategies selected by configuration;
// there is no shared state beyond the Engine interface.
package engine
