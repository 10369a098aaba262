// Package stats turns engine output into canonical backup statistics.
//
// Both engine families report what happened in free text: rdiff-backup
// writes a session_statistics file with "Key value (N.NN unit)" lines,
// restic prints summary lines on stdout. Parsing is a pure function
// over that text so it stays unit-testable without spawning processes,
// and every pattern lives in patterns.go so engine output drift is a
// one-file change. A pattern miss degrades to a zero field, never an
// error; by the time statistics are read the engine already succeeded.
package stats
