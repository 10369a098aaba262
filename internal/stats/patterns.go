package stats

import "regexp"

// Diff-engine session statistics use "Key value (display unit)" lines,
// e.g. "ChangedSourceSize 12345 (12.06 KB)". The raw value is bytes
// (or seconds for ElapsedTime); the parenthesized pair is the rounded
// display form.
var diffFieldPattern = regexp.MustCompile(`^(\w+)\s+([\d.]+)(?:\s+\(([\d.]+)\s+(\w+)\))?`)

// Recognized diff-engine keys. Anything else is ignored so newer
// engine versions with extra counters keep parsing.
const (
	diffKeyChangedFiles     = "ChangedFiles"
	diffKeyChangedSource    = "ChangedSourceSize"
	diffKeyIncrementSize    = "IncrementFileSize"
	diffKeyDestinationDelta = "TotalDestinationSizeChange"
	diffKeyElapsed          = "ElapsedTime"
)

// Snapshot-engine summary lines, scraped from live backup output.
var (
	// "Files:           1 new,     2 changed,    10 unmodified"
	snapshotFilesPattern = regexp.MustCompile(`Files:\s+(\d+)\s+new,\s+(\d+)\s+changed,\s+(\d+)\s+unmodified`)

	// "Added to the repository: 1.331 MiB (367.652 KiB stored)"
	// Older engine releases print "Added to the repo:".
	snapshotAddedPattern = regexp.MustCompile(`Added to the repo(?:sitory)?:\s+([\d.]+)\s+(\w+)`)

	// "processed 3 files, 24.776 MiB in 0:01"
	snapshotProcessedPattern = regexp.MustCompile(`processed\s+(\d+)\s+files?,\s+([\d.]+)\s+(\w+)\s+in\s+(\d+):(\d+)`)
)

// sizeMultipliers maps engine size units to bytes. Both engines use
// binary multipliers even when they spell the unit "KB".
var sizeMultipliers = map[string]float64{
	"b":     1,
	"byte":  1,
	"bytes": 1,
	"kb":    1024,
	"kib":   1024,
	"mb":    1024 * 1024,
	"mib":   1024 * 1024,
	"gb":    1024 * 1024 * 1024,
	"gib":   1024 * 1024 * 1024,
	"tb":    1024 * 1024 * 1024 * 1024,
	"tib":   1024 * 1024 * 1024 * 1024,
}
