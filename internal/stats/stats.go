package stats

import (
	"bufio"
	"strconv"
	"strings"
)

// EngineKind identifies which output dialect to parse.
type EngineKind string

const (
	EngineDiff     EngineKind = "diff"
	EngineSnapshot EngineKind = "snapshot"
)

// Statistics is the canonical result of one backup, in bytes and
// seconds regardless of how the engine chose to render sizes.
type Statistics struct {
	ChangedFiles                int64
	ChangedSourceSizeBytes      float64
	IncrementSizeBytes          float64
	TotalDestinationChangeBytes float64
	ElapsedSeconds              float64

	// Derived; nil when the changed source size is zero or unknown.
	CompressionRatioPercent *float64
	SpaceSavingsPercent     *float64
}

// Parse extracts statistics from raw engine output or a statistics
// artifact. Unrecognized content degrades to zero fields.
func Parse(kind EngineKind, raw string) Statistics {
	var s Statistics
	switch kind {
	case EngineSnapshot:
		s = parseSnapshot(raw)
	default:
		s = parseDiff(raw)
	}
	s.derive()
	return s
}

func (s *Statistics) derive() {
	if s.ChangedSourceSizeBytes <= 0 {
		return
	}
	ratio := s.IncrementSizeBytes / s.ChangedSourceSizeBytes * 100
	savings := 100 - ratio
	s.CompressionRatioPercent = &ratio
	s.SpaceSavingsPercent = &savings
}

// sizeField is one parsed "raw (display unit)" size entry. Display
// holds the rounded value exactly as the engine printed it.
type sizeField struct {
	RawBytes float64
	Display  float64
	Unit     string
}

// Bytes prefers the raw byte count and falls back to converting the
// display value when the artifact only carried the rounded form.
func (f sizeField) Bytes() float64 {
	if f.RawBytes > 0 {
		return f.RawBytes
	}
	return convertSize(f.Display, f.Unit)
}

func parseDiff(raw string) Statistics {
	var s Statistics
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		match := diffFieldPattern.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if match == nil {
			continue
		}
		key := match[1]
		value, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}
		field := sizeField{RawBytes: value, Unit: match[4]}
		if match[3] != "" {
			if display, err := strconv.ParseFloat(match[3], 64); err == nil {
				field.Display = display
			}
		}

		switch key {
		case diffKeyChangedFiles:
			s.ChangedFiles = int64(value)
		case diffKeyChangedSource:
			s.ChangedSourceSizeBytes = field.Bytes()
		case diffKeyIncrementSize:
			s.IncrementSizeBytes = field.Bytes()
		case diffKeyDestinationDelta:
			s.TotalDestinationChangeBytes = field.Bytes()
		case diffKeyElapsed:
			s.ElapsedSeconds = value
		}
	}
	return s
}

func parseSnapshot(raw string) Statistics {
	var s Statistics

	if match := snapshotFilesPattern.FindStringSubmatch(raw); match != nil {
		added, _ := strconv.ParseInt(match[1], 10, 64)
		changed, _ := strconv.ParseInt(match[2], 10, 64)
		s.ChangedFiles = added + changed
	}

	if match := snapshotAddedPattern.FindStringSubmatch(raw); match != nil {
		value, err := strconv.ParseFloat(match[1], 64)
		if err == nil {
			bytes := convertSize(value, match[2])
			s.IncrementSizeBytes = bytes
			s.TotalDestinationChangeBytes = bytes
		}
	}

	if match := snapshotProcessedPattern.FindStringSubmatch(raw); match != nil {
		if value, err := strconv.ParseFloat(match[2], 64); err == nil {
			s.ChangedSourceSizeBytes = convertSize(value, match[3])
		}
		minutes, _ := strconv.ParseFloat(match[4], 64)
		seconds, _ := strconv.ParseFloat(match[5], 64)
		s.ElapsedSeconds = minutes*60 + seconds
	}

	return s
}

func convertSize(value float64, unit string) float64 {
	multiplier, ok := sizeMultipliers[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		multiplier = 1
	}
	return value * multiplier
}
