package integrity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ledgerFileName is the per-asset rename ledger inside the metadata
// directory. It travels with the repository when it is relocated.
const ledgerFileName = "renames.json"

// maxLedgerEntries bounds the ledger; the oldest entries are evicted
// first.
const maxLedgerEntries = 100

// Entry records one rename or move of the tracked asset.
type Entry struct {
	OldPath   string    `json:"oldPath"`
	NewPath   string    `json:"newPath"`
	Timestamp time.Time `json:"timestamp"`
}

func ledgerPath(repoPath string) string {
	return filepath.Join(repoPath, ledgerFileName)
}

// loadLedger reads the ledger for a repository. A missing file is an
// empty ledger, not an error.
func loadLedger(repoPath string) ([]Entry, error) {
	data, err := os.ReadFile(ledgerPath(repoPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rename ledger: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse rename ledger: %w", err)
	}
	return entries, nil
}

// appendEntry adds one entry, evicting the oldest beyond the bound,
// and writes the ledger back. The repository directory is created when
// it does not exist yet so a rename before the first backup still
// leaves a trace.
func appendEntry(repoPath string, entry Entry) error {
	if err := os.MkdirAll(repoPath, 0o755); err != nil {
		return fmt.Errorf("ensure metadata directory: %w", err)
	}
	entries, err := loadLedger(repoPath)
	if err != nil {
		// A corrupt ledger must not block recording new provenance;
		// start over rather than fail the rename.
		entries = nil
	}
	entries = append(entries, entry)
	if len(entries) > maxLedgerEntries {
		entries = entries[len(entries)-maxLedgerEntries:]
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rename ledger: %w", err)
	}
	if err := os.WriteFile(ledgerPath(repoPath), data, 0o644); err != nil {
		return fmt.Errorf("write rename ledger: %w", err)
	}
	return nil
}
