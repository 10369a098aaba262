// Package deps reports on the external binaries keepsake shells out
// to. Only the configured engine's binary is required; the other
// engine family is listed as optional so doctor output shows the full
// picture.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"keepsake/internal/config"
)

// Requirement defines an external dependency keepsake relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// EngineRequirements lists the engine binaries for the given config.
// The active engine is mandatory, the inactive family optional.
func EngineRequirements(cfg *config.Config) []Requirement {
	diff := Requirement{
		Name:        "rdiff-backup",
		Command:     cfg.Engine.DiffBinary,
		Description: "Diff engine for incremental reverse-delta backups",
	}
	snapshot := Requirement{
		Name:        "restic",
		Command:     cfg.Engine.SnapshotBinary,
		Description: "Snapshot engine for content-addressed backups",
	}
	if cfg.Engine.Kind == "snapshot" {
		diff.Optional = true
	} else {
		snapshot.Optional = true
	}
	return []Requirement{diff, snapshot}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
