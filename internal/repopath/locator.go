package repopath

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Suffix marks a repository directory as keepsake metadata. An asset
// named A.blend keeps its history in A.blend.keepsake/ so the asset's
// own name and location are never altered.
const Suffix = ".keepsake"

// Mode selects where repositories are rooted.
type Mode string

const (
	// ModeAdjacent places the repository beside the asset.
	ModeAdjacent Mode = "adjacent"
	// ModeGlobal mirrors the vault structure under a central root.
	ModeGlobal Mode = "global"
)

// ParseMode validates a storage-mode string from configuration.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeAdjacent:
		return ModeAdjacent, nil
	case ModeGlobal:
		return ModeGlobal, nil
	default:
		return "", fmt.Errorf("unknown storage mode %q (expected adjacent or global)", value)
	}
}

// Locator computes repository paths for one storage policy.
type Locator struct {
	mode       Mode
	globalRoot string
	vaultRoot  string
}

// New builds a locator. globalRoot and vaultRoot are only consulted in
// global mode.
func New(mode Mode, globalRoot, vaultRoot string) (*Locator, error) {
	switch mode {
	case ModeAdjacent:
	case ModeGlobal:
		if strings.TrimSpace(globalRoot) == "" {
			return nil, errors.New("global storage mode requires a backup root")
		}
		if strings.TrimSpace(vaultRoot) == "" {
			return nil, errors.New("global storage mode requires a vault root")
		}
	default:
		return nil, fmt.Errorf("unknown storage mode %q", mode)
	}
	return &Locator{mode: mode, globalRoot: globalRoot, vaultRoot: vaultRoot}, nil
}

// Mode reports the policy the locator was built with.
func (l *Locator) Mode() Mode {
	return l.mode
}

// Resolve returns the absolute repository path for the asset. It never
// touches the filesystem; existence is the caller's concern.
func (l *Locator) Resolve(assetPath string) (string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(assetPath))
	if cleaned == "" || cleaned == "." {
		return "", errors.New("asset path required")
	}
	name := filepath.Base(cleaned)
	if name == string(filepath.Separator) || name == "." {
		return "", fmt.Errorf("asset path %q has no file name", assetPath)
	}

	switch l.mode {
	case ModeAdjacent:
		repo := filepath.Join(filepath.Dir(cleaned), name+Suffix)
		return ensureAbsolute(repo)
	case ModeGlobal:
		rel, err := filepath.Rel(l.vaultRoot, cleaned)
		if err != nil || strings.HasPrefix(rel, "..") {
			// Assets outside the vault mirror under their bare name.
			rel = name
		}
		repo := filepath.Join(l.globalRoot, filepath.Dir(rel), name+Suffix)
		return ensureAbsolute(repo)
	default:
		return "", fmt.Errorf("unknown storage mode %q", l.mode)
	}
}

func ensureAbsolute(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve repository path %q: %w", path, err)
	}
	if strings.TrimSpace(abs) == "" {
		return "", errors.New("resolved repository path is empty")
	}
	return abs, nil
}
