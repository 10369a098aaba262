package repopath

import (
	"path/filepath"
	"testing"
)

func TestResolveAdjacent(t *testing.T) {
	loc, err := New(ModeAdjacent, "", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := loc.Resolve("/vault/scenes/A.blend")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.FromSlash("/vault/scenes/A.blend.keepsake")
	if got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveIsDeterministicAndPure(t *testing.T) {
	loc, err := New(ModeAdjacent, "", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// The path does not exist anywhere; resolution must not care.
	first, err := loc.Resolve("/nowhere/at/all/ghost.psd")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := loc.Resolve("/nowhere/at/all/ghost.psd")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first != second {
		t.Fatalf("resolution not deterministic: %q vs %q", first, second)
	}
}

func TestResolveGlobalMirrorsVaultStructure(t *testing.T) {
	loc, err := New(ModeGlobal, "/backups", "/vault")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := loc.Resolve("/vault/projects/film/A.blend")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.FromSlash("/backups/projects/film/A.blend.keepsake")
	if got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveGlobalOutsideVaultFallsBackToBareName(t *testing.T) {
	loc, err := New(ModeGlobal, "/backups", "/vault")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := loc.Resolve("/elsewhere/loose.psd")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.FromSlash("/backups/loose.psd.keepsake")
	if got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveRejectsEmptyAssetPath(t *testing.T) {
	loc, err := New(ModeAdjacent, "", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := loc.Resolve("   "); err == nil {
		t.Fatal("expected error for empty asset path")
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(Mode("cloud"), "", ""); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestNewGlobalRequiresRoots(t *testing.T) {
	if _, err := New(ModeGlobal, "", "/vault"); err == nil {
		t.Fatal("expected error for missing global root")
	}
	if _, err := New(ModeGlobal, "/backups", ""); err == nil {
		t.Fatal("expected error for missing vault root")
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"adjacent", ModeAdjacent, false},
		{" Global ", ModeGlobal, false},
		{"", "", true},
		{"sideways", "", true},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
