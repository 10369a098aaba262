package testsupport

import (
	"testing"

	"keepsake/internal/config"
	"keepsake/internal/versions"
)

// MustOpenStore opens a versions.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *versions.Store {
	t.Helper()

	store, err := versions.Open(cfg, nil)
	if err != nil {
		t.Fatalf("versions.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
