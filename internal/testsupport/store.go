package testsupport

import (
	"testing"

	"lightmapper/internal/batchstore"
	"lightmapper/internal/config"
)

// MustOpenStore opens a batchstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *batchstore.Store {
	t.Helper()

	store, err := batchstore.Open(cfg)
	if err != nil {
		t.Fatalf("batchstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
