package testsupport

import (
	"context"
	"testing"

	"reframe/internal/config"
	"reframe/internal/registry"
)

// MustOpenStore opens a registry.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *registry.Store {
	t.Helper()

	store, err := registry.Open(cfg)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a queued job record for tests using the provided store.
func NewJob(t testing.TB, store *registry.Store, id, inputLocator string) *registry.Job {
	t.Helper()

	job, err := store.Create(context.Background(), id, inputLocator, "cinematic")
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
