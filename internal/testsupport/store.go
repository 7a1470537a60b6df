package testsupport

import (
	"context"
	"testing"

	"plenary/internal/config"
	"plenary/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustClaim claims a fresh session for tests using the provided store.
func MustClaim(t testing.TB, store *records.Store, sessionID, sourceURL string) *records.Record {
	t.Helper()

	record, outcome, err := store.Claim(context.Background(), sessionID, sourceURL)
	if err != nil {
		t.Fatalf("store.Claim: %v", err)
	}
	if outcome != records.ClaimNew {
		t.Fatalf("expected fresh claim for %s, got outcome %d", sessionID, outcome)
	}
	return record
}
