package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/waypost/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a pending record with minimal required fields.
func createTestRecord(id string, seq int64) ir.MutationRecord {
	return ir.MutationRecord{
		ID:        id,
		Type:      "test.mutation",
		Payload:   []byte(`{"id":"` + id + `"}`),
		State:     ir.StatePending,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, int(seq), 0, time.UTC),
		Seq:       seq,
	}
}

func recordIDs(recs []ir.MutationRecord) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}
