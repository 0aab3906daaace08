package duckdb

import (
	"testing"
	"time"
)

func TestRetentionCleanerStopIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	cleaner := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 1})
	if cleaner == nil {
		t.Fatal("expected non-nil retention cleaner")
	}

	cleaner.Stop()
	cleaner.Stop()
}

func TestRetentionCleanerDisabled(t *testing.T) {
	store := newTestStore(t)
	if c := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 0}); c != nil {
		t.Fatal("expected nil cleaner when retention is disabled")
	}
}

func TestRetentionCleanerDeletesExpiredOnStart(t *testing.T) {
	store := newTestStore(t)
	old := testRecord("old-1", "stale", time.Now().Add(-72*time.Hour))
	fresh := testRecord("new-1", "fresh", time.Now())
	insertTestRecords(t, store, old, fresh)

	cleaner := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 2})
	defer cleaner.Stop()

	count, err := store.TotalLogCount()
	if err != nil {
		t.Fatalf("TotalLogCount: %v", err)
	}
	if count != 1 {
		t.Errorf("TotalLogCount = %d, want 1", count)
	}
}
