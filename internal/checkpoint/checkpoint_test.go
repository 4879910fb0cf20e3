package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/voicemetrics/vaac-pipeline/internal/schema"
)

func TestMemoryStoreGetAbsent(t *testing.T) {
	store := NewMemoryStore()
	cp, err := store.Get(context.Background(), "input-1", schema.ReportCallQueue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cp != nil {
		t.Fatalf("expected nil checkpoint, got %+v", cp)
	}
}

func TestMemoryStoreCommitAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	watermark := time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)

	if err := store.Commit(ctx, "input-1", schema.ReportCallQueue, watermark, 42); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	cp, err := store.Get(ctx, "input-1", schema.ReportCallQueue)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if cp == nil {
		t.Fatal("expected checkpoint, got nil")
	}
	if !cp.LastDatetime.Equal(watermark) || cp.ProcessedRecords != 42 {
		t.Errorf("checkpoint = %+v", cp)
	}
	if cp.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestMemoryStoreWatermarkMonotonic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	later := time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	if err := store.Commit(ctx, "input-1", schema.ReportCallQueue, later, 10); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	// A stale run re-committing an older watermark must not regress it.
	if err := store.Commit(ctx, "input-1", schema.ReportCallQueue, earlier, 0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	cp, _ := store.Get(ctx, "input-1", schema.ReportCallQueue)
	if !cp.LastDatetime.Equal(later) {
		t.Errorf("LastDatetime = %v, want %v", cp.LastDatetime, later)
	}
	if cp.ProcessedRecords != 0 {
		t.Errorf("ProcessedRecords = %d, want 0 from latest commit", cp.ProcessedRecords)
	}
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	watermark := time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)

	if err := store.Commit(ctx, "input-1", schema.ReportCallQueue, watermark, 5); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	cp, err := store.Get(ctx, "input-1", schema.ReportAutoAttendant)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if cp != nil {
		t.Errorf("auto attendant checkpoint should be independent, got %+v", cp)
	}
}
