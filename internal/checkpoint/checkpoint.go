// Package checkpoint persists the per-input high-water mark that drives
// incremental extraction. A checkpoint only ever advances, and only as the
// final step of a successfully written pipeline run.
package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/voicemetrics/vaac-pipeline/internal/schema"
)

// Checkpoint is the durable progress marker for one (input, report type)
// pair. LastDatetime is monotonically non-decreasing across commits.
type Checkpoint struct {
	InputID          string            `json:"input_id"`
	ReportType       schema.ReportType `json:"report_type"`
	LastDatetime     time.Time         `json:"last_datetime"`
	ProcessedRecords int               `json:"processed_records"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Store is the durable key→checkpoint mapping. Get returns (nil, nil) when no
// checkpoint exists yet. Commit must be atomic per key and must never move
// LastDatetime backwards.
type Store interface {
	Get(ctx context.Context, inputID string, report schema.ReportType) (*Checkpoint, error)
	Commit(ctx context.Context, inputID string, report schema.ReportType, lastDatetime time.Time, processed int) error
}

type key struct {
	inputID string
	report  schema.ReportType
}

// MemoryStore is an in-process Store used in tests and single-node setups
// without a database.
type MemoryStore struct {
	mu          sync.Mutex
	checkpoints map[key]Checkpoint
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[key]Checkpoint)}
}

// Get returns a copy of the stored checkpoint, or nil when absent.
func (s *MemoryStore) Get(_ context.Context, inputID string, report schema.ReportType) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[key{inputID, report}]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

// Commit stores the checkpoint, keeping the later of the existing and new
// LastDatetime so the watermark never regresses.
func (s *MemoryStore) Commit(_ context.Context, inputID string, report schema.ReportType, lastDatetime time.Time, processed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{inputID, report}
	cp := Checkpoint{
		InputID:          inputID,
		ReportType:       report,
		LastDatetime:     lastDatetime,
		ProcessedRecords: processed,
		UpdatedAt:        time.Now().UTC(),
	}
	if prev, ok := s.checkpoints[k]; ok && prev.LastDatetime.After(lastDatetime) {
		cp.LastDatetime = prev.LastDatetime
	}
	s.checkpoints[k] = cp
	return nil
}
