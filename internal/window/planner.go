// Package window computes the extraction time window for a pipeline run from
// the committed checkpoint (or a configured lookback on first run).
package window

import (
	"time"

	"github.com/voicemetrics/vaac-pipeline/internal/checkpoint"
)

const dateLayout = "2006-01-02"

// Window is the transient query bound for one run. StartUTC is the precise
// inclusive lower bound; StartDate and EndDate are coarse calendar-day
// filters the server applies alongside it.
type Window struct {
	StartUTC  time.Time
	StartDate string
	EndDate   string
}

// DefaultLookback is used when an input has no checkpoint and no configured
// lookback.
const DefaultLookback = 24 * time.Hour

// Plan derives the next window. The lower bound is the checkpoint watermark
// when present, else now minus lookback. The bound is inclusive: a record
// exactly at the watermark is fetched again rather than risk a gap, and the
// duplicate is discarded downstream via the record's dedup key.
func Plan(cp *checkpoint.Checkpoint, lookback time.Duration, now time.Time) Window {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	now = now.UTC()
	start := now.Add(-lookback)
	if cp != nil && !cp.LastDatetime.IsZero() {
		start = cp.LastDatetime.UTC()
	}
	if start.After(now) {
		start = now
	}
	return Window{
		StartUTC:  start,
		StartDate: start.Format(dateLayout),
		EndDate:   now.Format(dateLayout),
	}
}
