// Package refresh fills in coordinates and weather for schedule entries in
// the background, after they are added and periodically afterwards.
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/neexbeast/tripsync/internal/provider"
	"github.com/neexbeast/tripsync/internal/schedule"
)

const triggerTimeout = 30 * time.Second

// entrySource is satisfied by *itinerary.Sync.
type entrySource interface {
	Entries() []schedule.Entry
	FindByID(id string) (schedule.Entry, bool)
	Update(ctx context.Context, e schedule.Entry) (schedule.Entry, error)
}

// enricher is satisfied by *provider.Enricher.
type enricher interface {
	Enrich(ctx context.Context, e schedule.Entry) schedule.Entry
}

// Job enriches entries and writes the results back through the sync layer.
type Job struct {
	entries  entrySource
	enricher enricher
	log      *slog.Logger

	running sync.Mutex
	pending sync.WaitGroup
}

// NewJob constructs a Job.
func NewJob(entries entrySource, enricher enricher, log *slog.Logger) *Job {
	return &Job{entries: entries, enricher: enricher, log: log}
}

// Run enriches every current entry that is missing coordinates or weather
// and returns how many were updated. Overlapping runs are skipped. Per-entry
// failures are logged; only cancellation ends a run early.
func (j *Job) Run(ctx context.Context) (int, error) {
	if !j.running.TryLock() {
		j.log.Info("refresh already running, skipping")
		return 0, nil
	}
	defer j.running.Unlock()

	updated := 0
	for _, e := range j.entries.Entries() {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if !provider.NeedsEnrichment(e) {
			continue
		}
		if j.apply(ctx, e) {
			updated++
		}
	}
	return updated, nil
}

// Trigger enriches e in the background.
func (j *Job) Trigger(e schedule.Entry) {
	if !provider.NeedsEnrichment(e) {
		return
	}

	j.pending.Add(1)
	go func() {
		defer j.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		j.apply(ctx, e)
	}()
}

// Wait blocks until every triggered enrichment has finished.
func (j *Job) Wait() {
	j.pending.Wait()
}

// apply enriches e and stores what was learned. Lookups take time, so the
// result is merged onto the entry as it is now: an entry that was deleted
// or moved to another place or day meanwhile is left alone, and only
// missing coordinates and weather are filled in, never other fields.
func (j *Job) apply(ctx context.Context, e schedule.Entry) bool {
	enriched := j.enricher.Enrich(ctx, e)

	cur, ok := j.entries.FindByID(e.ID)
	if !ok {
		j.log.Info("entry gone before enrichment finished", "id", e.ID)
		return false
	}
	if !cur.SameSlot(e) {
		j.log.Info("entry moved while enriching, dropping result",
			"id", e.ID, "was", e.Location, "now", cur.Location)
		return false
	}

	merged := cur.Clone()
	if !merged.HasCoordinates() && enriched.HasCoordinates() {
		merged = merged.WithCoordinates(*enriched.Latitude, *enriched.Longitude)
	}
	if merged.Weather == nil && enriched.Weather != nil {
		merged = merged.WithWeather(*enriched.Weather)
	}
	if merged.HasCoordinates() == cur.HasCoordinates() && (merged.Weather == nil) == (cur.Weather == nil) {
		return false
	}

	if _, err := j.entries.Update(ctx, merged); err != nil {
		j.log.Warn("storing enriched entry failed", "id", e.ID, "err", err)
		return false
	}
	j.log.Info("entry enriched", "id", e.ID, "location", cur.Location,
		"has_coordinates", merged.HasCoordinates(), "has_weather", merged.Weather != nil)
	return true
}
