package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neexbeast/tripsync/internal/docstore"
	"github.com/neexbeast/tripsync/internal/schedule"
)

// TitlesCollection is the store collection holding trip titles.
const TitlesCollection = "titles"

// entryRemover is satisfied by *Sync.
type entryRemover interface {
	Delete(ctx context.Context, id string) error
}

// Titles persists trips. Entries stay in their own collection and point at
// their trip through schedule.FieldTitleID.
type Titles struct {
	store   docstore.Store
	entries entryRemover
	log     *slog.Logger
}

// NewTitles constructs Titles. Entry deletions go through entries so the
// synchronized list follows a cascading delete.
func NewTitles(store docstore.Store, entries entryRemover, log *slog.Logger) *Titles {
	return &Titles{store: store, entries: entries, log: log}
}

// Create validates req and persists the trip it describes.
func (t *Titles) Create(ctx context.Context, req schedule.CreationRequest) (schedule.Title, error) {
	if err := req.Validate(); err != nil {
		return schedule.Title{}, err
	}

	title := req.Title()
	id, err := t.store.Add(ctx, TitlesCollection, title.Record())
	if err != nil {
		return schedule.Title{}, fmt.Errorf("creating title %q: %w", title.Title, err)
	}
	title.ID = id

	t.log.Info("title created", "id", id, "title", title.Title, "location", title.Location)
	return title, nil
}

// List returns every trip without its entries.
func (t *Titles) List(ctx context.Context) ([]schedule.Title, error) {
	docs, err := t.store.List(ctx, TitlesCollection)
	if err != nil {
		return nil, fmt.Errorf("listing titles: %w", err)
	}

	out := make([]schedule.Title, 0, len(docs))
	for _, d := range docs {
		title, err := schedule.TitleFromRecord(d.ID, d.Data)
		if err != nil {
			t.log.Warn("skipping malformed title", "id", d.ID, "err", err)
			continue
		}
		out = append(out, title)
	}
	return out, nil
}

// Get returns a trip with its entries in insertion order.
func (t *Titles) Get(ctx context.Context, id string) (schedule.Title, error) {
	doc, err := t.store.Get(ctx, TitlesCollection, id)
	if err != nil {
		return schedule.Title{}, fmt.Errorf("getting title %s: %w", id, err)
	}
	title, err := schedule.TitleFromRecord(doc.ID, doc.Data)
	if err != nil {
		return schedule.Title{}, fmt.Errorf("decoding title %s: %w", id, err)
	}

	docs, err := t.entriesOf(ctx, id)
	if err != nil {
		return schedule.Title{}, err
	}
	title.Entries = make([]schedule.Entry, 0, len(docs))
	for _, d := range docs {
		e, err := schedule.EntryFromRecord(d.ID, d.Data)
		if err != nil {
			t.log.Warn("skipping malformed entry", "id", d.ID, "title_id", id, "err", err)
			continue
		}
		title.Entries = append(title.Entries, e)
	}
	return title, nil
}

// Delete removes a trip's entries and then the trip itself. The title is
// deleted last, so a delete that fails part way leaves it in place and can
// be retried.
func (t *Titles) Delete(ctx context.Context, id string) error {
	if _, err := t.store.Get(ctx, TitlesCollection, id); err != nil {
		return fmt.Errorf("deleting title %s: %w", id, err)
	}

	docs, err := t.entriesOf(ctx, id)
	if err != nil {
		return err
	}

	var errs []error
	for _, d := range docs {
		if err := t.entries.Delete(ctx, d.ID); err != nil && !errors.Is(err, schedule.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("deleting entries of title %s: %w", id, errors.Join(errs...))
	}

	if err := t.store.Delete(ctx, TitlesCollection, id); err != nil {
		return fmt.Errorf("deleting title %s: %w", id, err)
	}

	t.log.Info("title deleted", "id", id, "entries", len(docs))
	return nil
}

func (t *Titles) entriesOf(ctx context.Context, id string) ([]docstore.Document, error) {
	docs, err := t.store.QueryEquals(ctx, EntriesCollection, docstore.Filter{schedule.FieldTitleID: id})
	if err != nil {
		return nil, fmt.Errorf("loading entries of title %s: %w", id, err)
	}
	return docs, nil
}
