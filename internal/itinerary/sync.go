// Package itinerary keeps the local view of a user's trip schedule
// consistent with the document store.
package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/neexbeast/tripsync/internal/docstore"
	"github.com/neexbeast/tripsync/internal/schedule"
	"github.com/neexbeast/tripsync/internal/state"
)

// EntriesCollection is the store collection holding schedule entries.
const EntriesCollection = "entries"

// ErrAlreadySubscribed is returned by Subscribe when a feed is already open.
var ErrAlreadySubscribed = errors.New("already subscribed")

// Sync is the single source of truth for the entries visible to clients.
// Remote snapshots replace the list wholesale; local writes are mirrored
// only after the store confirms them.
type Sync struct {
	store docstore.Store
	log   *slog.Logger

	entries  *state.Cell[[]schedule.Entry]
	selected *state.Cell[schedule.Entry]

	subMu    sync.Mutex
	sub      docstore.Subscription
	failures chan error
}

// NewSync constructs a Sync with an empty entry list. Call Subscribe to
// start following the store.
func NewSync(store docstore.Store, log *slog.Logger) *Sync {
	s := &Sync{
		store:    store,
		log:      log,
		entries:  state.NewCell(schedule.CloneEntries),
		selected: state.NewCell(schedule.Entry.Clone),
		failures: make(chan error, 1),
	}
	s.entries.Set([]schedule.Entry{})
	return s
}

// Subscribe opens the live feed on the entries collection. A feed failure
// ends the subscription and is reported once on Failures; it is not
// reopened automatically.
func (s *Sync) Subscribe(ctx context.Context) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.sub != nil {
		return ErrAlreadySubscribed
	}

	sub, err := s.store.Subscribe(ctx, EntriesCollection, s.applySnapshot, s.reportFailure)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", EntriesCollection, err)
	}
	s.sub = sub
	return nil
}

// Close tears down the live feed, if any. No snapshot is applied after
// Close returns.
func (s *Sync) Close() {
	s.subMu.Lock()
	sub := s.sub
	s.sub = nil
	s.subMu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Failures delivers the error that ended the live feed.
func (s *Sync) Failures() <-chan error {
	return s.failures
}

// Add stores e and, once the store has assigned an id, appends it to the
// local list. An entry already delivered by a snapshot is not appended
// twice.
func (s *Sync) Add(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	if err := schedule.ValidateEntry(e); err != nil {
		return schedule.Entry{}, err
	}
	e = normalize(e)

	id, err := s.store.Add(ctx, EntriesCollection, e.Record())
	if err != nil {
		return schedule.Entry{}, fmt.Errorf("adding entry: %w", err)
	}
	e.ID = id

	s.entries.Update(func(cur []schedule.Entry, _ bool) []schedule.Entry {
		if indexOf(cur, id) >= 0 {
			return cur
		}
		return append(cur, e)
	})

	s.log.Info("entry added", "id", id, "location", e.Location, "date", e.Date)
	return e, nil
}

// Update writes e over its stored document. Entries with an id are updated
// by id. Entries without one are matched on (location, date): the first
// match wins and a miss adds e as a new entry. A successful write reloads
// the full list.
func (s *Sync) Update(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	if err := schedule.ValidateEntry(e); err != nil {
		return schedule.Entry{}, err
	}
	e = normalize(e)

	if e.ID == "" {
		docs, err := s.store.QueryEquals(ctx, EntriesCollection, docstore.Filter{
			schedule.FieldLocation: e.Location,
			schedule.FieldDate:     e.Date,
		})
		if err != nil {
			return schedule.Entry{}, fmt.Errorf("looking up entry at %s on %s: %w", e.Location, e.Date, err)
		}
		if len(docs) == 0 {
			return s.Add(ctx, e)
		}
		if len(docs) > 1 {
			s.log.Warn("several entries share a slot, updating the first",
				"location", e.Location, "date", e.Date, "matches", len(docs))
		}
		e.ID = docs[0].ID
	}

	if err := s.store.Set(ctx, EntriesCollection, e.ID, e.Record()); err != nil {
		return schedule.Entry{}, fmt.Errorf("updating entry %s: %w", e.ID, err)
	}

	if err := s.Reload(ctx); err != nil {
		s.log.Warn("reloading entries after update failed", "id", e.ID, "err", err)
	}
	return e, nil
}

// Delete removes the entry remotely and then locally. A selected entry
// that is deleted stops being selected.
func (s *Sync) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, EntriesCollection, id); err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}

	s.entries.Update(func(cur []schedule.Entry, _ bool) []schedule.Entry {
		i := indexOf(cur, id)
		if i < 0 {
			return cur
		}
		return append(cur[:i:i], cur[i+1:]...)
	})
	if sel, ok := s.selected.Get(); ok && sel.ID == id {
		s.selected.Clear()
	}
	return nil
}

// Reload replaces the local list with the store's current contents.
func (s *Sync) Reload(ctx context.Context) error {
	docs, err := s.store.List(ctx, EntriesCollection)
	if err != nil {
		return fmt.Errorf("listing %s: %w", EntriesCollection, err)
	}
	s.applySnapshot(docs)
	return nil
}

// Select marks e as the entry being viewed.
func (s *Sync) Select(e schedule.Entry) { s.selected.Set(e) }

// Selected returns the entry being viewed, if any.
func (s *Sync) Selected() (schedule.Entry, bool) { return s.selected.Get() }

// FindByID returns the first local entry with the given id.
func (s *Sync) FindByID(id string) (schedule.Entry, bool) {
	cur, _ := s.entries.Get()
	if i := indexOf(cur, id); i >= 0 {
		return cur[i], true
	}
	return schedule.Entry{}, false
}

// Entries returns a copy of the current list.
func (s *Sync) Entries() []schedule.Entry {
	cur, _ := s.entries.Get()
	return cur
}

// Watch streams the list after every change until ctx is done.
func (s *Sync) Watch(ctx context.Context) <-chan []schedule.Entry {
	return s.entries.Watch(ctx)
}

func (s *Sync) applySnapshot(docs []docstore.Document) {
	list := make([]schedule.Entry, 0, len(docs))
	for _, d := range docs {
		e, err := schedule.EntryFromRecord(d.ID, d.Data)
		if err != nil {
			s.log.Warn("skipping malformed entry", "id", d.ID, "err", err)
			continue
		}
		list = append(list, e)
	}
	s.entries.Set(list)
}

func (s *Sync) reportFailure(err error) {
	s.log.Error("entry feed failed", "err", err)

	s.subMu.Lock()
	s.sub = nil
	s.subMu.Unlock()

	select {
	case s.failures <- err:
	default:
	}
}

func normalize(e schedule.Entry) schedule.Entry {
	out := e.Clone()
	if out.Transportation == "" {
		out.Transportation = schedule.Walk
	}
	return out
}

func indexOf(entries []schedule.Entry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
