package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/neexbeast/tripsync/internal/schedule"
)

// Memory is an in-process Store. Records are copied through JSON on the way
// in and out, so callers see the same value types the Postgres store returns.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]Document
	notifier    *LocalNotifier
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string][]Document),
		notifier:    NewLocalNotifier(),
	}
}

// Add stores rec under a new random id.
func (m *Memory) Add(ctx context.Context, collection string, rec schedule.Record) (string, error) {
	data, err := copyRecord(rec)
	if err != nil {
		return "", fmt.Errorf("adding to %s: %w", collection, err)
	}
	id := uuid.NewString()

	m.mu.Lock()
	m.collections[collection] = append(m.collections[collection], Document{ID: id, Data: data})
	m.mu.Unlock()

	_ = m.notifier.Notify(ctx, collection)
	return id, nil
}

// Set overwrites an existing document in place, keeping its position.
func (m *Memory) Set(ctx context.Context, collection, id string, rec schedule.Record) error {
	data, err := copyRecord(rec)
	if err != nil {
		return fmt.Errorf("setting %s/%s: %w", collection, id, err)
	}

	m.mu.Lock()
	i := m.indexOf(collection, id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("setting %s/%s: %w", collection, id, schedule.ErrNotFound)
	}
	m.collections[collection][i].Data = data
	m.mu.Unlock()

	_ = m.notifier.Notify(ctx, collection)
	return nil
}

// Get returns a copy of a single document.
func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(collection, id)
	if i < 0 {
		return Document{}, fmt.Errorf("getting %s/%s: %w", collection, id, schedule.ErrNotFound)
	}
	return copyDocument(m.collections[collection][i])
}

// Delete removes a document.
func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	i := m.indexOf(collection, id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("deleting %s/%s: %w", collection, id, schedule.ErrNotFound)
	}
	docs := m.collections[collection]
	m.collections[collection] = append(docs[:i:i], docs[i+1:]...)
	m.mu.Unlock()

	_ = m.notifier.Notify(ctx, collection)
	return nil
}

// List returns copies of every document in insertion order.
func (m *Memory) List(_ context.Context, collection string) ([]Document, error) {
	return m.matching(collection, nil)
}

// QueryEquals returns copies of the documents whose fields equal f.
func (m *Memory) QueryEquals(_ context.Context, collection string, f Filter) ([]Document, error) {
	want, err := copyRecord(schedule.Record(f))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	return m.matching(collection, want)
}

// Subscribe opens a live feed on collection.
func (m *Memory) Subscribe(ctx context.Context, collection string, onSnapshot func([]Document), onError func(error)) (Subscription, error) {
	return subscribe(ctx, m, m.notifier, collection, onSnapshot, onError)
}

func (m *Memory) matching(collection string, want schedule.Record) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Document, 0, len(m.collections[collection]))
	for _, d := range m.collections[collection] {
		if !contains(d.Data, want) {
			continue
		}
		c, err := copyDocument(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *Memory) indexOf(collection, id string) int {
	for i, d := range m.collections[collection] {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// contains mirrors JSONB @> for flat filters: every wanted field must be
// present and equal.
func contains(data, want schedule.Record) bool {
	for k, v := range want {
		got, ok := data[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}

func copyDocument(d Document) (Document, error) {
	data, err := copyRecord(d.Data)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: d.ID, Data: data}, nil
}

func copyRecord(rec schedule.Record) (schedule.Record, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	var out schedule.Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	if out == nil {
		out = schedule.Record{}
	}
	return out, nil
}
