package docstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/tripsync/internal/docstore"
	"github.com/neexbeast/tripsync/internal/schedule"
)

var _ docstore.Store = (*docstore.Memory)(nil)
var _ docstore.Store = (*docstore.Postgres)(nil)

func TestMemory_AddGetSetDelete(t *testing.T) {
	ctx := context.Background()
	m := docstore.NewMemory()

	id, err := m.Add(ctx, "entries", schedule.Record{"location": "서울", "latitude": 37.5})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := m.Get(ctx, "entries", id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "서울", doc.Data["location"])
	assert.Equal(t, 37.5, doc.Data["latitude"])

	require.NoError(t, m.Set(ctx, "entries", id, schedule.Record{"location": "부산"}))
	doc, err = m.Get(ctx, "entries", id)
	require.NoError(t, err)
	assert.Equal(t, schedule.Record{"location": "부산"}, doc.Data)

	require.NoError(t, m.Delete(ctx, "entries", id))
	_, err = m.Get(ctx, "entries", id)
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestMemory_MissingDocuments(t *testing.T) {
	ctx := context.Background()
	m := docstore.NewMemory()

	assert.ErrorIs(t, m.Set(ctx, "entries", "nope", schedule.Record{}), schedule.ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "entries", "nope"), schedule.ErrNotFound)
	_, err := m.Get(ctx, "entries", "nope")
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestMemory_CallerCannotMutateStoredRecord(t *testing.T) {
	ctx := context.Background()
	m := docstore.NewMemory()

	rec := schedule.Record{"location": "서울"}
	id, err := m.Add(ctx, "entries", rec)
	require.NoError(t, err)
	rec["location"] = "changed"

	doc, err := m.Get(ctx, "entries", id)
	require.NoError(t, err)
	doc.Data["location"] = "also changed"

	again, err := m.Get(ctx, "entries", id)
	require.NoError(t, err)
	assert.Equal(t, "서울", again.Data["location"])
}

func TestMemory_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m := docstore.NewMemory()

	for _, loc := range []string{"서울", "부산", "제주"} {
		_, err := m.Add(ctx, "entries", schedule.Record{"location": loc})
		require.NoError(t, err)
	}
	_, err := m.Add(ctx, "titles", schedule.Record{"title": "여행"})
	require.NoError(t, err)

	docs, err := m.List(ctx, "entries")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "서울", docs[0].Data["location"])
	assert.Equal(t, "부산", docs[1].Data["location"])
	assert.Equal(t, "제주", docs[2].Data["location"])

	empty, err := m.List(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemory_QueryEquals(t *testing.T) {
	ctx := context.Background()
	m := docstore.NewMemory()

	_, _ = m.Add(ctx, "entries", schedule.Record{"location": "서울", "date": "2025-06-01", "details": "a"})
	_, _ = m.Add(ctx, "entries", schedule.Record{"location": "서울", "date": "2025-06-02", "details": "b"})
	_, _ = m.Add(ctx, "entries", schedule.Record{"location": "서울", "date": "2025-06-01", "details": "c"})

	docs, err := m.QueryEquals(ctx, "entries", docstore.Filter{"location": "서울", "date": "2025-06-01"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Data["details"])
	assert.Equal(t, "c", docs[1].Data["details"])

	none, err := m.QueryEquals(ctx, "entries", docstore.Filter{"location": "부산"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemory_QueryEqualsNumericFields(t *testing.T) {
	ctx := context.Background()
	m := docstore.NewMemory()

	_, _ = m.Add(ctx, "entries", schedule.Record{"day": 3})

	// An int filter matches the float stored after the JSON copy.
	docs, err := m.QueryEquals(ctx, "entries", docstore.Filter{"day": 3})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

// ---- subscriptions ----

func snapshots(t *testing.T) (func([]docstore.Document), <-chan []docstore.Document) {
	t.Helper()
	ch := make(chan []docstore.Document, 16)
	return func(docs []docstore.Document) { ch <- docs }, ch
}

func nextSnapshot(t *testing.T, ch <-chan []docstore.Document) []docstore.Document {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestMemory_SubscribeDeliversInitialAndLaterSnapshots(t *testing.T) {
	ctx := context.Background()
	m := docstore.NewMemory()
	_, err := m.Add(ctx, "entries", schedule.Record{"location": "서울"})
	require.NoError(t, err)

	onSnapshot, ch := snapshots(t)
	sub, err := m.Subscribe(ctx, "entries", onSnapshot, func(err error) { t.Errorf("unexpected error: %v", err) })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Len(t, nextSnapshot(t, ch), 1)

	_, err = m.Add(ctx, "entries", schedule.Record{"location": "부산"})
	require.NoError(t, err)

	docs := nextSnapshot(t, ch)
	require.Len(t, docs, 2)
	assert.Equal(t, "부산", docs[1].Data["location"])
}

func TestMemory_SubscribeIgnoresOtherCollections(t *testing.T) {
	ctx := context.Background()
	m := docstore.NewMemory()

	onSnapshot, ch := snapshots(t)
	sub, err := m.Subscribe(ctx, "entries", onSnapshot, func(error) {})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Empty(t, nextSnapshot(t, ch))

	_, err = m.Add(ctx, "titles", schedule.Record{"title": "여행"})
	require.NoError(t, err)

	select {
	case docs := <-ch:
		t.Fatalf("unexpected snapshot: %v", docs)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemory_UnsubscribeStopsCallbacks(t *testing.T) {
	ctx := context.Background()
	m := docstore.NewMemory()

	onSnapshot, ch := snapshots(t)
	sub, err := m.Subscribe(ctx, "entries", onSnapshot, func(error) {})
	require.NoError(t, err)
	nextSnapshot(t, ch)

	sub.Unsubscribe()

	_, err = m.Add(ctx, "entries", schedule.Record{"location": "서울"})
	require.NoError(t, err)

	select {
	case docs := <-ch:
		t.Fatalf("snapshot after unsubscribe: %v", docs)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemory_SubscribeStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := docstore.NewMemory()

	onSnapshot, ch := snapshots(t)
	errs := make(chan error, 1)
	sub, err := m.Subscribe(ctx, "entries", onSnapshot, func(err error) { errs <- err })
	require.NoError(t, err)
	nextSnapshot(t, ch)

	cancel()
	sub.Unsubscribe()

	select {
	case err := <-errs:
		t.Fatalf("cancellation must not be reported as a failure: %v", err)
	default:
	}
}

// ---- feed failure ----

func TestFeed_ListFailureReportedOnce(t *testing.T) {
	ctx := context.Background()
	n := docstore.NewLocalNotifier()
	boom := errors.New("backend unavailable")

	calls := 0
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			calls++
			if calls == 1 {
				return &fakeRows{}, nil
			}
			return nil, boom
		},
	}
	store := docstore.NewPostgresWithQuerier(q, n, discardLogger())

	onSnapshot, ch := snapshots(t)
	errs := make(chan error, 4)
	sub, err := store.Subscribe(ctx, "entries", onSnapshot, func(err error) { errs <- err })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Empty(t, nextSnapshot(t, ch))
	require.NoError(t, n.Notify(ctx, "entries"))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed error")
	}

	require.NoError(t, n.Notify(ctx, "entries"))
	select {
	case err := <-errs:
		t.Fatalf("feed reported a second error: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 2, calls, "a failed feed is not restarted")
}

// closingNotifier hands out a change channel that is already closed.
type closingNotifier struct{}

func (closingNotifier) Notify(context.Context, string) error { return nil }

func (closingNotifier) Listen(context.Context, string) (<-chan struct{}, error) {
	ch := make(chan struct{})
	close(ch)
	return ch, nil
}

func TestFeed_ClosedNotifierReportsFeedClosed(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return &fakeRows{}, nil },
	}
	store := docstore.NewPostgresWithQuerier(q, closingNotifier{}, discardLogger())

	errs := make(chan error, 1)
	sub, err := store.Subscribe(context.Background(), "entries", func([]docstore.Document) {}, func(err error) { errs <- err })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, docstore.ErrFeedClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed error")
	}
}
