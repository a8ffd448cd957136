package refresh_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/tripsync/internal/docstore"
	"github.com/neexbeast/tripsync/internal/itinerary"
	"github.com/neexbeast/tripsync/internal/refresh"
	"github.com/neexbeast/tripsync/internal/schedule"
)

// ---- mocks ----

type fakeSource struct {
	mu        sync.Mutex
	entries   []schedule.Entry
	updated   []schedule.Entry
	updateErr error
}

func (f *fakeSource) Entries() []schedule.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return schedule.CloneEntries(f.entries)
}

func (f *fakeSource) FindByID(id string) (schedule.Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return schedule.Entry{}, false
}

func (f *fakeSource) Update(_ context.Context, e schedule.Entry) (schedule.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return schedule.Entry{}, f.updateErr
	}
	f.updated = append(f.updated, e)
	return e, nil
}

func (f *fakeSource) updates() []schedule.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schedule.Entry(nil), f.updated...)
}

type mockEnricher struct {
	enrichFn func(ctx context.Context, e schedule.Entry) schedule.Entry
}

func (m *mockEnricher) Enrich(ctx context.Context, e schedule.Entry) schedule.Entry {
	return m.enrichFn(ctx, e)
}

// locating adds coordinates to every entry.
func locating() *mockEnricher {
	return &mockEnricher{enrichFn: func(_ context.Context, e schedule.Entry) schedule.Entry {
		return e.WithCoordinates(37.5, 127.0)
	}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func complete(id string) schedule.Entry {
	return schedule.Entry{ID: id, Location: "서울", Date: "2025-06-01"}.
		WithCoordinates(37.5, 127.0).
		WithWeather(schedule.Weather{Status: "맑음", Temperature: 25})
}

// ---- Job.Run ----

func TestJobRun_UpdatesOnlyIncompleteEntries(t *testing.T) {
	src := &fakeSource{entries: []schedule.Entry{
		{ID: "a", Location: "서울", Date: "2025-06-01"},
		complete("b"),
		{ID: "c", Location: "부산", Date: "2025-06-02"},
	}}
	job := refresh.NewJob(src, locating(), discardLogger())

	n, err := job.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got := src.updates()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.True(t, got[0].HasCoordinates())
}

func TestJobRun_NothingLearnedMeansNoWrite(t *testing.T) {
	src := &fakeSource{entries: []schedule.Entry{{ID: "a", Location: "어딘가", Date: "2025-06-01"}}}
	noop := &mockEnricher{enrichFn: func(_ context.Context, e schedule.Entry) schedule.Entry { return e }}

	n, err := refresh.NewJob(src, noop, discardLogger()).Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, src.updates())
}

func TestJobRun_UpdateFailureIsSkipped(t *testing.T) {
	src := &fakeSource{
		entries:   []schedule.Entry{{ID: "a", Location: "서울", Date: "2025-06-01"}},
		updateErr: errors.New("store down"),
	}

	n, err := refresh.NewJob(src, locating(), discardLogger()).Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJobRun_Cancelled(t *testing.T) {
	src := &fakeSource{entries: []schedule.Entry{{ID: "a", Location: "서울", Date: "2025-06-01"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := refresh.NewJob(src, locating(), discardLogger()).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestJobRun_OverlappingRunIsSkipped(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	blocking := &mockEnricher{enrichFn: func(_ context.Context, e schedule.Entry) schedule.Entry {
		close(entered)
		<-release
		return e.WithCoordinates(1, 1)
	}}
	src := &fakeSource{entries: []schedule.Entry{{ID: "a", Location: "서울", Date: "2025-06-01"}}}
	job := refresh.NewJob(src, blocking, discardLogger())

	done := make(chan int)
	go func() {
		n, _ := job.Run(context.Background())
		done <- n
	}()
	<-entered

	n, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "second run skipped while the first is in progress")

	close(release)
	assert.Equal(t, 1, <-done)
}

// ---- Job.Trigger ----

func TestJobTrigger(t *testing.T) {
	src := &fakeSource{entries: []schedule.Entry{
		{ID: "a", Location: "서울", Date: "2025-06-01"},
		complete("b"),
	}}
	job := refresh.NewJob(src, locating(), discardLogger())

	job.Trigger(schedule.Entry{ID: "a", Location: "서울", Date: "2025-06-01"})
	job.Trigger(complete("b"))
	job.Wait()

	got := src.updates()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestJobTrigger_DeletedEntryIsNotRecreated(t *testing.T) {
	src := &fakeSource{}
	job := refresh.NewJob(src, locating(), discardLogger())

	job.Trigger(schedule.Entry{ID: "gone", Location: "서울", Date: "2025-06-01"})
	job.Wait()

	assert.Empty(t, src.updates())
}

// gated blocks Enrich until release is closed, signalling entered first.
func gated(entered, release chan struct{}) *mockEnricher {
	return &mockEnricher{enrichFn: func(_ context.Context, e schedule.Entry) schedule.Entry {
		close(entered)
		<-release
		return e.WithCoordinates(37.5796, 126.977).
			WithWeather(schedule.Weather{Status: "맑음", Temperature: 27})
	}}
}

func storedEntry(t *testing.T, store *docstore.Memory, id string) schedule.Entry {
	t.Helper()
	doc, err := store.Get(context.Background(), itinerary.EntriesCollection, id)
	require.NoError(t, err)
	e, err := schedule.EntryFromRecord(doc.ID, doc.Data)
	require.NoError(t, err)
	return e
}

func TestJobTrigger_KeepsEditMadeWhileEnriching(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	entries := itinerary.NewSync(store, discardLogger())
	added, err := entries.Add(ctx, schedule.Entry{Location: "경복궁", Date: "2025-06-01"})
	require.NoError(t, err)

	entered, release := make(chan struct{}), make(chan struct{})
	job := refresh.NewJob(entries, gated(entered, release), discardLogger())
	job.Trigger(added)
	<-entered

	edited := added
	edited.Details = "변경됨"
	edited.Transportation = schedule.Taxi
	_, err = entries.Update(ctx, edited)
	require.NoError(t, err)

	close(release)
	job.Wait()

	got := storedEntry(t, store, added.ID)
	assert.Equal(t, "변경됨", got.Details)
	assert.Equal(t, schedule.Taxi, got.Transportation)
	assert.True(t, got.HasCoordinates())
	require.NotNil(t, got.Weather)
	assert.Equal(t, "맑음", got.Weather.Status)
}

func TestJobTrigger_DropsResultWhenEntryMoved(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	entries := itinerary.NewSync(store, discardLogger())
	added, err := entries.Add(ctx, schedule.Entry{Location: "경복궁", Date: "2025-06-01"})
	require.NoError(t, err)

	entered, release := make(chan struct{}), make(chan struct{})
	job := refresh.NewJob(entries, gated(entered, release), discardLogger())
	job.Trigger(added)
	<-entered

	moved := added
	moved.Location = "해운대"
	_, err = entries.Update(ctx, moved)
	require.NoError(t, err)

	close(release)
	job.Wait()

	got := storedEntry(t, store, added.ID)
	assert.Equal(t, "해운대", got.Location)
	assert.False(t, got.HasCoordinates(), "coordinates of the old place are not stored")
	assert.Nil(t, got.Weather)
}

func TestJobTrigger_KeepsExistingCoordinates(t *testing.T) {
	located := schedule.Entry{ID: "a", Location: "서울", Date: "2025-06-01"}.WithCoordinates(1, 2)
	src := &fakeSource{entries: []schedule.Entry{located}}
	elsewhere := &mockEnricher{enrichFn: func(_ context.Context, e schedule.Entry) schedule.Entry {
		out := e.WithWeather(schedule.Weather{Status: "비", Temperature: 18})
		return out.WithCoordinates(9, 9)
	}}
	job := refresh.NewJob(src, elsewhere, discardLogger())

	job.Trigger(located)
	job.Wait()

	got := src.updates()
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, *got[0].Latitude)
	require.NotNil(t, got[0].Weather)
}

// ---- Scheduler ----

func TestNewScheduler_InvalidSpec(t *testing.T) {
	job := refresh.NewJob(&fakeSource{}, locating(), discardLogger())

	_, err := refresh.NewScheduler("every tuesday", job, discardLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduling refresh")
}

func TestScheduler_RunsJob(t *testing.T) {
	src := &fakeSource{entries: []schedule.Entry{{ID: "a", Location: "서울", Date: "2025-06-01"}}}
	job := refresh.NewJob(src, locating(), discardLogger())

	s, err := refresh.NewScheduler("@every 1s", job, discardLogger())
	require.NoError(t, err)
	s.Start()

	assert.Eventually(t, func() bool { return len(src.updates()) > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
