package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/tripsync/internal/provider"
	"github.com/neexbeast/tripsync/internal/schedule"
)

// ---- mocks ----

type mockGeocoder struct {
	calls     int
	resolveFn func(ctx context.Context, address string) (*provider.Coordinates, error)
}

func (m *mockGeocoder) Resolve(ctx context.Context, address string) (*provider.Coordinates, error) {
	m.calls++
	return m.resolveFn(ctx, address)
}

type forecastCall struct {
	baseDate, baseTime string
	nx, ny             int
	day                string
}

type mockForecaster struct {
	calls      []forecastCall
	forecastFn func() (*schedule.Weather, error)
}

func (m *mockForecaster) Forecast(_ context.Context, baseDate, baseTime string, nx, ny int, day string) (*schedule.Weather, error) {
	m.calls = append(m.calls, forecastCall{baseDate, baseTime, nx, ny, day})
	return m.forecastFn()
}

type mapCache struct {
	values map[string]provider.Coordinates
	getErr error
}

func (m *mapCache) Get(_ context.Context, key string) (*provider.Coordinates, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *mapCache) Set(_ context.Context, key string, v *provider.Coordinates) error {
	m.values[key] = *v
	return nil
}

var _ provider.CoordinateCache = (*mapCache)(nil)

// ---- helpers ----

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, provider.KST)

func seoulGeocoder() *mockGeocoder {
	return &mockGeocoder{resolveFn: func(context.Context, string) (*provider.Coordinates, error) {
		return &provider.Coordinates{Latitude: 37.5665, Longitude: 126.9780}, nil
	}}
}

func sunny() *mockForecaster {
	return &mockForecaster{forecastFn: func() (*schedule.Weather, error) {
		return &schedule.Weather{Status: "맑음", Temperature: 26}, nil
	}}
}

func newEnricher(geo *mockGeocoder, fc *mockForecaster, c provider.CoordinateCache) *provider.Enricher {
	return provider.NewEnricherWithClock(geo, fc, c, discardLogger(), func() time.Time { return fixedNow })
}

// ---- tests ----

func TestEnricher_FillsCoordinatesAndWeather(t *testing.T) {
	geo, fc := seoulGeocoder(), sunny()
	in := schedule.Entry{ID: "a", Location: "서울", Date: "2025-06-02", Transportation: schedule.Bus}

	got := newEnricher(geo, fc, nil).Enrich(context.Background(), in)

	require.True(t, got.HasCoordinates())
	assert.Equal(t, 37.5665, *got.Latitude)
	require.NotNil(t, got.Weather)
	assert.Equal(t, "맑음", got.Weather.Status)
	assert.Nil(t, in.Latitude, "input is not modified")

	require.Len(t, fc.calls, 1)
	assert.Equal(t, forecastCall{"20250601", "0800", 60, 127, "2025-06-02"}, fc.calls[0])
}

func TestEnricher_OutsideHorizonSkipsForecast(t *testing.T) {
	for _, date := range []string{"2025-05-31", "2025-06-05", "not-a-date"} {
		fc := sunny()
		got := newEnricher(seoulGeocoder(), fc, nil).Enrich(context.Background(),
			schedule.Entry{Location: "서울", Date: date})

		assert.True(t, got.HasCoordinates(), date)
		assert.Nil(t, got.Weather, date)
		assert.Empty(t, fc.calls, date)
	}
}

func TestEnricher_LastDayOfHorizon(t *testing.T) {
	fc := sunny()
	got := newEnricher(seoulGeocoder(), fc, nil).Enrich(context.Background(),
		schedule.Entry{Location: "서울", Date: "2025-06-04"})

	assert.NotNil(t, got.Weather)
}

func TestEnricher_KeepsExistingValues(t *testing.T) {
	geo, fc := seoulGeocoder(), sunny()
	in := schedule.Entry{Location: "부산", Date: "2025-06-01"}.
		WithCoordinates(35.1, 129.0).
		WithWeather(schedule.Weather{Status: "흐림", Temperature: 19})

	got := newEnricher(geo, fc, nil).Enrich(context.Background(), in)

	assert.Equal(t, in, got)
	assert.Zero(t, geo.calls)
	assert.Empty(t, fc.calls)
	assert.False(t, provider.NeedsEnrichment(got))
}

func TestEnricher_FailuresLeaveFieldsEmpty(t *testing.T) {
	geo := &mockGeocoder{resolveFn: func(context.Context, string) (*provider.Coordinates, error) {
		return nil, errors.New("timeout")
	}}
	fc := sunny()

	got := newEnricher(geo, fc, nil).Enrich(context.Background(), schedule.Entry{Location: "서울", Date: "2025-06-01"})

	assert.False(t, got.HasCoordinates())
	assert.Nil(t, got.Weather)
	assert.Empty(t, fc.calls, "no forecast without coordinates")
	assert.True(t, provider.NeedsEnrichment(got))
}

func TestEnricher_ForecastFailureKeepsCoordinates(t *testing.T) {
	fc := &mockForecaster{forecastFn: func() (*schedule.Weather, error) { return nil, errors.New("503") }}

	got := newEnricher(seoulGeocoder(), fc, nil).Enrich(context.Background(), schedule.Entry{Location: "서울", Date: "2025-06-01"})

	assert.True(t, got.HasCoordinates())
	assert.Nil(t, got.Weather)
}

func TestEnricher_UsesCache(t *testing.T) {
	geo := seoulGeocoder()
	c := &mapCache{values: map[string]provider.Coordinates{}}
	en := newEnricher(geo, sunny(), c)
	e := schedule.Entry{Location: "서울", Date: "2025-07-01"}

	first := en.Enrich(context.Background(), e)
	second := en.Enrich(context.Background(), e)

	assert.Equal(t, 1, geo.calls, "second lookup is served from cache")
	assert.Equal(t, first, second)
	assert.Contains(t, c.values, "서울")
}

func TestEnricher_CacheReadFailureFallsBackToGeocoder(t *testing.T) {
	geo := seoulGeocoder()
	c := &mapCache{values: map[string]provider.Coordinates{}, getErr: errors.New("redis down")}

	got := newEnricher(geo, sunny(), c).Enrich(context.Background(), schedule.Entry{Location: "서울", Date: "2025-07-01"})

	assert.True(t, got.HasCoordinates())
	assert.Equal(t, 1, geo.calls)
}
