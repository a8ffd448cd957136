package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/neexbeast/tripsync/internal/schedule"
)

// ForecastHorizon is how many days past today the village forecast covers.
const ForecastHorizon = 3

// geocoder is the interface satisfied by GeocodeClient.
type geocoder interface {
	Resolve(ctx context.Context, address string) (*Coordinates, error)
}

// forecaster is the interface satisfied by ForecastClient.
type forecaster interface {
	Forecast(ctx context.Context, baseDate, baseTime string, nx, ny int, day string) (*schedule.Weather, error)
}

// CoordinateCache is satisfied by *cache.Cache[Coordinates].
type CoordinateCache interface {
	Get(ctx context.Context, key string) (*Coordinates, error)
	Set(ctx context.Context, key string, v *Coordinates) error
}

// Enricher fills in the coordinates and weather of an entry. Nothing it
// does is required: a failed lookup leaves the field empty.
type Enricher struct {
	geo   geocoder
	fc    forecaster
	cache CoordinateCache
	log   *slog.Logger
	now   func() time.Time
}

// NewEnricher constructs an Enricher. cache may be nil.
func NewEnricher(geo geocoder, fc forecaster, cache CoordinateCache, log *slog.Logger) *Enricher {
	return NewEnricherWithClock(geo, fc, cache, log, time.Now)
}

// NewEnricherWithClock constructs an Enricher with an injectable clock (used in tests).
func NewEnricherWithClock(geo geocoder, fc forecaster, cache CoordinateCache, log *slog.Logger, now func() time.Time) *Enricher {
	return &Enricher{geo: geo, fc: fc, cache: cache, log: log, now: now}
}

// NeedsEnrichment reports whether e is missing anything Enrich could add.
func NeedsEnrichment(e schedule.Entry) bool {
	return !e.HasCoordinates() || e.Weather == nil
}

// Enrich returns a copy of e with coordinates resolved from its location
// and, when its date is within the forecast horizon, a weather forecast.
func (en *Enricher) Enrich(ctx context.Context, e schedule.Entry) schedule.Entry {
	out := e.Clone()

	if !out.HasCoordinates() {
		if c := en.coordinates(ctx, out.Location); c != nil {
			out = out.WithCoordinates(c.Latitude, c.Longitude)
		}
	}

	if out.Weather == nil && out.HasCoordinates() && en.inHorizon(out.Date) {
		nx, ny := ToGrid(*out.Latitude, *out.Longitude)
		baseDate, baseTime := BaseTime(en.now())
		w, err := en.fc.Forecast(ctx, baseDate, baseTime, nx, ny, out.Date)
		switch {
		case err != nil:
			en.log.Warn("forecast failed", "location", out.Location, "date", out.Date, "err", err)
		case w != nil:
			out = out.WithWeather(*w)
		}
	}

	return out
}

func (en *Enricher) coordinates(ctx context.Context, location string) *Coordinates {
	if en.cache != nil {
		c, err := en.cache.Get(ctx, location)
		if err != nil {
			en.log.Warn("geocode cache read failed", "location", location, "err", err)
		}
		if c != nil {
			return c
		}
	}

	c, err := en.geo.Resolve(ctx, location)
	if err != nil {
		en.log.Warn("geocode failed", "location", location, "err", err)
		return nil
	}
	if c == nil {
		return nil
	}

	if en.cache != nil {
		if err := en.cache.Set(ctx, location, c); err != nil {
			en.log.Warn("geocode cache write failed", "location", location, "err", err)
		}
	}
	return c
}

// inHorizon reports whether date (YYYY-MM-DD) falls between today and
// today+ForecastHorizon in KST.
func (en *Enricher) inHorizon(date string) bool {
	day, err := time.ParseInLocation(schedule.DateLayout, date, KST)
	if err != nil {
		return false
	}
	now := en.now().In(KST)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, KST)
	return !day.Before(today) && !day.After(today.AddDate(0, 0, ForecastHorizon))
}
