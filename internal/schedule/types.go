// Package schedule contains the itinerary data model: trips (titles) and the
// dated stops (entries) that make them up. It has no behavior beyond
// construction, copying, validation, and mapping to store records.
package schedule

import (
	"fmt"
	"strings"
)

// DateLayout is the ISO-8601 calendar date format used for every date field.
const DateLayout = "2006-01-02"

// Transportation is the way a traveller reaches an entry's location.
type Transportation string

const (
	Walk    Transportation = "WALK"
	Bicycle Transportation = "BICYCLE"
	Taxi    Transportation = "TAXI"
	Subway  Transportation = "SUBWAY"
	Bus     Transportation = "BUS"
	Other   Transportation = "OTHER"
)

var transportationLabels = map[Transportation]string{
	Walk:    "도보",
	Bicycle: "자전거",
	Taxi:    "택시",
	Subway:  "지하철",
	Bus:     "버스",
	Other:   "기타",
}

// Transportations returns every transportation mode in declaration order.
func Transportations() []Transportation {
	return []Transportation{Walk, Bicycle, Taxi, Subway, Bus, Other}
}

// Label returns the display label, or the raw name for unknown values.
func (t Transportation) Label() string {
	if l, ok := transportationLabels[t]; ok {
		return l
	}
	return string(t)
}

// Valid reports whether t is one of the declared modes.
func (t Transportation) Valid() bool {
	_, ok := transportationLabels[t]
	return ok
}

// ParseTransportation maps a persisted name (case-insensitive) to a mode.
// An empty string yields the default, Walk.
func ParseTransportation(s string) (Transportation, error) {
	if strings.TrimSpace(s) == "" {
		return Walk, nil
	}
	t := Transportation(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown transportation %q", ErrMalformed, s)
	}
	return t, nil
}

// Weather is a forecast snapshot attached to an entry after creation.
type Weather struct {
	Status      string  `json:"status"`
	Temperature float64 `json:"temperature"` // °C
}

// Entry is one activity or stop within a trip day.
//
// Weather and the coordinates are filled in later by enrichment; any of them
// may be nil while that is pending.
type Entry struct {
	ID             string         `json:"id"`
	TitleID        string         `json:"title_id,omitempty"`
	Location       string         `json:"location"`
	Date           string         `json:"date"`
	Transportation Transportation `json:"transportation"`
	Weather        *Weather       `json:"weather,omitempty"`
	Details        string         `json:"details"`
	Latitude       *float64       `json:"latitude,omitempty"`
	Longitude      *float64       `json:"longitude,omitempty"`
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	out := e
	if e.Weather != nil {
		w := *e.Weather
		out.Weather = &w
	}
	if e.Latitude != nil {
		lat := *e.Latitude
		out.Latitude = &lat
	}
	if e.Longitude != nil {
		lng := *e.Longitude
		out.Longitude = &lng
	}
	return out
}

// WithWeather returns a copy of e carrying w.
func (e Entry) WithWeather(w Weather) Entry {
	out := e.Clone()
	out.Weather = &w
	return out
}

// WithCoordinates returns a copy of e located at (lat, lng).
func (e Entry) WithCoordinates(lat, lng float64) Entry {
	out := e.Clone()
	out.Latitude = &lat
	out.Longitude = &lng
	return out
}

// HasCoordinates reports whether both latitude and longitude are known.
func (e Entry) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// SameSlot reports whether e and other are at the same location on the
// same date.
func (e Entry) SameSlot(other Entry) bool {
	return e.Location == other.Location && e.Date == other.Date
}

// Title is a named trip spanning a date range. It owns its entries; their
// order is display order.
type Title struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Location  string  `json:"location"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Entries   []Entry `json:"entries"`
}

// Clone returns a deep copy of t, including every entry.
func (t Title) Clone() Title {
	out := t
	if t.Entries != nil {
		out.Entries = make([]Entry, len(t.Entries))
		for i, e := range t.Entries {
			out.Entries[i] = e.Clone()
		}
	}
	return out
}

// CloneEntries deep-copies a slice of entries, keeping nil as nil.
func CloneEntries(in []Entry) []Entry {
	if in == nil {
		return nil
	}
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
