// Package calendar renders trips as iCalendar documents so they can be
// imported into ordinary calendar apps.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/neexbeast/tripsync/internal/schedule"
)

const (
	productID = "-//tripsync//Itinerary Export//KO"
	uidDomain = "@tripsync"
)

// Export renders t as a VCALENDAR: one all-day event spanning the trip and
// one all-day event per entry, in entry order. stamp becomes every event's
// DTSTAMP.
func Export(t schedule.Title, stamp time.Time) (string, error) {
	if t.ID == "" {
		return "", fmt.Errorf("%w: title has no id", schedule.ErrValidation)
	}

	start, err := schedule.ParseDate(t.StartDate)
	if err != nil {
		return "", fmt.Errorf("title %s start date: %w", t.ID, err)
	}
	end, err := schedule.ParseDate(t.EndDate)
	if err != nil {
		return "", fmt.Errorf("title %s end date: %w", t.ID, err)
	}

	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(t.Title)

	trip := cal.AddEvent(t.ID + uidDomain)
	trip.SetDtStampTime(stamp)
	trip.SetSummary(t.Title)
	trip.SetLocation(t.Location)
	trip.SetAllDayStartAt(start)
	// DTEND is exclusive for all-day events.
	trip.SetAllDayEndAt(end.AddDate(0, 0, 1))

	for _, e := range t.Entries {
		day, err := schedule.ParseDate(e.Date)
		if err != nil {
			return "", fmt.Errorf("entry %s date: %w", e.ID, err)
		}

		ev := cal.AddEvent(e.ID + uidDomain)
		ev.SetDtStampTime(stamp)
		ev.SetSummary(e.Location)
		ev.SetLocation(e.Location)
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		ev.SetDescription(describe(e))
		if e.HasCoordinates() {
			ics.SetGeo(ev, *e.Latitude, *e.Longitude)
		}
	}

	return cal.Serialize(), nil
}

func describe(e schedule.Entry) string {
	lines := []string{"이동: " + e.Transportation.Label()}
	if e.Weather != nil {
		lines = append(lines, fmt.Sprintf("날씨: %s %.1f°C", e.Weather.Status, e.Weather.Temperature))
	}
	if d := strings.TrimSpace(e.Details); d != "" {
		lines = append(lines, d)
	}
	return strings.Join(lines, "\n")
}
