package calendar_test

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/tripsync/internal/calendar"
	"github.com/neexbeast/tripsync/internal/schedule"
)

var stamp = time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

func jejuTitle() schedule.Title {
	first := schedule.Entry{
		ID: "e1", Location: "성산일출봉", Date: "2025-07-01",
		Transportation: schedule.Bus, Details: "일출 보기, 새벽 5시 출발",
	}.WithCoordinates(33.4581, 126.9425).
		WithWeather(schedule.Weather{Status: "맑음", Temperature: 24})

	second := schedule.Entry{ID: "e2", Location: "한라산", Date: "2025-07-02", Transportation: schedule.Walk}

	return schedule.Title{
		ID: "t1", Title: "여름 휴가", Location: "제주",
		StartDate: "2025-07-01", EndDate: "2025-07-03",
		Entries: []schedule.Entry{first, second},
	}
}

func parse(t *testing.T, out string) *ics.Calendar {
	t.Helper()
	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	return cal
}

func prop(ev *ics.VEvent, p ics.ComponentProperty) string {
	if v := ev.GetProperty(p); v != nil {
		return v.Value
	}
	return ""
}

func TestExport_TripAndEntries(t *testing.T) {
	out, err := calendar.Export(jejuTitle(), stamp)
	require.NoError(t, err)

	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Contains(t, out, "X-WR-CALNAME:여름 휴가")

	events := parse(t, out).Events()
	require.Len(t, events, 3)

	trip := events[0]
	assert.Equal(t, "t1@tripsync", trip.Id())
	assert.Equal(t, "여름 휴가", prop(trip, ics.ComponentPropertySummary))
	assert.Equal(t, "20250701", prop(trip, ics.ComponentPropertyDtStart))
	assert.Equal(t, "20250704", prop(trip, ics.ComponentPropertyDtEnd), "DTEND is exclusive")

	first := events[1]
	assert.Equal(t, "e1@tripsync", first.Id())
	assert.Equal(t, "성산일출봉", prop(first, ics.ComponentPropertySummary))
	assert.Equal(t, "20250701", prop(first, ics.ComponentPropertyDtStart))
	assert.Equal(t, "20250702", prop(first, ics.ComponentPropertyDtEnd))
	assert.Equal(t, "33.4581;126.9425", prop(first, ics.ComponentPropertyGeo))
	assert.Equal(t, "20250601T030000Z", prop(first, ics.ComponentPropertyDtstamp))
	assert.Equal(t, "이동: 버스\n날씨: 맑음 24.0°C\n일출 보기, 새벽 5시 출발", prop(first, ics.ComponentPropertyDescription))

	second := events[2]
	assert.Equal(t, "이동: 도보", prop(second, ics.ComponentPropertyDescription))
	assert.Nil(t, second.GetProperty(ics.ComponentPropertyGeo), "no GEO without coordinates")
}

func TestExport_EmptyTrip(t *testing.T) {
	title := jejuTitle()
	title.Entries = nil

	out, err := calendar.Export(title, stamp)

	require.NoError(t, err)
	assert.Len(t, parse(t, out).Events(), 1)
}

func TestExport_RequiresID(t *testing.T) {
	title := jejuTitle()
	title.ID = ""

	_, err := calendar.Export(title, stamp)

	assert.ErrorIs(t, err, schedule.ErrValidation)
}

func TestExport_BadDates(t *testing.T) {
	title := jejuTitle()
	title.EndDate = "someday"
	_, err := calendar.Export(title, stamp)
	require.Error(t, err)

	title = jejuTitle()
	title.Entries[1].Date = "2025/07/02"
	_, err = calendar.Export(title, stamp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry e2")
}
