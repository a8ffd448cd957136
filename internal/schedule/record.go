package schedule

import (
	"encoding/json"
	"fmt"
)

// Record is the document representation of a model value in the store.
// Field names follow the stored schema, not the Go field names.
type Record map[string]any

// Stored field names.
const (
	FieldTitleID        = "titleId"
	FieldLocation       = "location"
	FieldDate           = "date"
	FieldTransportation = "transportation"
	FieldWeather        = "weather"
	FieldDetails        = "details"
	FieldLatitude       = "latitude"
	FieldLongitude      = "longitude"

	FieldTitle     = "title"
	FieldStartDate = "startDate"
	FieldEndDate   = "endDate"
)

// Record maps e to its stored form. The id is not part of the record; the
// store keeps it alongside.
func (e Entry) Record() Record {
	t := e.Transportation
	if t == "" {
		t = Walk
	}
	rec := Record{
		FieldTitleID:        e.TitleID,
		FieldLocation:       e.Location,
		FieldDate:           e.Date,
		FieldTransportation: string(t),
		FieldDetails:        e.Details,
		FieldWeather:        nil,
		FieldLatitude:       nil,
		FieldLongitude:      nil,
	}
	if e.Weather != nil {
		rec[FieldWeather] = map[string]any{
			"status":      e.Weather.Status,
			"temperature": e.Weather.Temperature,
		}
	}
	if e.Latitude != nil {
		rec[FieldLatitude] = *e.Latitude
	}
	if e.Longitude != nil {
		rec[FieldLongitude] = *e.Longitude
	}
	return rec
}

// EntryFromRecord maps a stored record back into an Entry with the given id.
// Missing fields take their defaults; a field of the wrong type returns
// ErrMalformed.
func EntryFromRecord(id string, rec Record) (Entry, error) {
	var (
		e   = Entry{ID: id}
		err error
	)
	if e.TitleID, err = stringField(rec, FieldTitleID); err != nil {
		return Entry{}, err
	}
	if e.Location, err = stringField(rec, FieldLocation); err != nil {
		return Entry{}, err
	}
	if e.Date, err = stringField(rec, FieldDate); err != nil {
		return Entry{}, err
	}
	if e.Details, err = stringField(rec, FieldDetails); err != nil {
		return Entry{}, err
	}

	rawMode, err := stringField(rec, FieldTransportation)
	if err != nil {
		return Entry{}, err
	}
	if e.Transportation, err = ParseTransportation(rawMode); err != nil {
		return Entry{}, err
	}

	if e.Weather, err = weatherField(rec, FieldWeather); err != nil {
		return Entry{}, err
	}
	if e.Latitude, err = floatField(rec, FieldLatitude); err != nil {
		return Entry{}, err
	}
	if e.Longitude, err = floatField(rec, FieldLongitude); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Record maps t to its stored form. Entries are stored as their own
// documents and are not embedded.
func (t Title) Record() Record {
	return Record{
		FieldTitle:     t.Title,
		FieldLocation:  t.Location,
		FieldStartDate: t.StartDate,
		FieldEndDate:   t.EndDate,
	}
}

// TitleFromRecord maps a stored record back into a Title without entries.
func TitleFromRecord(id string, rec Record) (Title, error) {
	var (
		t   = Title{ID: id}
		err error
	)
	if t.Title, err = stringField(rec, FieldTitle); err != nil {
		return Title{}, err
	}
	if t.Location, err = stringField(rec, FieldLocation); err != nil {
		return Title{}, err
	}
	if t.StartDate, err = stringField(rec, FieldStartDate); err != nil {
		return Title{}, err
	}
	if t.EndDate, err = stringField(rec, FieldEndDate); err != nil {
		return Title{}, err
	}
	return t, nil
}

func stringField(rec Record, key string) (string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q is %T, want string", ErrMalformed, key, v)
	}
	return s, nil
}

func floatField(rec Record, key string) (*float64, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", ErrMalformed, key, err)
	}
	return &f, nil
}

func weatherField(rec Record, key string) (*Weather, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil, nil
	}
	var m map[string]any
	switch raw := v.(type) {
	case map[string]any:
		m = raw
	case Record:
		m = raw
	default:
		return nil, fmt.Errorf("%w: field %q is %T, want object", ErrMalformed, key, v)
	}

	status, err := stringField(m, "status")
	if err != nil {
		return nil, err
	}
	w := &Weather{Status: status}
	if t, ok := m["temperature"]; ok && t != nil {
		if w.Temperature, err = toFloat(t); err != nil {
			return nil, fmt.Errorf("%w: weather temperature: %v", ErrMalformed, err)
		}
	}
	return w, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("%T is not a number", v)
	}
}
