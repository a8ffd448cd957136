package schedule

import (
	"fmt"
	"strings"
	"time"
)

// CreationRequest carries everything the title-creation flow collects:
// destination, date range, and trip name. The caller's session owns it.
type CreationRequest struct {
	Destination string `json:"destination"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Name        string `json:"name"`
}

// Validate enforces the title rules:
//   - destination and name must be non-blank,
//   - both dates must be ISO-8601 calendar dates,
//   - the start date must not be after the end date.
func (r CreationRequest) Validate() error {
	if strings.TrimSpace(r.Destination) == "" {
		return fmt.Errorf("%w: destination is required", ErrValidation)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	start, err := ParseDate(r.StartDate)
	if err != nil {
		return fmt.Errorf("%w: start_date: %v", ErrValidation, err)
	}
	end, err := ParseDate(r.EndDate)
	if err != nil {
		return fmt.Errorf("%w: end_date: %v", ErrValidation, err)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end_date must not be before start_date", ErrValidation)
	}
	return nil
}

// Title builds the unsaved title described by r. Call Validate first.
func (r CreationRequest) Title() Title {
	return Title{
		Title:     strings.TrimSpace(r.Name),
		Location:  strings.TrimSpace(r.Destination),
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Entries:   []Entry{},
	}
}

// ValidateEntry enforces the rules shared by add and update.
func ValidateEntry(e Entry) error {
	if strings.TrimSpace(e.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	if _, err := ParseDate(e.Date); err != nil {
		return fmt.Errorf("%w: date: %v", ErrValidation, err)
	}
	if e.Transportation != "" && !e.Transportation.Valid() {
		return fmt.Errorf("%w: unknown transportation %q", ErrValidation, e.Transportation)
	}
	return nil
}

// ParseDate parses an ISO-8601 calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
