package state

import (
	"context"

	"github.com/neexbeast/tripsync/internal/schedule"
)

// Selection is the trip currently being viewed. One surface sets it and any
// number of others read or watch it. Values are copied in and out, so a title
// read before a later Set never changes underneath its reader.
type Selection struct {
	cell *Cell[schedule.Title]
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{cell: NewCell(schedule.Title.Clone)}
}

// Set overwrites the selected title.
func (s *Selection) Set(t schedule.Title) { s.cell.Set(t) }

// Get returns the selected title, if any.
func (s *Selection) Get() (schedule.Title, bool) { return s.cell.Get() }

// Clear drops the selection.
func (s *Selection) Clear() { s.cell.Clear() }

// Watch streams selection changes until ctx is done.
func (s *Selection) Watch(ctx context.Context) <-chan schedule.Title { return s.cell.Watch(ctx) }
