package api

import (
	"context"

	"github.com/neexbeast/tripsync/internal/provider"
	"github.com/neexbeast/tripsync/internal/schedule"
)

// EntrySync defines the synchronized entry list operations needed by handlers.
type EntrySync interface {
	Entries() []schedule.Entry
	Watch(ctx context.Context) <-chan []schedule.Entry
	Add(ctx context.Context, e schedule.Entry) (schedule.Entry, error)
	Update(ctx context.Context, e schedule.Entry) (schedule.Entry, error)
	Delete(ctx context.Context, id string) error
	FindByID(id string) (schedule.Entry, bool)
	Select(e schedule.Entry)
	Selected() (schedule.Entry, bool)
}

// TitleStore defines the trip operations needed by handlers.
type TitleStore interface {
	Create(ctx context.Context, req schedule.CreationRequest) (schedule.Title, error)
	List(ctx context.Context) ([]schedule.Title, error)
	Get(ctx context.Context, id string) (schedule.Title, error)
	Delete(ctx context.Context, id string) error
}

// TitleSelection holds the trip currently being viewed.
type TitleSelection interface {
	Set(t schedule.Title)
	Get() (schedule.Title, bool)
	Clear()
}

// PlaceRecommender defines the recommendation search needed by handlers.
type PlaceRecommender interface {
	Search(ctx context.Context, region string, keywords []string) ([]provider.Place, error)
}

// EntryEnricher schedules background enrichment of a newly stored entry.
type EntryEnricher interface {
	Trigger(e schedule.Entry)
}

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}
