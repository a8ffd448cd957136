package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/tripsync/internal/schedule"
)

// Querier abstracts the subset of pgxpool.Pool used by Postgres.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres keeps every collection in one JSONB documents table and announces
// writes through a Notifier.
type Postgres struct {
	q        Querier
	notifier Notifier
	log      *slog.Logger
}

// NewPostgres constructs a Postgres store backed by the given pool.
func NewPostgres(pool *pgxpool.Pool, notifier Notifier, log *slog.Logger) *Postgres {
	return &Postgres{q: pool, notifier: notifier, log: log}
}

// NewPostgresWithQuerier constructs a Postgres store with a custom Querier (for tests).
func NewPostgresWithQuerier(q Querier, notifier Notifier, log *slog.Logger) *Postgres {
	return &Postgres{q: q, notifier: notifier, log: log}
}

// Add inserts rec under a new UUID.
func (p *Postgres) Add(ctx context.Context, collection string, rec schedule.Record) (string, error) {
	dataJSON, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshaling %s record: %w", collection, err)
	}

	const q = `
		INSERT INTO documents (id, collection, data)
		VALUES ($1, $2, $3)
	`

	id := uuid.NewString()
	if _, err := p.q.Exec(ctx, q, id, collection, dataJSON); err != nil {
		return "", fmt.Errorf("inserting into %s: %w", collection, err)
	}

	p.announce(ctx, collection)
	return id, nil
}

// Set overwrites the data of an existing document.
func (p *Postgres) Set(ctx context.Context, collection, id string, rec schedule.Record) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("updating %s/%s: %w", collection, id, schedule.ErrNotFound)
	}

	dataJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling %s record: %w", collection, err)
	}

	const q = `
		UPDATE documents
		SET data       = $3,
		    updated_at = NOW()
		WHERE collection = $1
		AND id = $2
	`

	tag, err := p.q.Exec(ctx, q, collection, id, dataJSON)
	if err != nil {
		return fmt.Errorf("updating %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating %s/%s: %w", collection, id, schedule.ErrNotFound)
	}

	p.announce(ctx, collection)
	return nil
}

// Get retrieves one document by id.
func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, fmt.Errorf("getting %s/%s: %w", collection, id, schedule.ErrNotFound)
	}

	const q = `
		SELECT id::text, data
		FROM documents
		WHERE collection = $1
		AND id = $2
	`

	var (
		d        Document
		dataJSON []byte
	)
	if err := p.q.QueryRow(ctx, q, collection, id).Scan(&d.ID, &dataJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("getting %s/%s: %w", collection, id, schedule.ErrNotFound)
		}
		return Document{}, fmt.Errorf("querying %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(dataJSON, &d.Data); err != nil {
		return Document{}, fmt.Errorf("unmarshaling %s/%s: %w", collection, id, err)
	}
	return d, nil
}

// Delete removes one document by id.
func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, schedule.ErrNotFound)
	}

	const q = `DELETE FROM documents WHERE collection = $1 AND id = $2`

	tag, err := p.q.Exec(ctx, q, collection, id)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, schedule.ErrNotFound)
	}

	p.announce(ctx, collection)
	return nil
}

// List returns every document in the collection ordered by insertion.
func (p *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	const q = `
		SELECT id::text, data
		FROM documents
		WHERE collection = $1
		ORDER BY seq
	`

	rows, err := p.q.Query(ctx, q, collection)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	return scanDocuments(rows, collection)
}

// QueryEquals uses the JSONB @> containment operator, so every filter
// field must be present with an equal value.
func (p *Postgres) QueryEquals(ctx context.Context, collection string, f Filter) ([]Document, error) {
	filter, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshaling JSONB filter: %w", err)
	}

	const q = `
		SELECT id::text, data
		FROM documents
		WHERE collection = $1
		AND data @> $2::jsonb
		ORDER BY seq
	`

	rows, err := p.q.Query(ctx, q, collection, string(filter))
	if err != nil {
		return nil, fmt.Errorf("querying %s by fields: %w", collection, err)
	}
	return scanDocuments(rows, collection)
}

// Subscribe opens a live feed driven by the store's notifier.
func (p *Postgres) Subscribe(ctx context.Context, collection string, onSnapshot func([]Document), onError func(error)) (Subscription, error) {
	return subscribe(ctx, p, p.notifier, collection, onSnapshot, onError)
}

// announce tells feeds about a committed write. A lost signal delays
// subscribers until the next write; it does not undo the write.
func (p *Postgres) announce(ctx context.Context, collection string) {
	if err := p.notifier.Notify(ctx, collection); err != nil {
		p.log.Warn("change notification failed", "collection", collection, "err", err)
	}
}

func scanDocuments(rows pgx.Rows, collection string) ([]Document, error) {
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var (
			d        Document
			dataJSON []byte
		)
		if err := rows.Scan(&d.ID, &dataJSON); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", collection, err)
		}
		if err := json.Unmarshal(dataJSON, &d.Data); err != nil {
			return nil, fmt.Errorf("unmarshaling %s/%s: %w", collection, d.ID, err)
		}
		docs = append(docs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", collection, err)
	}
	return docs, nil
}
