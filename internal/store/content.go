package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"contentcal/internal/model"
)

var ErrInvalidItem = errors.New("invalid content item")

const schema = `
CREATE TABLE IF NOT EXISTS content_items (
	id             UUID PRIMARY KEY,
	title          TEXT NOT NULL,
	description    TEXT,
	platform       TEXT NOT NULL CHECK (platform IN ('social', 'email', 'blog')),
	status         TEXT NOT NULL CHECK (status IN ('draft', 'scheduled', 'posted')),
	scheduled_date TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS content_items_scheduled_date_idx ON content_items (scheduled_date);
`

const contentColumns = `id, title, COALESCE(description, '') AS description, platform, status, scheduled_date, created_at, updated_at`

// ContentRepository persists content items in the content_items table.
type ContentRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db, now: time.Now}
}

// EnsureSchema creates the table and index when missing.
func (r *ContentRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure content schema: %w", err)
	}
	return nil
}

// CreateContentItem inserts one candidate. An empty description is stored
// as NULL.
func (r *ContentRepository) CreateContentItem(ctx context.Context, c model.CandidateItem) (model.ContentItem, error) {
	if c.Title == "" {
		return model.ContentItem{}, fmt.Errorf("%w: title is required", ErrInvalidItem)
	}

	now := r.now().UTC()
	var desc sql.NullString
	if c.Description != "" {
		desc = sql.NullString{String: c.Description, Valid: true}
	}

	query := `
		INSERT INTO content_items (id, title, description, platform, status, scheduled_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + contentColumns

	var item model.ContentItem
	err := r.db.QueryRowxContext(ctx, query,
		uuid.NewString(), c.Title, desc, string(c.Platform), string(c.Status), c.ScheduledDate.UTC(), now,
	).StructScan(&item)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23514" { // check_violation
			return model.ContentItem{}, fmt.Errorf("%w: %s", ErrInvalidItem, pqErr.Message)
		}
		return model.ContentItem{}, fmt.Errorf("insert content item: %w", err)
	}
	return item, nil
}

// ListContentItems returns all items ordered by scheduled date.
func (r *ContentRepository) ListContentItems(ctx context.Context) ([]model.ContentItem, error) {
	items := []model.ContentItem{}
	query := `SELECT ` + contentColumns + ` FROM content_items ORDER BY scheduled_date ASC, created_at ASC`
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list content items: %w", err)
	}
	return items, nil
}
