package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uktrade/directory-api-sub000/internal/models"
)

// Record is one row of a change source. The (timestamp, id) pair it exposes
// drives the keyset predicate; ids must be monotonically assigned and never
// reused for the walk to visit every record exactly once.
type Record interface {
	ChangeID() int64
	ChangeTimestamp() float64
}

// Source executes the ordered keyset query for one record family. The
// predicate is fixed:
//
//	(timestamp = after.Timestamp AND id > after.ID) OR (timestamp > after.Timestamp)
//
// ordered by (timestamp ASC, id ASC), capped at limit rows. Ordering by
// timestamp alone is insufficient: batch writes and coarse clocks produce
// ties, and without the id tie-break a walk would skip or repeat rows.
type Source interface {
	FetchChanges(ctx context.Context, after models.Cursor, limit int) ([]Record, error)
}

// Shaper maps a fetched record to a feed item. It returns false to exclude
// the record from the emitted page; exclusion never affects the watermark.
type Shaper func(Record) (models.FeedItem, bool)

// Pager runs bounded keyset fetches against one source and shapes the result
// into feed pages. One Pager instance serves each entity type; the pagination
// algorithm itself is shared.
type Pager struct {
	source Source
	shaper Shaper
	limit  int
}

// NewPager creates a pager. A non-positive or oversized limit is clamped to
// models.MaxPageSize so each call's cost stays constant regardless of backlog.
func NewPager(source Source, shaper Shaper, limit int) *Pager {
	if limit <= 0 || limit > models.MaxPageSize {
		limit = models.MaxPageSize
	}
	return &Pager{source: source, shaper: shaper, limit: limit}
}

// Page fetches one bounded page after the given cursor.
//
// The new watermark is always taken from the last fetched row, before the
// shaper filters anything, so excluded records are still skipped on the next
// call and the cursor can never stall. A zero-row fetch is the only true
// end-of-stream signal: it yields no next cursor.
func (p *Pager) Page(ctx context.Context, after models.Cursor) (models.FeedPage, error) {
	records, err := p.source.FetchChanges(ctx, after, p.limit)
	if err != nil {
		return models.FeedPage{}, fmt.Errorf("failed to fetch changes: %w", err)
	}
	if len(records) == 0 {
		slog.Debug("Pager.Page: end of stream", "after_ts", after.Timestamp, "after_id", after.ID)
		return models.FeedPage{Items: []models.FeedItem{}}, nil
	}

	last := records[len(records)-1]
	next := models.Cursor{Timestamp: last.ChangeTimestamp(), ID: last.ChangeID()}

	items := make([]models.FeedItem, 0, len(records))
	for _, rec := range records {
		if item, ok := p.shaper(rec); ok {
			items = append(items, item)
		}
	}
	slog.Debug("Pager.Page: page assembled", "fetched", len(records), "emitted", len(items), "next_ts", next.Timestamp, "next_id", next.ID)
	return models.FeedPage{Items: items, NextCursor: &next}, nil
}
