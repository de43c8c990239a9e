// Package feed implements the keyset pagination machinery of the activity
// stream: the cursor codec, the generic pager and the per-entity item
// assemblers.
//
// The pager makes an inherently mutating, multi-table data source behave like
// a stable, resumable, monotonically advancing feed. Records hard-deleted
// while paginating are skipped rather than emitted as tombstones; the change
// source keeps no tombstone table, so this is a known completeness gap of the
// feed, not a bug.
package feed

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/uktrade/directory-api-sub000/internal/models"
)

// CursorParam is the query string parameter carrying the cursor.
const CursorParam = "after"

// DecodeCursor parses a raw cursor of the form "<timestamp>_<id>". An absent
// cursor decodes to the zero cursor, so a caller with no prior state walks
// the full historical feed from the beginning. An unparsable cursor is a
// client error, never a crash.
func DecodeCursor(raw string) (models.Cursor, error) {
	if raw == "" {
		return models.Cursor{}, nil
	}
	tsPart, idPart, found := strings.Cut(raw, "_")
	if !found {
		return models.Cursor{}, fmt.Errorf("cursor %q has no separator: %w", raw, models.ErrInvalidCursor)
	}
	ts, err := strconv.ParseFloat(tsPart, 64)
	if err != nil {
		return models.Cursor{}, fmt.Errorf("cursor timestamp %q: %w", tsPart, models.ErrInvalidCursor)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return models.Cursor{}, fmt.Errorf("cursor id %q: %w", idPart, models.ErrInvalidCursor)
	}
	if ts < 0 || id < 0 {
		return models.Cursor{}, fmt.Errorf("negative cursor %q: %w", raw, models.ErrInvalidCursor)
	}
	return models.Cursor{Timestamp: ts, ID: id}, nil
}

// EncodeCursor renders a cursor in the wire format. The zero cursor encodes
// as "0.000000_0".
func EncodeCursor(c models.Cursor) string {
	return fmt.Sprintf("%f_%d", c.Timestamp, c.ID)
}

// NextURL builds the fully-qualified "next" link for a page: the original
// request URL with the after parameter replaced by the new cursor.
func NextURL(requestURL string, c models.Cursor) (string, error) {
	u, err := url.Parse(requestURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse request URL for next link: %w", err)
	}
	q := u.Query()
	q.Set(CursorParam, EncodeCursor(c))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
