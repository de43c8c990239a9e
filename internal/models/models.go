// Package models defines the core data structures for the activity stream feed.
//
// It includes the cursor/watermark pair, feed items and pages, the underlying
// record families, and the error taxonomy shared across modules.
package models

import "errors"

// Feed configuration constants shared by the pager and the API layer.
const (
	// MaxPageSize caps the number of rows fetched per feed call.
	MaxPageSize = 500
)

// Error variables for better error handling and testability.
var (
	// ErrNoCredentials indicates the Authorization header was absent.
	ErrNoCredentials = errors.New("authentication credentials were not provided")
	// ErrBadCredentials covers every other authentication failure: malformed
	// header, unknown key, MAC mismatch, stale timestamp, replayed nonce.
	// They are collapsed into one class so the response cannot be used as an
	// oracle for why authentication failed.
	ErrBadCredentials = errors.New("incorrect authentication credentials")
	// ErrInvalidCursor indicates an unparsable "after" parameter.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrSigningFailure indicates the response MAC could not be computed.
	// A response must never be sent unsigned, so this aborts the request.
	ErrSigningFailure = errors.New("failed to sign response")
)

// Cursor is the feed watermark: seconds since epoch plus a tie-break id.
// It totally orders the change set when combined with the stable secondary
// sort on id. The server produces it, the caller round-trips it verbatim.
type Cursor struct {
	Timestamp float64
	ID        int64
}

// IsZero reports whether the cursor is the beginning-of-feed default.
func (c Cursor) IsZero() bool {
	return c.Timestamp == 0 && c.ID == 0
}

// FeedItem is a denormalized, versionless snapshot of one underlying record
// at fetch time, tagged with a stable global id and a publication timestamp.
type FeedItem struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Published string         `json:"published"`
	Object    map[string]any `json:"object"`
}

// FeedPage is the result of one bounded feed call. Items may be empty while
// NextCursor is still set: the fetched window contained only records that the
// assembler excluded. Callers must keep polling until NextCursor is nil.
type FeedPage struct {
	Items      []FeedItem
	NextCursor *Cursor
}

// Organization is a company record in the change source. Unverified
// organizations are fetched by the pager but excluded from emitted items.
type Organization struct {
	ID         int64
	Name       string
	Number     string
	Website    string
	Verified   bool
	ModifiedAt float64
}

// ChangeID returns the tie-break id used by the keyset pagination predicate.
func (o Organization) ChangeID() int64 { return o.ID }

// ChangeTimestamp returns the watermark timestamp of the record.
func (o Organization) ChangeTimestamp() float64 { return o.ModifiedAt }

// VerificationEvent records one verification of an organization. ParentExists
// is false when the owning organization was hard-deleted after the event was
// written; such events are skipped without stalling the cursor.
type VerificationEvent struct {
	ID             int64
	OrganizationID int64
	Method         string
	CreatedAt      float64
	ParentExists   bool
	OrgName        string
}

func (v VerificationEvent) ChangeID() int64          { return v.ID }
func (v VerificationEvent) ChangeTimestamp() float64 { return v.CreatedAt }

// ExportPlanSection is one answered section of an organization's export plan.
type ExportPlanSection struct {
	ID             int64
	OrganizationID int64
	Section        string
	AnswersJSON    string
	ModifiedAt     float64
	ParentExists   bool
}

func (e ExportPlanSection) ChangeID() int64          { return e.ID }
func (e ExportPlanSection) ChangeTimestamp() float64 { return e.ModifiedAt }

// Detail is the JSON error envelope used by 4xx responses.
type Detail struct {
	Detail string `json:"detail"`
}

// Error builds an error envelope with the given detail message.
func Error(detail string) Detail {
	return Detail{Detail: detail}
}
