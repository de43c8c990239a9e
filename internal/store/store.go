// Package store provides the relational change sources backing the activity
// stream feeds.
//
// It includes SQLite and PostgreSQL backends behind one interface. Each
// backend exposes an ordered keyset query per record family plus the write
// helpers used by seeding and tests.
package store

import (
	"context"
	"math"
	"time"

	"github.com/uktrade/directory-api-sub000/internal/feed"
	"github.com/uktrade/directory-api-sub000/internal/models"
)

// Store is the persistence interface consumed by the API layer.
type Store interface {
	// OrganizationSource returns the keyset query source for organizations.
	OrganizationSource() feed.Source
	// VerificationSource returns the keyset query source for verification events.
	VerificationSource() feed.Source
	// ExportPlanSource returns the keyset query source for export-plan sections.
	ExportPlanSource() feed.Source

	// UpsertOrganization inserts or updates an organization. A zero ID lets
	// the database assign one; a zero ModifiedAt takes the current time.
	UpsertOrganization(ctx context.Context, org models.Organization) (int64, error)
	// DeleteOrganization hard-deletes an organization row.
	DeleteOrganization(ctx context.Context, id int64) error
	// RecordVerification appends a verification event.
	RecordVerification(ctx context.Context, ev models.VerificationEvent) (int64, error)
	// UpsertExportPlanSection inserts or updates one export-plan section,
	// keyed by (organization, section).
	UpsertExportPlanSection(ctx context.Context, sec models.ExportPlanSection) error

	// Ping reports backend reachability, used by the health endpoint.
	Ping(ctx context.Context) error
	// Close closes the underlying database.
	Close() error
}

// Opts holds configuration for store constructors.
type Opts struct {
	DSN string
}

// Option configures store constructors.
type Option func(*Opts)

// WithDSN sets the database connection string (file path for SQLite,
// connection URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// sourceFunc adapts a query closure to feed.Source.
type sourceFunc func(ctx context.Context, after models.Cursor, limit int) ([]feed.Record, error)

func (f sourceFunc) FetchChanges(ctx context.Context, after models.Cursor, limit int) ([]feed.Record, error) {
	return f(ctx, after, limit)
}

// watermark truncates a timestamp to microsecond precision so stored values
// round-trip the cursor wire encoding ("%f", six decimals) exactly. Without
// this the keyset equality arm of the predicate would never match and
// boundary rows would be refetched.
func watermark(ts float64) float64 {
	return math.Round(ts*1e6) / 1e6
}

// watermarkNow returns the current time as a microsecond-precision watermark.
func watermarkNow() float64 {
	return watermark(float64(time.Now().UnixNano()) / 1e9)
}
