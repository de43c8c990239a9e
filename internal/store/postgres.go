package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/uktrade/directory-api-sub000/internal/feed"
	"github.com/uktrade/directory-api-sub000/internal/models"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) OrganizationSource() feed.Source {
	return sourceFunc(func(ctx context.Context, after models.Cursor, limit int) ([]feed.Record, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, name, number, website, verified, modified_at
			FROM organizations
			WHERE (modified_at = $1 AND id > $2) OR (modified_at > $1)
			ORDER BY modified_at ASC, id ASC
			LIMIT $3`,
			after.Timestamp, after.ID, limit)
		if err != nil {
			slog.Error("PostgresStore organization query failed", "error", err)
			return nil, fmt.Errorf("failed to query organizations: %w", err)
		}
		return scanOrganizations(rows)
	})
}

func (s *PostgresStore) VerificationSource() feed.Source {
	return sourceFunc(func(ctx context.Context, after models.Cursor, limit int) ([]feed.Record, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT v.id, v.organization_id, v.method, v.created_at, o.id, o.name
			FROM verification_events v
			LEFT JOIN organizations o ON o.id = v.organization_id
			WHERE (v.created_at = $1 AND v.id > $2) OR (v.created_at > $1)
			ORDER BY v.created_at ASC, v.id ASC
			LIMIT $3`,
			after.Timestamp, after.ID, limit)
		if err != nil {
			slog.Error("PostgresStore verification query failed", "error", err)
			return nil, fmt.Errorf("failed to query verification events: %w", err)
		}
		return scanVerifications(rows)
	})
}

func (s *PostgresStore) ExportPlanSource() feed.Source {
	return sourceFunc(func(ctx context.Context, after models.Cursor, limit int) ([]feed.Record, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT e.id, e.organization_id, e.section, e.answers, e.modified_at, o.id
			FROM export_plan_sections e
			LEFT JOIN organizations o ON o.id = e.organization_id
			WHERE (e.modified_at = $1 AND e.id > $2) OR (e.modified_at > $1)
			ORDER BY e.modified_at ASC, e.id ASC
			LIMIT $3`,
			after.Timestamp, after.ID, limit)
		if err != nil {
			slog.Error("PostgresStore export plan query failed", "error", err)
			return nil, fmt.Errorf("failed to query export plan sections: %w", err)
		}
		return scanExportPlans(rows)
	})
}

func (s *PostgresStore) UpsertOrganization(ctx context.Context, org models.Organization) (int64, error) {
	if org.ModifiedAt == 0 {
		org.ModifiedAt = watermarkNow()
	} else {
		org.ModifiedAt = watermark(org.ModifiedAt)
	}
	if org.ID > 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO organizations (id, name, number, website, verified, modified_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, number = excluded.number, website = excluded.website,
				verified = excluded.verified, modified_at = excluded.modified_at`,
			org.ID, org.Name, org.Number, org.Website, org.Verified, org.ModifiedAt)
		if err != nil {
			slog.Error("PostgresStore UpsertOrganization failed", "error", err, "id", org.ID)
			return 0, fmt.Errorf("failed to upsert organization %d: %w", org.ID, err)
		}
		return org.ID, nil
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO organizations (name, number, website, verified, modified_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		org.Name, org.Number, org.Website, org.Verified, org.ModifiedAt).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore UpsertOrganization insert failed", "error", err, "name", org.Name)
		return 0, fmt.Errorf("failed to insert organization %s: %w", org.Name, err)
	}
	return id, nil
}

func (s *PostgresStore) DeleteOrganization(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteOrganization failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete organization %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) RecordVerification(ctx context.Context, ev models.VerificationEvent) (int64, error) {
	if ev.CreatedAt == 0 {
		ev.CreatedAt = watermarkNow()
	} else {
		ev.CreatedAt = watermark(ev.CreatedAt)
	}
	if ev.ID > 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO verification_events (id, organization_id, method, created_at)
			VALUES ($1, $2, $3, $4)`,
			ev.ID, ev.OrganizationID, ev.Method, ev.CreatedAt)
		if err != nil {
			slog.Error("PostgresStore RecordVerification failed", "error", err, "id", ev.ID)
			return 0, fmt.Errorf("failed to record verification %d: %w", ev.ID, err)
		}
		return ev.ID, nil
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO verification_events (organization_id, method, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`,
		ev.OrganizationID, ev.Method, ev.CreatedAt).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore RecordVerification insert failed", "error", err, "organization_id", ev.OrganizationID)
		return 0, fmt.Errorf("failed to record verification for organization %d: %w", ev.OrganizationID, err)
	}
	return id, nil
}

func (s *PostgresStore) UpsertExportPlanSection(ctx context.Context, sec models.ExportPlanSection) error {
	if sec.ModifiedAt == 0 {
		sec.ModifiedAt = watermarkNow()
	} else {
		sec.ModifiedAt = watermark(sec.ModifiedAt)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO export_plan_sections (organization_id, section, answers, modified_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, section) DO UPDATE SET
			answers = excluded.answers, modified_at = excluded.modified_at`,
		sec.OrganizationID, sec.Section, sec.AnswersJSON, sec.ModifiedAt)
	if err != nil {
		slog.Error("PostgresStore UpsertExportPlanSection failed", "error", err, "organization_id", sec.OrganizationID, "section", sec.Section)
		return fmt.Errorf("failed to upsert export plan section %s: %w", sec.Section, err)
	}
	return nil
}

// Ping reports database reachability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
