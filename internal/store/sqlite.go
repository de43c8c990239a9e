package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uktrade/directory-api-sub000/internal/feed"
	"github.com/uktrade/directory-api-sub000/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file (":memory:" for tests).
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	if dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("Failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) OrganizationSource() feed.Source {
	return sourceFunc(func(ctx context.Context, after models.Cursor, limit int) ([]feed.Record, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, name, number, website, verified, modified_at
			FROM organizations
			WHERE (modified_at = ? AND id > ?) OR (modified_at > ?)
			ORDER BY modified_at ASC, id ASC
			LIMIT ?`,
			after.Timestamp, after.ID, after.Timestamp, limit)
		if err != nil {
			slog.Error("SQLiteStore organization query failed", "error", err)
			return nil, fmt.Errorf("failed to query organizations: %w", err)
		}
		return scanOrganizations(rows)
	})
}

func (s *SQLiteStore) VerificationSource() feed.Source {
	return sourceFunc(func(ctx context.Context, after models.Cursor, limit int) ([]feed.Record, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT v.id, v.organization_id, v.method, v.created_at, o.id, o.name
			FROM verification_events v
			LEFT JOIN organizations o ON o.id = v.organization_id
			WHERE (v.created_at = ? AND v.id > ?) OR (v.created_at > ?)
			ORDER BY v.created_at ASC, v.id ASC
			LIMIT ?`,
			after.Timestamp, after.ID, after.Timestamp, limit)
		if err != nil {
			slog.Error("SQLiteStore verification query failed", "error", err)
			return nil, fmt.Errorf("failed to query verification events: %w", err)
		}
		return scanVerifications(rows)
	})
}

func (s *SQLiteStore) ExportPlanSource() feed.Source {
	return sourceFunc(func(ctx context.Context, after models.Cursor, limit int) ([]feed.Record, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT e.id, e.organization_id, e.section, e.answers, e.modified_at, o.id
			FROM export_plan_sections e
			LEFT JOIN organizations o ON o.id = e.organization_id
			WHERE (e.modified_at = ? AND e.id > ?) OR (e.modified_at > ?)
			ORDER BY e.modified_at ASC, e.id ASC
			LIMIT ?`,
			after.Timestamp, after.ID, after.Timestamp, limit)
		if err != nil {
			slog.Error("SQLiteStore export plan query failed", "error", err)
			return nil, fmt.Errorf("failed to query export plan sections: %w", err)
		}
		return scanExportPlans(rows)
	})
}

func (s *SQLiteStore) UpsertOrganization(ctx context.Context, org models.Organization) (int64, error) {
	if org.ModifiedAt == 0 {
		org.ModifiedAt = watermarkNow()
	} else {
		org.ModifiedAt = watermark(org.ModifiedAt)
	}
	if org.ID > 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO organizations (id, name, number, website, verified, modified_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, number = excluded.number, website = excluded.website,
				verified = excluded.verified, modified_at = excluded.modified_at`,
			org.ID, org.Name, org.Number, org.Website, org.Verified, org.ModifiedAt)
		if err != nil {
			slog.Error("SQLiteStore UpsertOrganization failed", "error", err, "id", org.ID)
			return 0, fmt.Errorf("failed to upsert organization %d: %w", org.ID, err)
		}
		return org.ID, nil
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (name, number, website, verified, modified_at)
		VALUES (?, ?, ?, ?, ?)`,
		org.Name, org.Number, org.Website, org.Verified, org.ModifiedAt)
	if err != nil {
		slog.Error("SQLiteStore UpsertOrganization insert failed", "error", err, "name", org.Name)
		return 0, fmt.Errorf("failed to insert organization %s: %w", org.Name, err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) DeleteOrganization(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id); err != nil {
		slog.Error("SQLiteStore DeleteOrganization failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete organization %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) RecordVerification(ctx context.Context, ev models.VerificationEvent) (int64, error) {
	if ev.CreatedAt == 0 {
		ev.CreatedAt = watermarkNow()
	} else {
		ev.CreatedAt = watermark(ev.CreatedAt)
	}
	if ev.ID > 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO verification_events (id, organization_id, method, created_at)
			VALUES (?, ?, ?, ?)`,
			ev.ID, ev.OrganizationID, ev.Method, ev.CreatedAt)
		if err != nil {
			slog.Error("SQLiteStore RecordVerification failed", "error", err, "id", ev.ID)
			return 0, fmt.Errorf("failed to record verification %d: %w", ev.ID, err)
		}
		return ev.ID, nil
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_events (organization_id, method, created_at)
		VALUES (?, ?, ?)`,
		ev.OrganizationID, ev.Method, ev.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore RecordVerification insert failed", "error", err, "organization_id", ev.OrganizationID)
		return 0, fmt.Errorf("failed to record verification for organization %d: %w", ev.OrganizationID, err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpsertExportPlanSection(ctx context.Context, sec models.ExportPlanSection) error {
	if sec.ModifiedAt == 0 {
		sec.ModifiedAt = watermarkNow()
	} else {
		sec.ModifiedAt = watermark(sec.ModifiedAt)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO export_plan_sections (organization_id, section, answers, modified_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(organization_id, section) DO UPDATE SET
			answers = excluded.answers, modified_at = excluded.modified_at`,
		sec.OrganizationID, sec.Section, sec.AnswersJSON, sec.ModifiedAt)
	if err != nil {
		slog.Error("SQLiteStore UpsertExportPlanSection failed", "error", err, "organization_id", sec.OrganizationID, "section", sec.Section)
		return fmt.Errorf("failed to upsert export plan section %s: %w", sec.Section, err)
	}
	return nil
}

// Ping reports database reachability.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
