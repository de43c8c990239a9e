package store

import (
	"database/sql"
	"fmt"

	"github.com/uktrade/directory-api-sub000/internal/feed"
	"github.com/uktrade/directory-api-sub000/internal/models"
)

// scanOrganizations scans organization rows in watermark order.
func scanOrganizations(rows *sql.Rows) ([]feed.Record, error) {
	defer rows.Close()
	var records []feed.Record
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Number, &org.Website, &org.Verified, &org.ModifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization row: %w", err)
		}
		records = append(records, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organization rows: %w", err)
	}
	return records, nil
}

// scanVerifications scans verification event rows. The left-joined parent
// columns are nullable: a missing parent marks the event as orphaned.
func scanVerifications(rows *sql.Rows) ([]feed.Record, error) {
	defer rows.Close()
	var records []feed.Record
	for rows.Next() {
		var ev models.VerificationEvent
		var parentID sql.NullInt64
		var orgName sql.NullString
		if err := rows.Scan(&ev.ID, &ev.OrganizationID, &ev.Method, &ev.CreatedAt, &parentID, &orgName); err != nil {
			return nil, fmt.Errorf("failed to scan verification row: %w", err)
		}
		ev.ParentExists = parentID.Valid
		ev.OrgName = orgName.String
		records = append(records, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate verification rows: %w", err)
	}
	return records, nil
}

// scanExportPlans scans export-plan section rows.
func scanExportPlans(rows *sql.Rows) ([]feed.Record, error) {
	defer rows.Close()
	var records []feed.Record
	for rows.Next() {
		var sec models.ExportPlanSection
		var parentID sql.NullInt64
		if err := rows.Scan(&sec.ID, &sec.OrganizationID, &sec.Section, &sec.AnswersJSON, &sec.ModifiedAt, &parentID); err != nil {
			return nil, fmt.Errorf("failed to scan export plan row: %w", err)
		}
		sec.ParentExists = parentID.Valid
		records = append(records, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate export plan rows: %w", err)
	}
	return records, nil
}
