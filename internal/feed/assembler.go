package feed

import (
	"fmt"
	"math"
	"time"

	"github.com/uktrade/directory-api-sub000/internal/models"
)

// publishedAt renders a watermark timestamp as the item publication time.
func publishedAt(ts float64) string {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC().Format(time.RFC3339)
}

// globalID builds the stable global id of a feed item.
func globalID(kind string, id int64) string {
	return fmt.Sprintf("dit:directory:%s:%d:Update", kind, id)
}

// ShapeOrganization maps an organization record to a feed item. Organizations
// that were never verified are excluded: they are not published externally.
func ShapeOrganization(rec Record) (models.FeedItem, bool) {
	org, ok := rec.(models.Organization)
	if !ok || !org.Verified {
		return models.FeedItem{}, false
	}
	return models.FeedItem{
		ID:        globalID("Organization", org.ID),
		Type:      "Update",
		Published: publishedAt(org.ModifiedAt),
		Object: map[string]any{
			"id":      globalID("Organization", org.ID),
			"type":    "dit:directory:Organization",
			"name":    org.Name,
			"number":  org.Number,
			"website": org.Website,
		},
	}, true
}

// ShapeVerification maps a verification event to a feed item. Events whose
// parent organization was hard-deleted after the event was written are
// skipped; the watermark still advances past them.
func ShapeVerification(rec Record) (models.FeedItem, bool) {
	ev, ok := rec.(models.VerificationEvent)
	if !ok || !ev.ParentExists {
		return models.FeedItem{}, false
	}
	return models.FeedItem{
		ID:        globalID("Verification", ev.ID),
		Type:      "Update",
		Published: publishedAt(ev.CreatedAt),
		Object: map[string]any{
			"id":           globalID("Verification", ev.ID),
			"type":         "dit:directory:Verification",
			"method":       ev.Method,
			"organization": globalID("Organization", ev.OrganizationID),
			"name":         ev.OrgName,
		},
	}, true
}

// ShapeExportPlanSection maps an export-plan section to a feed item, excluded
// when the owning organization no longer exists.
func ShapeExportPlanSection(rec Record) (models.FeedItem, bool) {
	sec, ok := rec.(models.ExportPlanSection)
	if !ok || !sec.ParentExists {
		return models.FeedItem{}, false
	}
	return models.FeedItem{
		ID:        globalID("ExportPlanSection", sec.ID),
		Type:      "Update",
		Published: publishedAt(sec.ModifiedAt),
		Object: map[string]any{
			"id":           globalID("ExportPlanSection", sec.ID),
			"type":         "dit:directory:ExportPlanSection",
			"section":      sec.Section,
			"answers":      sec.AnswersJSON,
			"organization": globalID("Organization", sec.OrganizationID),
		},
	}, true
}
