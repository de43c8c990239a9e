// Package api provides HTTP handlers for the activity stream endpoints.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/uktrade/directory-api-sub000/internal/feed"
	"github.com/uktrade/directory-api-sub000/internal/models"
	"github.com/uktrade/directory-api-sub000/internal/util"
)

// Externally visible authentication failure messages. Every BadCredentials
// reason collapses to the same message so the response cannot be used as an
// oracle for why authentication failed.
const (
	detailNoCredentials  = "Authentication credentials were not provided."
	detailBadCredentials = "Incorrect authentication credentials."
	detailInvalidCursor  = "Invalid cursor."
)

// collection is the response body shape of every feed page.
type collection struct {
	Context      []string          `json:"@context"`
	Type         string            `json:"type"`
	OrderedItems []models.FeedItem `json:"orderedItems"`
	Next         string            `json:"next,omitempty"`
}

// feedHandler serves one entity type's feed. The pagination machinery is
// shared; only the pager (query + shaper) differs per route.
func (s *Server) feedHandler(pager *feed.Pager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			defer r.Body.Close()
		}
		slog.Debug("Server.feedHandler: processing feed request", "method", r.Method, "path", r.URL.Path)
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			slog.Warn("Server.feedHandler: method not allowed", "method", r.Method)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// The deployment's trust boundary requires the forwarding proxy to
		// identify the caller; requests arriving without it are unauthenticated.
		if r.Header.Get("X-Forwarded-For") == "" {
			slog.Warn("Server.feedHandler: missing X-Forwarded-For header", "path", r.URL.Path)
			writeJSONResponse(w, http.StatusUnauthorized, models.Error(detailBadCredentials))
			return
		}

		var body []byte
		if r.Body != nil {
			var err error
			body, err = io.ReadAll(r.Body)
			if err != nil {
				slog.Warn("Server.feedHandler: failed to read request body", "error", err)
				writeJSONResponse(w, http.StatusBadRequest, models.Error("Unreadable request body."))
				return
			}
		}

		identity, err := s.verifier.Verify(r, body)
		if err != nil {
			// The precise reason stays in the server log; the caller sees
			// only the generic classification.
			slog.Warn("Server.feedHandler: authentication failed", "error", err, "path", r.URL.Path)
			if errors.Is(err, models.ErrNoCredentials) {
				writeJSONResponse(w, http.StatusUnauthorized, models.Error(detailNoCredentials))
			} else {
				writeJSONResponse(w, http.StatusUnauthorized, models.Error(detailBadCredentials))
			}
			return
		}

		cursor, err := feed.DecodeCursor(r.URL.Query().Get(feed.CursorParam))
		if err != nil {
			slog.Warn("Server.feedHandler: invalid cursor", "error", err, "key_id", identity.KeyID)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(detailInvalidCursor))
			return
		}

		page, err := pager.Page(r.Context(), cursor)
		if err != nil {
			slog.Error("Server.feedHandler: failed to fetch page", "error", err, "path", r.URL.Path)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch feed page."))
			return
		}

		resp := collection{
			Context:      []string{"https://www.w3.org/ns/activitystreams"},
			Type:         "Collection",
			OrderedItems: page.Items,
		}
		if page.NextCursor != nil {
			next, err := feed.NextURL(identity.URL, *page.NextCursor)
			if err != nil {
				slog.Error("Server.feedHandler: failed to build next link", "error", err)
				writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build next link."))
				return
			}
			resp.Next = next
		}

		slog.Info("Server.feedHandler: page served", "path", r.URL.Path, "key_id", identity.KeyID, "items", len(page.Items), "has_next", page.NextCursor != nil)
		writeSignedJSONResponse(w, identity, http.StatusOK, resp)
	}
}

// healthHandler provides a health check endpoint for monitoring and load
// balancing. It is the only unauthenticated route.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthData := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.st.Ping(ctx); err != nil {
		slog.Warn("Server.healthHandler: store unreachable", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "change source unreachable"
	}
	// A throwaway nonce under a reserved key id exercises the guard's
	// write path; the entry expires with the normal TTL.
	if _, err := s.guard.CheckAndSet("health-probe", util.GenerateNonce()); err != nil {
		slog.Warn("Server.healthHandler: nonce guard unavailable", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "nonce guard unavailable"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}
