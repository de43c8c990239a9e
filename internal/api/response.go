// Package api provides HTTP response utilities for the feed service.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/uktrade/directory-api-sub000/internal/macauth"
	"github.com/uktrade/directory-api-sub000/internal/models"
)

const contentTypeJSON = "application/json"

// Pre-marshaled fallback response to avoid runtime JSON encoding failures.
var fallbackErrorResponse []byte

// init validates that the fallback response can be marshaled.
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeSignedJSONResponse finalizes a response body, computes its MAC bound
// to the verified request, and writes body plus Server-Authorization header.
// If signing fails the body is never sent: the caller's trust model depends
// on every successful response being signed, so a signing failure becomes a
// server error instead.
func writeSignedJSONResponse(w http.ResponseWriter, identity *macauth.Identity, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeSignedJSONResponse: failed to marshal JSON response", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}

	header, err := macauth.SignResponse(identity, contentTypeJSON, jsonData)
	if err != nil {
		slog.Error("Server.writeSignedJSONResponse: response signing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Server-Authorization", header)
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeSignedJSONResponse: failed to write JSON response", "error", writeErr)
	}
}
