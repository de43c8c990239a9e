package macauth

import (
	"errors"
	"strings"
	"testing"

	"github.com/uktrade/directory-api-sub000/internal/models"
)

func testIdentity() *Identity {
	return &Identity{
		KeyID:  testCred.KeyID,
		Secret: testCred.Secret,
		Method: "GET",
		URL:    "http://example.com/activity-stream/organizations/",
		Nonce:  "abc123",
	}
}

func TestSignResponseRoundTrip(t *testing.T) {
	id := testIdentity()
	body := []byte(`{"type":"Collection","orderedItems":[]}`)

	header, err := SignResponse(id, "application/json", body)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if !strings.HasPrefix(header, Scheme+" ") {
		t.Errorf("header %q missing scheme", header)
	}
	if err := VerifyResponse(id.Secret, id.Method, id.URL, id.Nonce, "application/json", body, header); err != nil {
		t.Errorf("round trip verification failed: %v", err)
	}
}

func TestVerifyResponseDetectsTampering(t *testing.T) {
	id := testIdentity()
	body := []byte(`{"type":"Collection","orderedItems":[]}`)
	header, err := SignResponse(id, "application/json", body)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	// Each mutation must independently break verification.
	if err := VerifyResponse(id.Secret, id.Method, id.URL, id.Nonce, "application/json", []byte(`{"tampered":true}`), header); err == nil {
		t.Error("mutated body verified")
	}
	if err := VerifyResponse(id.Secret, id.Method, id.URL, id.Nonce, "text/html", body, header); err == nil {
		t.Error("mutated content type verified")
	}
	broken := strings.Replace(header, `mac="`, `mac="00`, 1)
	if err := VerifyResponse(id.Secret, id.Method, id.URL, id.Nonce, "application/json", body, broken); err == nil {
		t.Error("mutated header verified")
	}
	if err := VerifyResponse(id.Secret, id.Method, id.URL, "other-nonce", "application/json", body, header); err == nil {
		t.Error("response verified against a different request nonce")
	}
}

func TestSignResponseRequiresIdentity(t *testing.T) {
	if _, err := SignResponse(nil, "application/json", nil); !errors.Is(err, models.ErrSigningFailure) {
		t.Errorf("got %v, want ErrSigningFailure", err)
	}
	if _, err := SignResponse(&Identity{}, "application/json", nil); !errors.Is(err, models.ErrSigningFailure) {
		t.Errorf("got %v, want ErrSigningFailure", err)
	}
}

func TestPayloadHashCommitsToContentType(t *testing.T) {
	body := []byte("payload")
	if PayloadHash("application/json", body) == PayloadHash("text/html", body) {
		t.Error("content type not part of the payload hash")
	}
	if PayloadHash("application/json", body) != PayloadHash("application/json", body) {
		t.Error("payload hash is not deterministic")
	}
}
