package macauth

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/uktrade/directory-api-sub000/internal/models"
	"github.com/uktrade/directory-api-sub000/internal/nonce"
)

var testCred = Credential{KeyID: "aggregator", Secret: []byte("super-secret")}

func newTestVerifier() *Verifier {
	return NewVerifier(NewCredentialStore([]Credential{testCred}), nonce.NewMemoryGuard(time.Minute))
}

func TestVerifyValidRequest(t *testing.T) {
	v := newTestVerifier()
	r := httptest.NewRequest("GET", "http://example.com/activity-stream/organizations/", nil)
	if _, err := SignRequest(r, testCred, nil); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	id, err := v.Verify(r, nil)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if id.KeyID != testCred.KeyID {
		t.Errorf("identity key id = %q, want %q", id.KeyID, testCred.KeyID)
	}
	if id.URL != "http://example.com/activity-stream/organizations/" {
		t.Errorf("identity url = %q", id.URL)
	}
}

func TestVerifyMissingHeader(t *testing.T) {
	v := newTestVerifier()
	r := httptest.NewRequest("GET", "http://example.com/feed/", nil)
	if _, err := v.Verify(r, nil); !errors.Is(err, models.ErrNoCredentials) {
		t.Errorf("got %v, want ErrNoCredentials", err)
	}
}

func TestVerifyMalformedHeader(t *testing.T) {
	v := newTestVerifier()
	cases := []string{
		"Bearer token",
		Scheme + " only-one-field",
		Scheme + " a:b",
		Scheme + " :nonce:1:mac",
	}
	for _, header := range cases {
		r := httptest.NewRequest("GET", "http://example.com/feed/", nil)
		r.Header.Set("Authorization", header)
		if _, err := v.Verify(r, nil); !errors.Is(err, models.ErrBadCredentials) {
			t.Errorf("header %q: got %v, want ErrBadCredentials", header, err)
		}
	}
}

func TestVerifyUnknownKey(t *testing.T) {
	v := newTestVerifier()
	r := httptest.NewRequest("GET", "http://example.com/feed/", nil)
	if _, err := SignRequest(r, Credential{KeyID: "intruder", Secret: []byte("x")}, nil); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := v.Verify(r, nil); !errors.Is(err, models.ErrBadCredentials) {
		t.Errorf("got %v, want ErrBadCredentials", err)
	}
}

func TestVerifyTamperedMAC(t *testing.T) {
	v := newTestVerifier()
	r := httptest.NewRequest("GET", "http://example.com/feed/", nil)
	if _, err := SignRequest(r, testCred, nil); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	header := r.Header.Get("Authorization")
	fields := strings.Split(header, ":")
	fields[3] = strings.Repeat("0", len(fields[3]))
	r.Header.Set("Authorization", strings.Join(fields, ":"))
	if _, err := v.Verify(r, nil); !errors.Is(err, models.ErrBadCredentials) {
		t.Errorf("got %v, want ErrBadCredentials", err)
	}
}

func TestVerifyTamperedURL(t *testing.T) {
	v := newTestVerifier()
	r := httptest.NewRequest("GET", "http://example.com/feed/?after=0.000000_0", nil)
	if _, err := SignRequest(r, testCred, nil); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	header := r.Header.Get("Authorization")
	// Same signed header presented with a different query string.
	r2 := httptest.NewRequest("GET", "http://example.com/feed/?after=100.000000_7", nil)
	r2.Header.Set("Authorization", header)
	if _, err := v.Verify(r2, nil); !errors.Is(err, models.ErrBadCredentials) {
		t.Errorf("got %v, want ErrBadCredentials", err)
	}
}

func TestVerifyClockSkewBoundary(t *testing.T) {
	cases := []struct {
		name string
		age  time.Duration
		ok   bool
	}{
		{"fresh", 0, true},
		{"at boundary", 60 * time.Second, true},
		{"just stale", 61 * time.Second, false},
		{"future beyond window", -61 * time.Second, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestVerifier()
			base := time.Now()
			v.now = func() time.Time { return base }
			r := httptest.NewRequest("GET", "http://example.com/feed/", nil)
			if _, err := signRequestAt(r, testCred, nil, base.Add(-tc.age)); err != nil {
				t.Fatalf("sign failed: %v", err)
			}
			_, err := v.Verify(r, nil)
			if tc.ok && err != nil {
				t.Errorf("age %v: unexpected rejection: %v", tc.age, err)
			}
			if !tc.ok && !errors.Is(err, models.ErrBadCredentials) {
				t.Errorf("age %v: got %v, want ErrBadCredentials", tc.age, err)
			}
		})
	}
}

func TestVerifyReplayedNonce(t *testing.T) {
	v := newTestVerifier()
	r := httptest.NewRequest("GET", "http://example.com/feed/", nil)
	if _, err := SignRequest(r, testCred, nil); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := v.Verify(r, nil); err != nil {
		t.Fatalf("first verify failed: %v", err)
	}
	// The identical request replayed must be rejected even though its MAC is
	// still valid and its timestamp is still fresh.
	if _, err := v.Verify(r, nil); !errors.Is(err, models.ErrBadCredentials) {
		t.Errorf("replay: got %v, want ErrBadCredentials", err)
	}
}

func TestCredentialStoreLookup(t *testing.T) {
	store := NewCredentialStore([]Credential{
		{KeyID: "a", Secret: []byte("1")},
		{KeyID: "b", Secret: []byte("2")},
	})
	cred, ok := store.Lookup("b")
	if !ok || string(cred.Secret) != "2" {
		t.Errorf("Lookup(b) = %v %v", cred, ok)
	}
	if _, ok := store.Lookup("c"); ok {
		t.Error("Lookup(c) found a credential")
	}
}
