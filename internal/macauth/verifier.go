package macauth

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/uktrade/directory-api-sub000/internal/models"
	"github.com/uktrade/directory-api-sub000/internal/nonce"
)

// SkewWindow is the maximum allowed distance between a request's declared
// timestamp and server time. It equals the nonce TTL: a request outside the
// window is rejected as stale, so its nonce never needs remembering.
const SkewWindow = 60 * time.Second

// Identity is the result of a successful verification. It carries enough of
// the request context for the response signer to bind the response MAC to
// this exact exchange.
type Identity struct {
	KeyID  string
	Secret []byte
	Method string
	URL    string
	Nonce  string
}

// Verifier validates inbound request MACs against the credential store and
// the nonce guard.
type Verifier struct {
	creds *CredentialStore
	guard nonce.Guard
	now   func() time.Time
}

// NewVerifier creates a request verifier.
func NewVerifier(creds *CredentialStore, guard nonce.Guard) *Verifier {
	return &Verifier{creds: creds, guard: guard, now: time.Now}
}

// requestAuth is the parsed Authorization header.
type requestAuth struct {
	keyID       string
	nonce       string
	timestamp   string
	mac         string
	contentHash string
}

// parseAuthorization splits `Shipshape key_id:nonce:timestamp:mac[:hash]`.
func parseAuthorization(header string) (requestAuth, error) {
	scheme, rest, found := strings.Cut(header, " ")
	if !found || scheme != Scheme {
		return requestAuth{}, fmt.Errorf("unrecognized authorization scheme: %w", models.ErrBadCredentials)
	}
	fields := strings.Split(strings.TrimSpace(rest), ":")
	if len(fields) != 4 && len(fields) != 5 {
		return requestAuth{}, fmt.Errorf("malformed authorization header: %w", models.ErrBadCredentials)
	}
	auth := requestAuth{
		keyID:     fields[0],
		nonce:     fields[1],
		timestamp: fields[2],
		mac:       fields[3],
	}
	if len(fields) == 5 {
		auth.contentHash = fields[4]
	}
	if auth.keyID == "" || auth.nonce == "" || auth.timestamp == "" || auth.mac == "" {
		return requestAuth{}, fmt.Errorf("empty authorization field: %w", models.ErrBadCredentials)
	}
	return auth, nil
}

// Verify authenticates an inbound request. body must be the full request body
// bytes (empty for GET). On success it returns the verified identity; on
// failure it returns an error wrapping ErrNoCredentials or ErrBadCredentials.
// The wrapped reason is for server-side logs only and must never reach the
// caller.
func (v *Verifier) Verify(r *http.Request, body []byte) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, models.ErrNoCredentials
	}
	auth, err := parseAuthorization(header)
	if err != nil {
		return nil, err
	}

	cred, ok := v.creds.Lookup(auth.keyID)
	if !ok {
		return nil, fmt.Errorf("unknown key id %q: %w", auth.keyID, models.ErrBadCredentials)
	}

	contentHash := PayloadHash(r.Header.Get("Content-Type"), body)
	if auth.contentHash != "" && !macEqual(auth.contentHash, contentHash) {
		return nil, fmt.Errorf("content hash mismatch: %w", models.ErrBadCredentials)
	}

	url := RequestURL(r)
	expected := ComputeMAC(cred.Secret, canonicalRequest(r.Method, url, auth.timestamp, auth.nonce, contentHash))
	if !macEqual(expected, auth.mac) {
		return nil, fmt.Errorf("request MAC mismatch: %w", models.ErrBadCredentials)
	}

	// Freshness and nonce checks run after the MAC check so an attacker
	// without the secret learns nothing about the nonce store or clock.
	ts, err := strconv.ParseFloat(auth.timestamp, 64)
	if err != nil {
		return nil, fmt.Errorf("unparsable timestamp: %w", models.ErrBadCredentials)
	}
	skew := math.Abs(float64(v.now().Unix()) - ts)
	if skew > SkewWindow.Seconds() {
		return nil, fmt.Errorf("timestamp outside freshness window (skew %.0fs): %w", skew, models.ErrBadCredentials)
	}

	seen, err := v.guard.CheckAndSet(auth.keyID, auth.nonce)
	if err != nil {
		slog.Error("Verifier.Verify: nonce guard failure", "error", err, "key_id", auth.keyID)
		return nil, fmt.Errorf("nonce guard unavailable: %w", models.ErrBadCredentials)
	}
	if seen {
		return nil, fmt.Errorf("replayed nonce %q: %w", auth.nonce, models.ErrBadCredentials)
	}

	return &Identity{
		KeyID:  auth.keyID,
		Secret: cred.Secret,
		Method: r.Method,
		URL:    url,
		Nonce:  auth.nonce,
	}, nil
}

// RequestURL reconstructs the absolute URL the client signed. The scheme
// honors X-Forwarded-Proto since the service terminates TLS upstream.
func RequestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
