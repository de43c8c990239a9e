// Package macauth implements the symmetric-key MAC scheme that authenticates
// feed requests and signs feed responses.
//
// Requests carry `Authorization: Shipshape key_id:nonce:timestamp:mac[:hash]`.
// The server recomputes the MAC over a canonical string derived from the
// request, checks timestamp freshness against a 60 second window, and rejects
// replayed nonces. Responses carry a `Server-Authorization` header the caller
// verifies with the same shared secret.
package macauth

import (
	"crypto/sha256"
	"crypto/subtle"
)

// Credential is a shared secret loaded from configuration at startup.
// Credentials are immutable for the process lifetime.
type Credential struct {
	KeyID  string
	Secret []byte
}

// CredentialStore resolves a caller's key id to its shared secret.
type CredentialStore struct {
	creds []Credential
}

// NewCredentialStore creates a store over the configured credentials.
func NewCredentialStore(creds []Credential) *CredentialStore {
	return &CredentialStore{creds: creds}
}

// Lookup finds the credential for keyID. The scan visits every configured
// credential and compares SHA-256 digests of the ids in constant time, so the
// duration does not reveal whether, or where, a key id exists.
func (s *CredentialStore) Lookup(keyID string) (Credential, bool) {
	want := sha256.Sum256([]byte(keyID))
	var found Credential
	ok := false
	for _, c := range s.creds {
		have := sha256.Sum256([]byte(c.KeyID))
		if subtle.ConstantTimeCompare(want[:], have[:]) == 1 {
			found = c
			ok = true
		}
	}
	return found, ok
}
