package macauth

import (
	"fmt"

	"github.com/uktrade/directory-api-sub000/internal/models"
)

// SignResponse computes the Server-Authorization header value for a finalized
// response body. The MAC is bound to the verified request's method, URL and
// nonce, so the caller can confirm the response answers its own request.
//
// The body must be fully rendered before signing: the MAC commits to the
// exact bytes, which rules out streaming responses.
func SignResponse(id *Identity, contentType string, body []byte) (string, error) {
	if id == nil || len(id.Secret) == 0 {
		return "", fmt.Errorf("missing request identity: %w", models.ErrSigningFailure)
	}
	hash := PayloadHash(contentType, body)
	mac := ComputeMAC(id.Secret, canonicalResponse(hash, id.Method, id.URL, id.Nonce))
	return fmt.Sprintf("%s mac=%q, hash=%q", Scheme, mac, hash), nil
}

// VerifyResponse validates a Server-Authorization header against response
// bytes on the client side. method, url and nonce must be the values used to
// sign the originating request.
func VerifyResponse(secret []byte, method, url, nonce, contentType string, body []byte, header string) error {
	mac, hash, err := parseServerAuthorization(header)
	if err != nil {
		return err
	}
	wantHash := PayloadHash(contentType, body)
	if !macEqual(hash, wantHash) {
		return fmt.Errorf("response content hash mismatch")
	}
	wantMAC := ComputeMAC(secret, canonicalResponse(wantHash, method, url, nonce))
	if !macEqual(mac, wantMAC) {
		return fmt.Errorf("response MAC mismatch")
	}
	return nil
}
