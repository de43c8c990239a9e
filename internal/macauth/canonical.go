package macauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Scheme is the Authorization scheme token carried by both headers.
const Scheme = "Shipshape"

// PayloadHash computes the hex SHA-256 content hash binding a content type to
// a body. An empty body still hashes the content type, so the hash commits to
// the declared type even on bodyless GET requests.
func PayloadHash(contentType string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(contentType))
	h.Write([]byte("\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalRequest builds the string the request MAC is computed over.
func canonicalRequest(method, url, timestamp, nonce, contentHash string) string {
	return strings.Join([]string{method, url, timestamp, nonce, contentHash}, "\n")
}

// canonicalResponse builds the string the response MAC is computed over. It
// binds the response content hash to the verified request's method, URL and
// nonce so a signed response cannot be replayed against a different request.
func canonicalResponse(contentHash, method, url, nonce string) string {
	return strings.Join([]string{contentHash, method, url, nonce}, "\n")
}

// ComputeMAC returns the hex HMAC-SHA256 of payload under secret.
func ComputeMAC(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// macEqual compares two hex MACs in constant time.
func macEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
