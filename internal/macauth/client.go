package macauth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/uktrade/directory-api-sub000/internal/util"
)

// SignRequest attaches an Authorization header to an outbound request. It is
// used by the feedtail consumer and by tests; servers only verify. The nonce
// is freshly generated and returned so the caller can later verify the
// response MAC against it.
func SignRequest(r *http.Request, cred Credential, body []byte) (nonce string, err error) {
	return signRequestAt(r, cred, body, time.Now())
}

// signRequestAt is SignRequest with an explicit clock, for tests exercising
// the freshness window.
func signRequestAt(r *http.Request, cred Credential, body []byte, now time.Time) (string, error) {
	if cred.KeyID == "" || len(cred.Secret) == 0 {
		return "", fmt.Errorf("incomplete credential")
	}
	nonce := util.GenerateNonce()
	timestamp := strconv.FormatInt(now.Unix(), 10)
	contentHash := PayloadHash(r.Header.Get("Content-Type"), body)
	url := r.URL.String()
	mac := ComputeMAC(cred.Secret, canonicalRequest(r.Method, url, timestamp, nonce, contentHash))
	r.Header.Set("Authorization", strings.Join([]string{
		Scheme + " " + cred.KeyID, nonce, timestamp, mac, contentHash,
	}, ":"))
	return nonce, nil
}

// parseServerAuthorization extracts mac and hash from a
// `Shipshape mac="...", hash="..."` header value.
func parseServerAuthorization(header string) (mac, hash string, err error) {
	scheme, rest, found := strings.Cut(header, " ")
	if !found || scheme != Scheme {
		return "", "", fmt.Errorf("unrecognized server authorization scheme")
	}
	for _, part := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return "", "", fmt.Errorf("malformed server authorization field %q", part)
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "mac":
			mac = value
		case "hash":
			hash = value
		}
	}
	if mac == "" || hash == "" {
		return "", "", fmt.Errorf("server authorization missing mac or hash")
	}
	return mac, hash, nil
}
