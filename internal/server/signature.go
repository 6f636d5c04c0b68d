package server

import (
	"errors"
	"net/http"

	"github.com/google/go-github/v57/github"
)

const (
	SignaturePrefix = "sha256="
)

var errMissingSignature = errors.New("missing " + github.SHA256SignatureHeader + " header")

// verifySignature checks the HMAC-SHA256 signature GitHub attaches to a
// delivery. The legacy SHA-1 header is not accepted.
func verifySignature(r *http.Request, payload []byte, secret string) error {
	signature := r.Header.Get(github.SHA256SignatureHeader)
	if signature == "" {
		return errMissingSignature
	}
	return github.ValidateSignature(signature, payload, []byte(secret))
}
