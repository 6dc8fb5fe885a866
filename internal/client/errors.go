package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Error classes returned by the clients. Callers classify with errors.Is.
var (
	// ErrConnectivity marks transport failures and unexpected HTTP statuses
	ErrConnectivity = errors.New("connectivity error")
	// ErrAuth marks credential or token exchange failures
	ErrAuth = errors.New("authentication error")
	// ErrDecode marks malformed or incomplete response payloads
	ErrDecode = errors.New("decode error")
	// ErrApply marks a failed create or update of a single monitor
	ErrApply = errors.New("monitor apply error")
)

// statusError classifies a non-2xx response of a fetch or auth call
func statusError(op string, status int, body string) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: %s failed with status %d: %s", ErrAuth, op, status, truncate(body))
	}
	return fmt.Errorf("%w: %s failed with status %d: %s", ErrConnectivity, op, status, truncate(body))
}

func truncate(body string) string {
	const limit = 512
	if len(body) <= limit {
		return body
	}
	return body[:limit] + "..."
}

// stripURL drops the request URL from a transport error. Shinobi URLs carry the API key.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
