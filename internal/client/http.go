package client

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "android/2.1.10/Samsung"

// HTTPConfig configures the shared HTTP transport
type HTTPConfig struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewHTTPClient creates the connection pool shared by both API clients for the
// whole process lifetime. Content-Encoding is left to net/http, which negotiates
// gzip and decompresses transparently.
func NewHTTPClient(config HTTPConfig) *resty.Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: config.InsecureSkipVerify}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	return resty.NewWithClient(httpClient).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}
