package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds every collaborator call; a timeout is handled the
// same as any other failure for that collaborator.
const DefaultTimeout = 30 * time.Second

// NewClient returns an HTTP client with the standard timeout.
func NewClient() *http.Client {
	return NewClientWithTimeout(DefaultTimeout)
}

// NewClientWithTimeout returns an HTTP client with an explicit timeout.
func NewClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}
