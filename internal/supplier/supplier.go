// Package supplier fetches content items from external platforms.
package supplier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"creditfeed/internal/models"
)

// Supplier pulls the latest items from one platform.
type Supplier interface {
	Source() models.Source
	Fetch(ctx context.Context, limit int) ([]models.ContentItem, error)
}

var (
	// ErrMissingCredentials means the adapter is configured without an API token.
	ErrMissingCredentials = errors.New("supplier: credentials are required")
	// ErrQuotaExhausted means the adapter refused to spend its remaining quota.
	ErrQuotaExhausted = errors.New("supplier: quota exhausted")
	// ErrRateLimited means the platform answered 429.
	ErrRateLimited = errors.New("supplier: rate limited")
)

// StatusError is a non-2xx platform response.
type StatusError struct {
	Source     models.Source
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.Source, e.StatusCode, e.Body)
}

// checkStatus turns a non-2xx response into an error, keeping a short body excerpt.
func checkStatus(source models.Source, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Source: source, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func isPlaceholder(s string) bool {
	for _, p := range models.PlaceholderTexts {
		if s == p {
			return true
		}
	}
	return false
}
