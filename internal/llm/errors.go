package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// classifyStatus marks a provider error with the sentinel matching its HTTP
// status. status 0 means the request never got a response.
func classifyStatus(provider string, status int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", provider, err)
	}
	var kind error
	switch {
	case status == 0:
		kind = ErrProviderDown
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrNoAPIKey
	case status == http.StatusNotFound:
		kind = ErrInvalidModel
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimit
	case status == http.StatusRequestEntityTooLarge:
		kind = ErrContextLength
	case status >= http.StatusInternalServerError:
		kind = ErrProviderDown
	default:
		return fmt.Errorf("%s: HTTP %d: %w", provider, status, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, provider, err)
}
