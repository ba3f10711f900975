package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrRateLimited is returned when the provider throttles this client.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrMalformedResponse is returned when a response cannot be decoded.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Blockchair specific status codes.
const (
	StatusPaymentRequired = http.StatusPaymentRequired // 402: over the free plan limit
	StatusIPBlacklisted   = 430
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("http %d: %s", e.Code, body)
}

// IsThrottleStatus reports whether code signals rate limiting.
func IsThrottleStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, StatusPaymentRequired, StatusIPBlacklisted:
		return true
	}
	return false
}

// ErrorAction determines how the caller should treat a provider error.
type ErrorAction int

const (
	ActionRetry   ErrorAction = iota // transient, try again next cycle
	ActionBackoff                    // throttled, pause before next cycle
	ActionFatal                      // request is wrong, retrying will not help
)

func (a ErrorAction) String() string {
	switch a {
	case ActionBackoff:
		return "backoff"
	case ActionFatal:
		return "fatal"
	default:
		return "retry"
	}
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}

	if errors.Is(err, ErrRateLimited) {
		return ActionBackoff
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case IsThrottleStatus(se.Code):
			return ActionBackoff
		case se.Code == http.StatusBadRequest, se.Code == http.StatusNotFound:
			return ActionFatal
		}
	}

	if errors.Is(err, ErrMalformedResponse) {
		return ActionFatal
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") || strings.Contains(s, "rate limit") ||
		strings.Contains(s, "quota") || strings.Contains(s, "count exceeded") {
		return ActionBackoff
	}

	// Network, 5xx, timeouts
	return ActionRetry
}
