package provider

import (
	"errors"
	"fmt"
)

// ErrProviderUnavailable marks transient provider failures (network errors,
// 5xx). Retryable with backoff; never marks the account broken.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrUnknownProvider is returned by the registry for unregistered providers
var ErrUnknownProvider = errors.New("unknown provider")

// AuthError means the credential was rejected. Not retryable without
// re-authentication; the orchestrator marks the account as errored.
type AuthError struct {
	Provider string
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Reason)
}

// RateLimitError means the provider declared a cooldown. Retryable after
// RetryAfterSeconds; never treated as fatal.
type RateLimitError struct {
	Provider          string
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited, retry after %ds", e.Provider, e.RetryAfterSeconds)
}

// ValidationError means the request itself was bad (unknown recipient,
// unprovisioned sender number). Surfaced to the caller, not retried.
// Available carries the identifiers the provider reports as usable, so the
// caller can act on the rejection.
type ValidationError struct {
	Provider  string
	Reason    string
	Available []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed: %s", e.Provider, e.Reason)
}

// IsRetryable reports whether an error is transient and worth retrying
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
