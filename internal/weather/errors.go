package weather

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned when the upstream credential is not configured.
var ErrMissingAPIKey = errors.New("weather api key is not configured")

// UpstreamError reports a failure talking to the weather provider, including
// a missing credential and call timeouts.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("weather upstream %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("weather upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
