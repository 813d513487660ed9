package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// UpstreamError reports a failed fetch of the realtime feed: a non-2xx
// response, a transport failure or a timeout. Status is zero when no HTTP
// response was received.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream feed returned HTTP %d %s: %v", e.Status, http.StatusText(e.Status), e.Err)
	}
	return fmt.Sprintf("upstream feed unavailable: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the fetch failed because a deadline passed.
func (e *UpstreamError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// DecodeError reports feed bytes that are not a valid GTFS-realtime message.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode realtime feed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
