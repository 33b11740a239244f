package client

import (
	"errors"
	"fmt"
)

// maxErrBodySize caps the amount of response body retained when
// building an error. This prevents unbounded memory usage when a
// large response arrives in an error path.
const maxErrBodySize = 4 << 10 // 4KB

var (
	// ErrTransport wraps connection, timeout, and TLS failures.
	// Transport failures are plausibly transient; callers may decide
	// to retry them. Nothing in this package retries automatically.
	ErrTransport = errors.New("transport failure")

	// ErrDecode wraps failures to decode a response body into the
	// expected shape. Decode failures are not transient.
	ErrDecode = errors.New("decoding response failed")

	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
)

// UnexpectedStatusError is returned when the HTTP response status code
// does not match the expected value.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a response body cannot be decoded into
// the expected shape. Body retains the raw (truncated) response, since
// the service returns human-readable error text on the same channel as
// success payloads.
type DecodeError struct {
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v, body: %s", e.Err, e.Body)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(body []byte, cause error) *DecodeError {
	return &DecodeError{
		Body: truncate(body),
		Err:  fmt.Errorf("%w: %w", ErrDecode, cause),
	}
}

func truncate(b []byte) string {
	if len(b) > maxErrBodySize {
		b = b[:maxErrBodySize]
	}

	return string(b)
}
