package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 120 * time.Second

// ErrConfiguration marks missing credentials, endpoints, or template fields. It is fatal for a run.
var ErrConfiguration = errors.New("configuration error")

// Message is one role/content pair sent to the model.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Schema describes the JSON shape a structured completion must follow.
type Schema struct {
	Name       string
	Definition map[string]any
	// Strict asks the backend to enforce Definition exactly. Definition must then close
	// every object and require every property.
	Strict bool
}

// Request is a single completion request.
type Request struct {
	Messages []Message
	// Schema is optional; when nil the completion is returned as plain text.
	Schema *Schema
}

// Completion is the normalized result of a successful call.
// Data is set when the request carried a schema, Text otherwise.
type Completion struct {
	Text string
	Data map[string]any
}

// Gateway issues one completion request and normalizes its result or failure.
type Gateway interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

type FailureKind string

const (
	FailureTimeout         FailureKind = "timeout"
	FailureTransport       FailureKind = "transport"
	FailureMalformedOutput FailureKind = "malformed_output"
	FailureMissingContent  FailureKind = "missing_content"
)

// Failure is a recoverable gateway error. Callers treat it as "no result".
type Failure struct {
	Kind FailureKind
	// StatusCode is the HTTP status for transport failures, when one was received.
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gateway %s", f.Kind)
	if f.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", f.StatusCode)
	}
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind carried by err, or "" when err is not a gateway failure.
func KindOf(err error) FailureKind {
	if f := asFailure(err); f != nil {
		return f.Kind
	}
	return ""
}

func asFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return nil
}

func newFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

// classifyCallError maps an error from an SDK call into a Failure.
func classifyCallError(err error, status int) *Failure {
	if isTimeout(err) {
		return newFailure(FailureTimeout, err)
	}
	return &Failure{Kind: FailureTransport, StatusCode: status, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
