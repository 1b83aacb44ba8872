package sensitivity

import (
	"errors"
	"fmt"
)

// Kind classifies an evaluation failure.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindMalformed
	KindCancelled
	KindUnconfigured
)

var (
	// ErrTransport matches scorer network failures, timeouts and non-2xx answers.
	ErrTransport = errors.New("scorer transport failure")
	// ErrMalformedResponse matches payloads that fail to parse or validate.
	ErrMalformedResponse = errors.New("malformed scorer response")
	// ErrCancelled matches evaluations superseded or cancelled by the caller.
	ErrCancelled = errors.New("evaluation cancelled")
	// ErrUnconfigured matches calls made without a scorer credential.
	ErrUnconfigured = errors.New("sensitivity scorer not configured")
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	case KindCancelled:
		return "cancelled"
	case KindUnconfigured:
		return "unconfigured"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindMalformed:
		return ErrMalformedResponse
	case KindCancelled:
		return ErrCancelled
	case KindUnconfigured:
		return ErrUnconfigured
	default:
		return nil
	}
}

// EvaluationError is returned by every failed evaluation.
type EvaluationError struct {
	Kind Kind
	Err  error
}

func (e *EvaluationError) Error() string {
	if e.Err == nil {
		return "sensitivity: " + e.Kind.sentinel().Error()
	}
	return fmt.Sprintf("sensitivity: %s: %v", e.Kind.sentinel(), e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *EvaluationError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func fail(kind Kind, err error) error {
	return &EvaluationError{Kind: kind, Err: err}
}
