// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotOpened       = errors.New("serializer is not opened")
	ErrBufferFull      = errors.New("buffer is full")
	ErrConsumerClosed  = errors.New("consumer is closed")
	ErrSinkClosed      = errors.New("sink is closed")
	ErrConnectionLost  = errors.New("connection lost")
)

// InvalidArgumentError reports a malformed or absent input to schema
// construction. It is always raised at build time, never at serialize time.
type InvalidArgumentError struct {
	Op     string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, ErrInvalidArgument)
}

func (e *InvalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// EncoderInitError reports that an encoding schema could not be
// materialized into its runtime form. It is fatal to the serializer
// instance and should be treated as a startup failure, not retried.
type EncoderInitError struct {
	Format string
	Err    error
}

func (e *EncoderInitError) Error() string {
	return fmt.Sprintf("encoder initialization failed: format=%s: %v", e.Format, e.Err)
}

func (e *EncoderInitError) Unwrap() error {
	return e.Err
}

// SerializationError reports that a specific record could not be
// converted or rendered. It carries a human-readable rendering of the
// offending record and the root cause. The failure is deterministic for
// a given record and schema, so callers decide whether to drop,
// dead-letter, or abort; the serializer never retries.
type SerializationError struct {
	Record string
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("could not serialize row %s: %v", e.Record, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// ValidationError reports a row that does not conform to its row type.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field=%s: %s", e.Field, e.Reason)
}

// SinkError reports a sink upload or write failure.
type SinkError struct {
	Backend   string
	Operation string
	Path      string
	Err       error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error: backend=%s operation=%s path=%s: %v",
		e.Backend, e.Operation, e.Path, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if a SinkError is retryable based on the
// operation type.
func (e *SinkError) IsRetryable() bool {
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable. Serialization and
// validation failures are deterministic and never retryable; sink and
// connection failures generally are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var serErr *SerializationError
	if errors.As(err, &serErr) {
		return false
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return errors.Is(err, ErrConnectionLost)
}
