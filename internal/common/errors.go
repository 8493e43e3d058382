// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Configuration errors.
	ErrConfig        = errors.New("configuration error")
	ErrMissingConfig = fmt.Errorf("%w: required setting missing", ErrConfig)

	// Store and transport errors.
	ErrConnection     = errors.New("connection failed")
	ErrLockConflict   = errors.New("lock conflict: the store is being written by another process")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrReadOnly       = errors.New("store opened read-only")
	ErrRateLimit      = errors.New("rate limit exceeded")

	// Per-record errors.
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")

	// Escalation errors.
	ErrEscalation = errors.New("escalation failed")

	// Safety errors.
	ErrPreconditionDeclined = errors.New("write precondition declined")
	ErrNotAuthorized        = errors.New("write not authorized")
	ErrDryRun               = errors.New("dry run: write suppressed")
)

// ConfigError describes a malformed rule document or execution context.
type ConfigError struct {
	Err    error
	Source string
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Detail, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError wrapping ErrConfig.
func NewConfigError(source, format string, args ...any) error {
	return &ConfigError{
		Err:    ErrConfig,
		Source: source,
		Detail: fmt.Sprintf(format, args...),
	}
}

// NewMissingConfigError reports a required setting that was left empty.
// The result matches both ErrMissingConfig and ErrConfig.
func NewMissingConfigError(source, detail string) error {
	return &ConfigError{
		Err:    ErrMissingConfig,
		Source: source,
		Detail: detail,
	}
}

// RecordError is a failure bound to a single recipe. It never aborts a run.
type RecordError struct {
	Err  error
	Slug string
	Op   string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Slug, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// UserError pairs an error with a plain-language message telling the user
// what to do about it.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsFatal reports whether err must stop the whole run rather than a single item.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfig) ||
		errors.Is(err, ErrLockConflict) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrPreconditionDeclined)
}
