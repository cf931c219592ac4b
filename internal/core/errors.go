package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// ErrorCategory groups errors by how the workflow reacts to them.
type ErrorCategory string

const (
	ErrCatValidation    ErrorCategory = "validation"
	ErrCatExecution     ErrorCategory = "execution"
	ErrCatTimeout       ErrorCategory = "timeout"
	ErrCatRateLimit     ErrorCategory = "rate_limit"
	ErrCatNetwork       ErrorCategory = "network"
	ErrCatAuth          ErrorCategory = "auth"
	ErrCatPermission    ErrorCategory = "permission"
	ErrCatNotFound      ErrorCategory = "not_found"
	ErrCatState         ErrorCategory = "state"
	ErrCatConfiguration ErrorCategory = "configuration"
	ErrCatUnrecoverable ErrorCategory = "unrecoverable"
	ErrCatInternal      ErrorCategory = "internal"
)

// transientCategories are worth another attempt when they come out of a
// phase.
var transientCategories = map[ErrorCategory]bool{
	ErrCatExecution: true,
	ErrCatTimeout:   true,
	ErrCatRateLimit: true,
	ErrCatNetwork:   true,
}

// DomainError is a categorized error with a stable code.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

func newError(cat ErrorCategory, code, message string) *DomainError {
	return &DomainError{
		Category:  cat,
		Code:      code,
		Message:   message,
		Retryable: transientCategories[cat],
	}
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError with the same category and code, so
// errors.Is(err, ErrState(CodeStateCorrupted, "")) works on wrapped errors.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Category == t.Category && e.Code == t.Code
}

// WithCause sets the wrapped error and returns e.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail attaches a key/value pair and returns e.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// ErrValidation reports rejected input: an empty prompt, a missing
// workspace, a malformed session ID.
func ErrValidation(code, message string) *DomainError {
	return newError(ErrCatValidation, code, message)
}

// ErrExecution reports a phase collaborator that ran and failed.
func ErrExecution(code, message string) *DomainError {
	return newError(ErrCatExecution, code, message)
}

// ErrTimeout reports a phase collaborator that ran out of time.
func ErrTimeout(message string) *DomainError {
	return newError(ErrCatTimeout, "TIMEOUT", message)
}

// ErrRateLimit reports a collaborator throttled by an upstream service.
func ErrRateLimit(message string) *DomainError {
	return newError(ErrCatRateLimit, "RATE_LIMITED", message)
}

// ErrNetwork reports a connection failure between a collaborator and a remote service.
func ErrNetwork(message string) *DomainError {
	return newError(ErrCatNetwork, "NETWORK", message)
}

// ErrAuth reports rejected credentials. It is never retried.
func ErrAuth(message string) *DomainError {
	return newError(ErrCatAuth, "AUTH_FAILED", message)
}

// ErrPermission reports an operation the process is not allowed to perform.
func ErrPermission(message string) *DomainError {
	return newError(ErrCatPermission, "PERMISSION_DENIED", message)
}

// ErrNotFound reports a missing resource of the given kind.
func ErrNotFound(resource, id string) *DomainError {
	return newError(ErrCatNotFound, "NOT_FOUND", fmt.Sprintf("%s not found: %s", resource, id))
}

// ErrState reports a checkpoint that cannot be read, written or trusted.
func ErrState(code, message string) *DomainError {
	return newError(ErrCatState, code, message)
}

// ErrConfiguration reports a setup mistake such as an unknown phase or an
// unbound executor. Configuration errors abort the call and are never
// recorded in a run's error list.
func ErrConfiguration(code, message string) *DomainError {
	return newError(ErrCatConfiguration, code, message)
}

// ErrUnrecoverable is recorded when phase failed and no alternative path
// exists.
func ErrUnrecoverable(phase Phase) *DomainError {
	return newError(ErrCatUnrecoverable, CodeNoAlternativePath,
		fmt.Sprintf("no alternative path after %s failure", phase)).
		WithDetail("phase", string(phase))
}

// GetCategory returns the category of the first DomainError in err's
// chain, or ErrCatInternal.
func GetCategory(err error) ErrorCategory {
	if de := (*DomainError)(nil); errors.As(err, &de) {
		return de.Category
	}
	return ErrCatInternal
}

// IsCategory reports whether err is in cat.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return IsCategory(err, ErrCatConfiguration)
}

// FailureClass decides whether a failed phase may be attempted again.
type FailureClass string

const (
	FailureTransient    FailureClass = "transient"
	FailureNonRetryable FailureClass = "non_retryable"
)

// ClassifyFailure treats authentication, permission, validation and
// configuration failures as final. Anything else, unclassified errors
// included, is transient.
func ClassifyFailure(err error) FailureClass {
	switch {
	case err == nil, errors.Is(err, context.DeadlineExceeded):
		return FailureTransient
	case errors.Is(err, fs.ErrPermission):
		return FailureNonRetryable
	}
	switch GetCategory(err) {
	case ErrCatAuth, ErrCatPermission, ErrCatValidation, ErrCatConfiguration:
		return FailureNonRetryable
	}
	return FailureTransient
}

// Error codes shared across packages.
const (
	CodeStateCorrupted    = "STATE_CORRUPTED"
	CodeNoAlternativePath = "NO_ALTERNATIVE_PATH"

	CodeUnknownPhase      = "UNKNOWN_PHASE"
	CodeMissingExecutor   = "MISSING_EXECUTOR"
	CodeUnknownComplexity = "UNKNOWN_COMPLEXITY"
	CodeInvalidConfig     = "INVALID_CONFIG"

	CodeEmptyPrompt   = "EMPTY_PROMPT"
	CodePromptTooLong = "PROMPT_TOO_LONG"
	CodeBadWorkspace  = "BAD_WORKSPACE"

	CodeExecutorFailed = "EXECUTOR_FAILED"
	CodeParseFailed    = "PARSE_FAILED"
)

// MaxPromptLength bounds the prompt accepted by Execute.
const MaxPromptLength = 100000
