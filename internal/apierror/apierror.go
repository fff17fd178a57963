// Package apierror provides the typed error taxonomy returned by every core
// operation. Presentation layers decide how to surface each kind; the core never
// swallows collaborator failures and never treats an error as fatal.
package apierror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error for the calling UI.
type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindValidation          Kind = "validation"
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindNetwork             Kind = "network"
	KindNoOpenSession       Kind = "no_open_session"
	KindInsufficientPayment Kind = "insufficient_payment"
)

// ValidationError wraps missing or out-of-range input, caught before any
// collaborator call. Fields maps the offending field to the failed rule.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation error", Fields: fields}
}

// Invalid is a shorthand for a single-field validation failure.
func Invalid(field, rule string) *ValidationError {
	return &ValidationError{
		Detail: fmt.Sprintf("invalid %s: %s", field, rule),
		Fields: map[string]string{field: rule},
	}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Detail
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return e.Detail + " (" + strings.Join(parts, ", ") + ")"
}

// ConflictReason names the concurrent-state condition behind a ConflictError.
type ConflictReason string

const (
	ReasonPendingOrders ConflictReason = "pending_orders"
	ReasonAlreadyClosed ConflictReason = "already_closed"
	ReasonSessionOpen   ConflictReason = "session_open"
	ReasonDuplicateName ConflictReason = "duplicate_name"
	ReasonOther         ConflictReason = "conflict"
)

// ConflictError is a server rejection caused by concurrent state.
type ConflictError struct {
	Reason       ConflictReason `json:"code"`
	Detail       string         `json:"detail"`
	PendingCount int            `json:"pending_count,omitempty"`
	SampleOrders []string       `json:"sample_order_codes,omitempty"`
}

func (e *ConflictError) Error() string {
	if e.Reason == ReasonPendingOrders {
		return fmt.Sprintf("conflict: %d pending orders (%s)", e.PendingCount, strings.Join(e.SampleOrders, ", "))
	}
	if e.Detail != "" {
		return "conflict: " + e.Detail
	}
	return "conflict: " + string(e.Reason)
}

// NotFoundError reports a referenced order/session/category that no longer exists.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NetworkError reports an unreachable collaborator or a non-2xx response
// without a structured body.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SimilarNameError warns that a proposed name is close to an existing one.
// It is validation-class: the caller may retry with the warning acknowledged.
type SimilarNameError struct {
	Name       string
	MatchID    string
	MatchName  string
	Similarity float64
}

func (e *SimilarNameError) Error() string {
	return fmt.Sprintf("%q is similar to existing %q (%.0f%%)", e.Name, e.MatchName, e.Similarity*100)
}

var (
	// ErrNoOpenSession blocks any transaction without a usable session id.
	ErrNoOpenSession = errors.New("no open cash drawer session")
	// ErrInsufficientPayment is returned when cash tendered is below the order total.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrSubmissionInFlight rejects a duplicate submission while one is pending.
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
)

// KindOf classifies err. Wrapped errors are unwrapped.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var (
		ve *ValidationError
		ce *ConflictError
		nf *NotFoundError
		ne *NetworkError
		se *SimilarNameError
	)
	switch {
	case errors.Is(err, ErrNoOpenSession):
		return KindNoOpenSession
	case errors.Is(err, ErrInsufficientPayment):
		return KindInsufficientPayment
	case errors.Is(err, ErrSubmissionInFlight):
		return KindValidation
	case errors.As(err, &ve), errors.As(err, &se):
		return KindValidation
	case errors.As(err, &ce):
		return KindConflict
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &ne):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// IsConflict reports whether err is a ConflictError with the given reason.
func IsConflict(err error, reason ConflictReason) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Reason == reason
}
