package sqlbridge

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors matched by the typed errors below through their Is methods.
var (
	// ErrCapability is returned when a dialect cannot express a requested feature.
	ErrCapability = errors.New("sqlbridge: dialect capability not supported")

	// ErrQuoting is returned when an identifier cannot be quoted safely.
	ErrQuoting = errors.New("sqlbridge: identifier cannot be quoted")

	// ErrBinding is returned when a parameter value or reference is invalid.
	ErrBinding = errors.New("sqlbridge: invalid parameter binding")

	// ErrAcquisitionTimeout is returned when no connection handle could be
	// obtained within the configured window.
	ErrAcquisitionTimeout = errors.New("sqlbridge: connection acquisition timed out")

	// ErrConnectionRejected is returned when the native driver refuses a connection.
	ErrConnectionRejected = errors.New("sqlbridge: connection rejected")

	// ErrClosed is returned when a closed container, driver or handle is used.
	ErrClosed = errors.New("sqlbridge: use of closed resource")
)

// DialectCapabilityError reports a statement shape the active dialect cannot express.
type DialectCapabilityError struct {
	Dialect string // Dialect name, e.g. "mysql"
	Feature string // Feature name, e.g. "merge"
}

// Error returns the error string.
func (e *DialectCapabilityError) Error() string {
	return fmt.Sprintf("sqlbridge: dialect %s does not support %s", e.Dialect, e.Feature)
}

// Is reports whether the target error matches ErrCapability.
func (e *DialectCapabilityError) Is(err error) bool {
	return err == ErrCapability
}

// NewDialectCapabilityError returns a new DialectCapabilityError.
func NewDialectCapabilityError(dialect, feature string) *DialectCapabilityError {
	return &DialectCapabilityError{Dialect: dialect, Feature: feature}
}

// IsDialectCapability returns true if the error is a DialectCapabilityError.
func IsDialectCapability(err error) bool {
	if err == nil {
		return false
	}
	var e *DialectCapabilityError
	return errors.As(err, &e) || errors.Is(err, ErrCapability)
}

// IdentifierQuotingError reports an identifier that cannot be quoted or unquoted.
type IdentifierQuotingError struct {
	Dialect    string
	Identifier string
	Reason     string
}

// Error returns the error string.
func (e *IdentifierQuotingError) Error() string {
	return fmt.Sprintf("sqlbridge: %s: cannot quote identifier %q: %s", e.Dialect, e.Identifier, e.Reason)
}

// Is reports whether the target error matches ErrQuoting.
func (e *IdentifierQuotingError) Is(err error) bool {
	return err == ErrQuoting
}

// NewIdentifierQuotingError returns a new IdentifierQuotingError.
func NewIdentifierQuotingError(dialect, identifier, reason string) *IdentifierQuotingError {
	return &IdentifierQuotingError{Dialect: dialect, Identifier: identifier, Reason: reason}
}

// IsIdentifierQuoting returns true if the error is an IdentifierQuotingError.
func IsIdentifierQuoting(err error) bool {
	if err == nil {
		return false
	}
	var e *IdentifierQuotingError
	return errors.As(err, &e) || errors.Is(err, ErrQuoting)
}

// ParameterBindingError reports a value that does not fit the coercion table of
// its declared kind, or a statement whose markers and bindings disagree.
type ParameterBindingError struct {
	Dialect string
	Name    string // Parameter name, empty when the error is not tied to one
	Kind    string // Declared value kind, empty for structural errors
	Reason  string
	Err     error // Optional cause
}

// Error returns the error string.
func (e *ParameterBindingError) Error() string {
	var sb strings.Builder
	sb.WriteString("sqlbridge: ")
	sb.WriteString(e.Dialect)
	sb.WriteString(": ")
	if e.Name != "" {
		fmt.Fprintf(&sb, "parameter %q", e.Name)
	} else {
		sb.WriteString("parameters")
	}
	if e.Kind != "" {
		fmt.Fprintf(&sb, " (%s)", e.Kind)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Is reports whether the target error matches ErrBinding.
func (e *ParameterBindingError) Is(err error) bool {
	return err == ErrBinding
}

// Unwrap returns the underlying error.
func (e *ParameterBindingError) Unwrap() error {
	return e.Err
}

// IsParameterBinding returns true if the error is a ParameterBindingError.
func IsParameterBinding(err error) bool {
	if err == nil {
		return false
	}
	var e *ParameterBindingError
	return errors.As(err, &e) || errors.Is(err, ErrBinding)
}

// AcquireReason tells why a connection acquisition timed out.
type AcquireReason int

const (
	// PoolExhausted means every pooled connection stayed busy for the whole window.
	PoolExhausted AcquireReason = iota + 1
	// WritePermitContention means the single write permit stayed held for the whole window.
	WritePermitContention
)

// String returns the reason name.
func (r AcquireReason) String() string {
	switch r {
	case PoolExhausted:
		return "pool exhausted"
	case WritePermitContention:
		return "write permit contention"
	default:
		return fmt.Sprintf("AcquireReason(%d)", int(r))
	}
}

// AcquisitionTimeoutError reports that no connection handle was granted in time.
type AcquisitionTimeoutError struct {
	Driver  string // Instance id of the driver, as returned by its ID method
	Mode    string // Effective connection mode, e.g. "single-writer"
	Intent  string // "read" or "write"
	Reason  AcquireReason
	Waited  time.Duration
	Timeout time.Duration
}

// Error returns the error string.
func (e *AcquisitionTimeoutError) Error() string {
	return fmt.Sprintf("sqlbridge: %s acquisition timed out after %s (mode=%s, timeout=%s): %s",
		e.Intent, e.Waited.Round(time.Millisecond), e.Mode, e.Timeout, e.Reason)
}

// Is reports whether the target error matches ErrAcquisitionTimeout.
func (e *AcquisitionTimeoutError) Is(err error) bool {
	return err == ErrAcquisitionTimeout
}

// IsAcquisitionTimeout returns true if the error is an AcquisitionTimeoutError.
func IsAcquisitionTimeout(err error) bool {
	if err == nil {
		return false
	}
	var e *AcquisitionTimeoutError
	return errors.As(err, &e) || errors.Is(err, ErrAcquisitionTimeout)
}

// ConnectionRejectedError wraps a driver error raised while opening a connection.
type ConnectionRejectedError struct {
	Dialect string
	Err     error
}

// Error returns the error string.
func (e *ConnectionRejectedError) Error() string {
	return fmt.Sprintf("sqlbridge: %s: connection rejected: %v", e.Dialect, e.Err)
}

// Is reports whether the target error matches ErrConnectionRejected.
func (e *ConnectionRejectedError) Is(err error) bool {
	return err == ErrConnectionRejected
}

// Unwrap returns the underlying error.
func (e *ConnectionRejectedError) Unwrap() error {
	return e.Err
}

// IsConnectionRejected returns true if the error is a ConnectionRejectedError.
func IsConnectionRejected(err error) bool {
	if err == nil {
		return false
	}
	var e *ConnectionRejectedError
	return errors.As(err, &e) || errors.Is(err, ErrConnectionRejected)
}

// ErrorClass is the coarse category of a native execution error.
type ErrorClass int

const (
	ClassOther ErrorClass = iota
	ClassUnique
	ClassForeignKey
	ClassCheck
	ClassLocked
)

// String returns the class name.
func (c ErrorClass) String() string {
	switch c {
	case ClassUnique:
		return "unique"
	case ClassForeignKey:
		return "foreign key"
	case ClassCheck:
		return "check"
	case ClassLocked:
		return "locked"
	default:
		return "other"
	}
}

// NativeExecutionError wraps an error reported by the native driver while a
// statement was executing.
type NativeExecutionError struct {
	Dialect string
	Op      string // "exec", "query" or "scalar"
	Query   string
	Class   ErrorClass
	Err     error
}

// Error returns the error string.
func (e *NativeExecutionError) Error() string {
	if e.Class != ClassOther {
		return fmt.Sprintf("sqlbridge: %s: %s (%s violation): %v", e.Dialect, e.Op, e.Class, e.Err)
	}
	return fmt.Sprintf("sqlbridge: %s: %s: %v", e.Dialect, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *NativeExecutionError) Unwrap() error {
	return e.Err
}

// IsNativeExecution returns true if the error is a NativeExecutionError.
func IsNativeExecution(err error) bool {
	if err == nil {
		return false
	}
	var e *NativeExecutionError
	return errors.As(err, &e)
}

// IsUniqueViolation reports whether err is a unique or primary key violation.
func IsUniqueViolation(err error) bool { return classOf(err) == ClassUnique }

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool { return classOf(err) == ClassForeignKey }

// IsCheckViolation reports whether err is a check constraint violation.
func IsCheckViolation(err error) bool { return classOf(err) == ClassCheck }

// IsLocked reports whether err was caused by lock contention, a deadlock or
// a busy database file.
func IsLocked(err error) bool { return classOf(err) == ClassLocked }

// IsConstraintError reports whether err is any constraint violation.
func IsConstraintError(err error) bool {
	switch classOf(err) {
	case ClassUnique, ClassForeignKey, ClassCheck:
		return true
	default:
		return false
	}
}

func classOf(err error) ErrorClass {
	var e *NativeExecutionError
	if err == nil || !errors.As(err, &e) {
		return ClassOther
	}
	return e.Class
}
