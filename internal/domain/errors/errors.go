// Package errors defines the error taxonomy shared by every layer of the
// service. Each error carries a Kind that the HTTP boundary maps onto a
// status code; the message is safe to show to the caller.
package errors

import (
	stderrors "errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAccessDenied
	KindValidation
	KindInvalidTransition
	KindConflict
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindValidation:
		return "validation"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by identity, or by kind when the target
// carries no message (the bare kind sentinels below).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e == t {
		return true
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func NotFound(message string) error          { return newError(KindNotFound, message) }
func AccessDenied(message string) error      { return newError(KindAccessDenied, message) }
func Validation(message string) error        { return newError(KindValidation, message) }
func InvalidTransition(message string) error { return newError(KindInvalidTransition, message) }
func Conflict(message string) error          { return newError(KindConflict, message) }
func Unauthorized(message string) error      { return newError(KindUnauthorized, message) }

// Internal wraps an unexpected failure. The message is what the caller
// sees; err is kept for logs and error reporting.
func Internal(message string, err error) error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, or
// KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-facing text of err.
func Message(err error) string {
	var e *Error
	if stderrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return ErrInternalServer.Message
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// Kind sentinels, matched by errors.Is against any error of that kind.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAccessDenied      = &Error{Kind: KindAccessDenied}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
)

var (
	ErrUserNotFound         = newError(KindNotFound, "User not found")
	ErrTaskNotFound         = newError(KindNotFound, "Task not found")
	ErrTeamNotFound         = newError(KindNotFound, "Team not found")
	ErrCommentNotFound      = newError(KindNotFound, "Comment not found")
	ErrLeaveRequestNotFound = newError(KindNotFound, "Leave request not found")
	ErrNotificationNotFound = newError(KindNotFound, "Notification not found")
	ErrAttachmentNotFound   = newError(KindNotFound, "Attachment not found")

	ErrUserAlreadyExists  = newError(KindConflict, "User with this username or email already exists")
	ErrLeavePending       = newError(KindConflict, "A pending leave request already exists")
	ErrStatusConflict     = newError(KindInvalidTransition, "Task status changed concurrently, reload and retry")
	ErrLeaveNotPending    = newError(KindInvalidTransition, "Leave request is no longer pending")
	ErrInvalidCredentials = newError(KindUnauthorized, "Invalid username or password")
	ErrInvalidToken       = newError(KindUnauthorized, "Invalid or expired token")

	ErrInternalServer = newError(KindInternal, "Internal server error")
	ErrBadRequest     = newError(KindValidation, "Malformed request body")

	ErrConfigFileReadFailed  = stderrors.New("failed to read config file")
	ErrConfigParseFailed     = stderrors.New("failed to parse config file")
	ErrConfigInvalidFormat   = stderrors.New("invalid config value")
	ErrInvalidGzipRequest    = newError(KindValidation, "Invalid gzip request body")
	ErrGzipCompressionFailed = stderrors.New("gzip compression failed")
)
