// Package apierrors defines the typed error taxonomy surfaced by array
// operations. Errors carry a Kind used for matching with errors.Is, the
// array's numeric error code when one was reported, and an optional cause.
package apierrors

import (
	"errors"
	"fmt"
)

// Kind classifies an array error.
type Kind string

const (
	KindGeneric                      Kind = "Generic"
	KindNameInUse                    Kind = "NameInUse"
	KindStorageResourceNameInUse     Kind = "StorageResourceNameInUse"
	KindCGNameInUse                  Kind = "ConsistencyGroupNameInUse"
	KindNotFound                     Kind = "NotFound"
	KindNothingToModify              Kind = "NothingToModify"
	KindAlreadyAttached              Kind = "AlreadyAttached"
	KindNotAttached                  Kind = "NotAttached"
	KindHLUNumberInUse               Kind = "HLUNumberInUse"
	KindNoHLUAvailable               Kind = "NoHLUAvailable"
	KindActionNotSupported           Kind = "ActionNotSupported"
	KindCGMemberNotAllowed           Kind = "CGMemberNotAllowed"
	KindThinCloneNotAllowed          Kind = "ThinCloneNotAllowed"
	KindBaseHasThinClone             Kind = "BaseHasThinClone"
	KindDeleteAttachedSnap           Kind = "DeleteAttachedSnap"
	KindHostAccessAlreadyExists      Kind = "HostAccessAlreadyExists"
	KindAttachExceedLimit            Kind = "AttachExceedLimit"
	KindInitiatorNotFound            Kind = "InitiatorNotFound"
	KindUnknownInitiatorType         Kind = "UnknownInitiatorType"
	KindMigrationTimeout             Kind = "MigrationTimeout"
	KindMigrationSourceDestNotExists Kind = "MigrationSourceDestNotExists"
	KindInvalidState                 Kind = "InvalidState"
	KindMirrorImageNotFound          Kind = "MirrorImageNotFound"
	KindMirror                       Kind = "Mirror"
)

// Sentinels for use with errors.Is. Matching compares Kind only.
var (
	ErrGeneric                      = &Error{Kind: KindGeneric}
	ErrNameInUse                    = &Error{Kind: KindNameInUse}
	ErrStorageResourceNameInUse     = &Error{Kind: KindStorageResourceNameInUse}
	ErrCGNameInUse                  = &Error{Kind: KindCGNameInUse}
	ErrNotFound                     = &Error{Kind: KindNotFound}
	ErrNothingToModify              = &Error{Kind: KindNothingToModify}
	ErrAlreadyAttached              = &Error{Kind: KindAlreadyAttached}
	ErrNotAttached                  = &Error{Kind: KindNotAttached}
	ErrHLUNumberInUse               = &Error{Kind: KindHLUNumberInUse}
	ErrNoHLUAvailable               = &Error{Kind: KindNoHLUAvailable}
	ErrActionNotSupported           = &Error{Kind: KindActionNotSupported}
	ErrCGMemberNotAllowed           = &Error{Kind: KindCGMemberNotAllowed}
	ErrThinCloneNotAllowed          = &Error{Kind: KindThinCloneNotAllowed}
	ErrBaseHasThinClone             = &Error{Kind: KindBaseHasThinClone}
	ErrDeleteAttachedSnap           = &Error{Kind: KindDeleteAttachedSnap}
	ErrHostAccessAlreadyExists      = &Error{Kind: KindHostAccessAlreadyExists}
	ErrAttachExceedLimit            = &Error{Kind: KindAttachExceedLimit}
	ErrInitiatorNotFound            = &Error{Kind: KindInitiatorNotFound}
	ErrUnknownInitiatorType         = &Error{Kind: KindUnknownInitiatorType}
	ErrMigrationTimeout             = &Error{Kind: KindMigrationTimeout}
	ErrMigrationSourceDestNotExists = &Error{Kind: KindMigrationSourceDestNotExists}
	ErrInvalidState                 = &Error{Kind: KindInvalidState}
	ErrMirrorImageNotFound          = &Error{Kind: KindMirrorImageNotFound}
	ErrMirror                       = &Error{Kind: KindMirror}
)

// Error is an array-level failure.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Cause   error
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (error code %d)", msg, e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind caused by err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsArrayError reports whether err originated from the array rather than
// from the transport.
func IsArrayError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
