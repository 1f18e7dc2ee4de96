package domain

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is the core's failure taxonomy. Msg is safe to show to callers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var inner *Error
	if e.Err != nil && !errors.As(e.Err, &inner) {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind and message, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == e.Msg
}

var (
	ErrNotFound        = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrRoomNotFound    = &Error{Kind: KindNotFound, Msg: "room not found"}
	ErrBookingNotFound = &Error{Kind: KindNotFound, Msg: "booking not found"}
	ErrUserNotFound    = &Error{Kind: KindNotFound, Msg: "guest not found"}
	ErrImageNotFound   = &Error{Kind: KindNotFound, Msg: "image not found for this room"}

	ErrPastCheckIn      = &Error{Kind: KindValidation, Msg: "check-in date cannot be in the past"}
	ErrInvertedDates    = &Error{Kind: KindValidation, Msg: "check-out date must be after check-in date"}
	ErrInvalidStatus    = &Error{Kind: KindValidation, Msg: "invalid status value"}
	ErrCapacityExceeded = &Error{Kind: KindValidation, Msg: "room capacity exceeded"}
	ErrBookingClosed    = &Error{Kind: KindValidation, Msg: "booking is already closed"}

	ErrRoomUnavailable = &Error{Kind: KindConflict, Msg: "room is not available for the selected dates"}
	ErrRoomOutOfOrder  = &Error{Kind: KindConflict, Msg: "room is under maintenance"}
	ErrRoomNumberTaken = &Error{Kind: KindConflict, Msg: "room number already exists"}
	ErrRoomInUse       = &Error{Kind: KindConflict, Msg: "room has active bookings"}
	ErrEmailTaken      = &Error{Kind: KindConflict, Msg: "email already registered"}

	// ErrDuplicateReference is a storage-level collision; callers regenerate and retry.
	ErrDuplicateReference = &Error{Kind: KindInternal, Msg: "booking reference already exists"}

	ErrForbidden = &Error{Kind: KindUnauthorized, Msg: "not authorized"}
)

// Validation builds a ValidationError with a caller-facing message.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Detail extends a sentinel's message while keeping its kind and errors.Is on the sentinel.
func Detail(base *Error, format string, args ...any) error {
	return &Error{Kind: base.Kind, Msg: base.Msg + " (" + fmt.Sprintf(format, args...) + ")", Err: base}
}

// Internal wraps a storage or infrastructure failure.
func Internal(op string, err error) error {
	return &Error{Kind: KindInternal, Msg: op, Err: err}
}

// KindOf classifies err; anything outside the taxonomy is Internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// PublicMessage returns the message that may be shown to callers.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Kind != KindInternal {
		return de.Msg
	}
	return "internal error"
}
