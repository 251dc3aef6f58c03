package apperrors

import (
	"context"
	"errors"
	"strings"
)

type Kind string

const (
	KindPermissionDenied Kind = "permission_denied"
	KindImportFailed     Kind = "import_failed"
	KindNameTaken        Kind = "name_taken"
	KindDeleteForbidden  Kind = "delete_forbidden"
	KindNotFound         Kind = "not_found"
	KindRemote           Kind = "remote"
	KindCancelled        Kind = "cancelled"
	KindInvalid          Kind = "invalid"
)

type Error struct {
	Kind Kind
	// SafeMessage is intended for user-facing output and logs.
	SafeMessage string
	// Cause keeps the original internal error for troubleshooting.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindPermissionDenied:
		return "Microphone permission denied."
	case KindImportFailed:
		return "Import failed."
	case KindNameTaken:
		return "This name is already taken."
	case KindDeleteForbidden:
		return "Bundled audio cannot be deleted."
	case KindNotFound:
		return "Audio file not found."
	case KindRemote:
		return "Remote service request failed."
	case KindCancelled:
		return "Cancelled."
	case KindInvalid:
		return "Invalid request."
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

func PermissionDenied(err error) error { return New(KindPermissionDenied, "", err) }
func ImportFailed(err error) error     { return New(KindImportFailed, "", err) }
func NotFound(err error) error         { return New(KindNotFound, "", err) }
func Remote(err error) error           { return New(KindRemote, "", err) }
func Cancelled(err error) error        { return New(KindCancelled, "", err) }
func Invalid(msg string) error         { return New(KindInvalid, msg, nil) }

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsCancelled treats context cancellation the same as an explicit user cancel.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, KindCancelled) {
		return true
	}
	return errors.Is(err, context.Canceled)
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
