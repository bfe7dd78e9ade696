// Package errors defines the error taxonomy of an index rebuild. Sentinels
// classify failures; AppError attaches the offending document and a message
// while remaining matchable with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration  = errors.New("configuration error")
	ErrAuthentication = errors.New("authentication failure")
	ErrDecode         = errors.New("decode failure")
	ErrPersistence    = errors.New("persistence failure")
	ErrRunInProgress  = errors.New("index rebuild already in progress")
)

type AppError struct {
	Err     error
	DocID   string
	Message string
}

func (e *AppError) Error() string {
	if e.DocID != "" {
		return fmt.Sprintf("%s: document %s: %s", e.Err.Error(), e.DocID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// ForDocument returns a copy of err bound to docID. Errors that are not an
// AppError are wrapped under their best-matching sentinel.
func ForDocument(err error, docID string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		cp := *appErr
		cp.DocID = docID
		return &cp
	}
	return &AppError{Err: err, DocID: docID, Message: "processing failed"}
}

// Class returns a short, stable name for the error's category, suitable for
// metric labels.
func Class(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrRunInProgress):
		return "run_in_progress"
	default:
		return "internal"
	}
}

// IsDocumentFailure reports whether err concerns a single document's
// content rather than the run's environment.
func IsDocumentFailure(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrDecode)
}
