// Package apperr defines the error kinds surfaced by processing, lookup and
// analysis, and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for callers.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindUnsupportedMedia Kind = "unsupported_media_type"
	KindNotFound         Kind = "not_found"
	KindNoContent        Kind = "no_content"
	KindProcessing       Kind = "processing_error"
	KindUpstream         Kind = "upstream_error"
)

// Error carries a kind and a human-readable detail. Status is only set for
// upstream failures and holds the status returned by the remote service.
type Error struct {
	Kind   Kind
	Detail string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidInput(detail string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Detail: fmt.Sprintf(detail, args...)}
}

func UnsupportedMedia(detail string, args ...any) *Error {
	return &Error{Kind: KindUnsupportedMedia, Detail: fmt.Sprintf(detail, args...)}
}

func NotFound(detail string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf(detail, args...)}
}

func NoContent(detail string, args ...any) *Error {
	return &Error{Kind: KindNoContent, Detail: fmt.Sprintf(detail, args...)}
}

// Processing wraps an I/O or rasterization failure on the write path.
func Processing(err error, detail string, args ...any) *Error {
	return &Error{Kind: KindProcessing, Detail: fmt.Sprintf(detail, args...), Err: err}
}

// Upstream records a non-success answer from the analysis service.
func Upstream(status int, body string) *Error {
	return &Error{Kind: KindUpstream, Detail: body, Status: status}
}

// KindOf returns the kind of err, or KindProcessing for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProcessing
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Detail returns the detail of a typed error, falling back to err.Error().
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return err.Error()
}

// HTTPStatus maps err onto a response status. NoContent reports 404 so the
// body can still carry the error message.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case KindNotFound, KindNoContent:
		return http.StatusNotFound
	case KindUpstream:
		if e.Status >= 400 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
