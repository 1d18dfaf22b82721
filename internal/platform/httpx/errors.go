// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("storage unavailable")
	ErrBadRequest  = errors.New("malformed request")
)

// FieldErrorer is implemented by errors that carry per-field messages.
type FieldErrorer interface {
	FieldErrors() map[string]string
}

// Titler lets an error choose the problem title shown to the caller.
type Titler interface {
	ProblemTitle() string
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		p := ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: err.Error()}
		var fe FieldErrorer
		if errors.As(err, &fe) {
			p.Errors = fe.FieldErrors()
		}
		WriteProblem(w, p)
	case errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrUnavailable):
		title := "Service Unavailable"
		var t Titler
		if errors.As(err, &t) {
			title = t.ProblemTitle()
		}
		Problem(w, http.StatusServiceUnavailable, title, err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
