package common

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound        = errors.New("requested resource not found")
	ErrUnauthorized    = errors.New("unauthorized access")
	ErrForbidden       = errors.New("forbidden access")
	ErrBadRequest      = errors.New("bad request")
	ErrConflict        = errors.New("resource conflict")
	ErrValidation      = errors.New("validation failed")
	ErrDependency      = errors.New("dependency unavailable") // datastore or file store failure
	ErrTooManyRequests = errors.New("too many requests")
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrTooManyRequests) {
		return http.StatusTooManyRequests
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // Unique violation
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}

// Error pairs a sentinel kind with the message shown to API clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// PublicMessage is the text safe to put in an error body. Anything that maps
// to a 5xx collapses to a generic message; the cause stays in server logs.
func PublicMessage(err error) string {
	if HTTPStatusFromError(err) >= http.StatusInternalServerError {
		return "Internal server error"
	}
	var pub *Error
	if errors.As(err, &pub) {
		return pub.Message
	}
	return err.Error()
}
