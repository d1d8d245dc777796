package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by the service layers. Handlers wrap or return
// these so responses carry the right status without each handler owning a
// switch of its own.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalid       = errors.New("invalid input")
	ErrUnprocessable = errors.New("unprocessable")
)

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest, "bad request"
	case errors.Is(err, ErrUnprocessable):
		return http.StatusUnprocessableEntity, "unprocessable entity"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
