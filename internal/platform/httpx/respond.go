package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpx: encode response", "error", err)
	}
}

// Problem is an RFC 7807 style error payload.
type Problem struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// Error writes a Problem response for err, mapping sentinel errors from the
// service layer onto HTTP status codes.
func Error(w http.ResponseWriter, err error) {
	status, title := classify(err)
	JSON(w, status, Problem{Status: status, Title: title, Detail: err.Error()})
}

// BadRequest writes a 400 Problem with the given detail.
func BadRequest(w http.ResponseWriter, detail string) {
	JSON(w, http.StatusBadRequest, Problem{Status: http.StatusBadRequest, Title: "bad request", Detail: detail})
}
