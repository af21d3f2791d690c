package api

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Error codes returned in ErrorBody.Code.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeValidation     = "validation_error"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnknownCommand = "unknown_command"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeInternal       = "internal_error"
)

// ErrorResponse wraps every non-2xx reply:
//
//	{"error": {"code": "unknown_command", "message": "..."}}
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a stable machine code and a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// problem pairs an HTTP status with its error code.
type problem struct {
	status int
	code   string
}

var (
	badRequest     = problem{http.StatusBadRequest, ErrCodeBadRequest}
	invalid        = problem{http.StatusBadRequest, ErrCodeValidation}
	notFound       = problem{http.StatusNotFound, ErrCodeNotFound}
	unknownCommand = problem{http.StatusNotFound, ErrCodeUnknownCommand}
	unavailable    = problem{http.StatusServiceUnavailable, ErrCodeUnavailable}
	internal       = problem{http.StatusInternalServerError, ErrCodeInternal}
)

func (p problem) write(w http.ResponseWriter, message string) {
	writeJSON(w, p.status, ErrorResponse{Error: ErrorBody{Code: p.code, Message: message}})
}

// writeJSON encodes v before touching the response, so an unencodable
// value becomes a 500 rather than a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, `{"error":{"code":"internal_error","message":"encoding response"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // the client may already be gone
	w.Write(buf.Bytes())
}
