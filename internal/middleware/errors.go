package middleware

import (
	"encoding/json"
	"net/http"
)

// Error codes written by middleware. They match the codes used by the API handlers.
const (
	ErrCodeAuthFailed  = "auth_failed"
	ErrCodeRateLimited = "rate_limit_exceeded"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError writes the {"error":{"code","message"}} envelope and records the
// code for the logging middleware.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	SetErrorCode(r.Context(), code)

	var body errorBody
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
