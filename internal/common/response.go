package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error payload returned by the API. Error stays a plain
// string because storefront clients read it directly.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Error: message, Code: code})
}

// WriteError renders err through the error taxonomy.
func WriteError(w http.ResponseWriter, err error) {
	appErr := AsAppError(err)
	if appErr == nil {
		return
	}
	msg := appErr.Message
	if msg == "" {
		msg = http.StatusText(appErr.HTTPStatus)
	}
	JSONError(w, appErr.HTTPStatus, appErr.Code, msg)
}
