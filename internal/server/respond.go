package server

import (
	"encoding/json"
	"net/http"

	"recruithub/internal/common/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON parses the request body into dst. Malformed bodies are request
// validation failures, not internal errors.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.NewMissingFieldError("body: " + err.Error())
	}
	return nil
}

type messageBody struct {
	Message string `json:"message"`
}
