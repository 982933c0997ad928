package v1

import (
	"encoding/json"
	"net/http"
)

// writeJSON encodes v with the given status. Encoding failures are marked
// on the response for the Log middleware; the status line is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		markErr(w, err)
	}
}

// writeError sends a JSON error body and marks err for logging.
func writeError(w http.ResponseWriter, status int, err error) {
	markErr(w, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
