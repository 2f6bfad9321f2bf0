package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"article-analyzer/internal/services/analysis"
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// WriteError writes the {"error", "details"} body. Empty details default to "HTTP <status>".
func WriteError(w http.ResponseWriter, status int, message, details string) {
	if details == "" {
		details = fmt.Sprintf("HTTP %d", status)
	}
	WriteJSON(w, status, analysis.NewErrorResponse(message, &details))
}
