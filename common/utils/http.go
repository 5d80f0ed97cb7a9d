package utils

import (
	"encoding/json"
	"net/http"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/rs/zerolog/log"
)

// WriteJSON writes a JSON response with the given status code and data
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	writeBody(w, statusCode, models.BaseResponse{
		Data: data,
	})
}

// WriteMessage writes a JSON response with the given status code and message
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	writeBody(w, statusCode, models.MessageResponse{
		Message: message,
	})
}

// WriteError writes a JSON response with the given status code and error message
func WriteError(w http.ResponseWriter, statusCode int, errorMessage string) {
	writeBody(w, statusCode, models.ErrorResponse{
		Error: http.StatusText(statusCode),
		Msg:   errorMessage,
	})
}

func writeBody(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// headers are gone at this point, so an encoding failure can only be logged
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to write response body")
	}
}
