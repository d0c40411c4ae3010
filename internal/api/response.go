package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/simplytransit/arrivals/internal/models"
)

// Response is the envelope for successful responses.
type Response struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// ErrorResponse is the envelope for error responses.
type ErrorResponse struct {
	Errors []Error `json:"errors"`
}

// Error is a single error object.
type Error struct {
	Status string `json:"status,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// sendResponse sends a JSON response
func (s *Server) sendResponse(w http.ResponseWriter, response Response) {
	w.Header().Set("Content-Type", "application/json")

	jsonData, err := json.Marshal(response)
	if err != nil {
		log.Printf("Error marshaling JSON: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Write(jsonData)
}

// sendErrorResponse sends a JSON error response
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Errors: []Error{
			{
				Status: strconv.Itoa(statusCode),
				Title:  http.StatusText(statusCode),
				Detail: message,
			},
		},
	}

	jsonData, err := json.Marshal(response)
	if err != nil {
		log.Printf("Error marshaling JSON error response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Write(jsonData)
}

// sendError maps facade errors onto HTTP status codes.
func (s *Server) sendError(w http.ResponseWriter, err error) {
	var notFound *models.NotFoundError
	var validation *models.ValidationError
	switch {
	case errors.As(err, &notFound):
		s.sendErrorResponse(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		s.sendErrorResponse(w, http.StatusBadRequest, validation.Error())
	default:
		log.Printf("query failed: %v", err)
		s.sendErrorResponse(w, http.StatusInternalServerError, "internal error")
	}
}
