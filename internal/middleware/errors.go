package middleware

import (
	"net/http"

	"github.com/go-chi/render"
)

// Messages shared with the handlers.
const (
	MsgInternalError  = "An internal error occurred."
	MsgRateLimited    = "Too many registration attempts. Please try again later."
	MsgBodyTooLarge   = "Request body too large."
	MsgOriginRejected = "Origin not allowed."
)

// ErrorResponse is the JSON error envelope used across the API.
// Errors is set for invalid input and maps a field to its first violation.
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Message: message})
}
