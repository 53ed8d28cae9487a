// Package handler provides HTTP request handlers.
package handler

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/schedly/schedly/internal/handler/dto"
)

// Version is reported by the info endpoint.
const Version = "0.1.0"

// Handler serves the endpoints that have no dependencies.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// InfoResponse is the body of GET /.
type InfoResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// Info describes the service.
// GET /
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, InfoResponse{Service: "schedly", Version: Version})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "Resource not found.")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed.")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, dto.ErrorResponse{Message: message})
}
