// Package dto defines request and response bodies of the HTTP API.
package dto

import (
	"time"

	"github.com/schedly/schedly/internal/middleware"
	"github.com/schedly/schedly/internal/model"
)

// RegisterRequest is the body of POST /users.
type RegisterRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// UserResponse is a registered user.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// ToUserResponse converts a model.User to its response body.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}

// ErrorResponse is the body of every error response. The middleware writes
// the same envelope for failures raised before a handler runs.
type ErrorResponse = middleware.ErrorResponse
