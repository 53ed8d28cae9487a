package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/schedly/schedly/internal/handler/dto"
	"github.com/schedly/schedly/internal/middleware"
	"github.com/schedly/schedly/internal/model"
	"github.com/schedly/schedly/internal/registration"
	"github.com/schedly/schedly/internal/service"
	"github.com/schedly/schedly/internal/session"
)

// Response messages of the users endpoints.
const (
	MsgUsernameTaken  = "Username already taken."
	MsgInvalidBody    = "Invalid request body."
	MsgNotRegistering = "Not registering."
	MsgUserNotFound   = "User not found."
)

// UserService is the registration behavior the handler needs.
type UserService interface {
	Register(ctx context.Context, name, username string) (*model.User, error)
	CurrentUser(ctx context.Context, id string) (*model.User, error)
}

// UserHandler handles the registration endpoints.
type UserHandler struct {
	svc           UserService
	logger        *slog.Logger
	secureCookies bool
}

// NewUserHandler creates a new UserHandler. secureCookies sets the Secure
// attribute on the identity cookie.
func NewUserHandler(svc UserService, logger *slog.Logger, secureCookies bool) *UserHandler {
	return &UserHandler{
		svc:           svc,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// Register handles POST /users.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, middleware.MsgBodyTooLarge)
			return
		}
		writeError(w, r, http.StatusBadRequest, MsgInvalidBody)
		return
	}

	user, err := h.svc.Register(r.Context(), req.Name, req.Username)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("user_registered",
		"user_id", user.ID,
		"username", user.Username,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	session.Set(w, session.Cookie{UserID: user.ID, Secure: h.secureCookies})
	writeJSON(w, r, http.StatusCreated, dto.ToUserResponse(user))
}

// Me handles GET /users/me. It resolves the user named by the identity cookie.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, MsgNotRegistering)
		return
	}

	user, err := h.svc.CurrentUser(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ToUserResponse(user))
}

// handleServiceError maps service errors to HTTP responses.
func (h *UserHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var fields registration.FieldErrors

	switch {
	case errors.Is(err, service.ErrUsernameTaken):
		writeError(w, r, http.StatusBadRequest, MsgUsernameTaken)
	case errors.Is(err, service.ErrInvalidInput) && errors.As(err, &fields):
		writeJSON(w, r, http.StatusBadRequest, dto.ErrorResponse{
			Message: fields.First(),
			Errors:  fields,
		})
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, MsgUserNotFound)
	default:
		h.logger.Error("internal_error",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, r, http.StatusInternalServerError, middleware.MsgInternalError)
	}
}
