// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/schedly/schedly/internal/metrics"
	"github.com/schedly/schedly/internal/model"
	"github.com/schedly/schedly/internal/registration"
	"github.com/schedly/schedly/internal/repository"
)

// Service errors.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUsernameTaken = errors.New("username already taken")
	ErrUserNotFound  = errors.New("user not found")
)

const tracerName = "github.com/schedly/schedly/internal/service"

// UserStore is the persistence the registration flow depends on.
// Implementations report repository.ErrUserNotFound and
// repository.ErrUsernameExists.
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, name, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// RegistrationService handles user registration.
type RegistrationService struct {
	store   UserStore
	metrics metrics.Recorder
	tracer  trace.Tracer
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(store UserStore, recorder metrics.Recorder) *RegistrationService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RegistrationService{
		store:   store,
		metrics: recorder,
		tracer:  otel.Tracer(tracerName),
	}
}

// Register creates a user with the given display name and handle.
//
// The handle is lowercased before the lookup. A handle already in use fails
// with ErrUsernameTaken, both when the lookup finds it and when the store's
// unique index rejects a concurrent insert.
func (s *RegistrationService) Register(ctx context.Context, name, username string) (user *model.User, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registration.Register")
	defer func() {
		s.metrics.ObserveRegisterDuration(time.Since(start))
		endSpan(span, err)
	}()

	input, err := registration.Validate(registration.Input{Name: name, Username: username})
	if err != nil {
		s.metrics.IncRegistrationInvalid()
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	span.SetAttributes(attribute.String("user.username", input.Username))

	existing, err := s.store.FindUserByUsername(ctx, input.Username)
	switch {
	case err == nil && existing != nil:
		s.metrics.IncUsernameConflict()
		return nil, ErrUsernameTaken
	case err != nil && !errors.Is(err, repository.ErrUserNotFound):
		return nil, fmt.Errorf("failed to look up username: %w", err)
	}

	user, err = s.store.CreateUser(ctx, input.Name, input.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			s.metrics.IncUsernameConflict()
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.metrics.IncUserRegistered()

	return user, nil
}

// CurrentUser resolves the user an identity cookie points at.
func (s *RegistrationService) CurrentUser(ctx context.Context, id string) (user *model.User, err error) {
	ctx, span := s.tracer.Start(ctx, "registration.CurrentUser",
		trace.WithAttributes(attribute.String("user.id", id)),
	)
	defer func() { endSpan(span, err) }()

	if id == "" {
		return nil, ErrUserNotFound
	}

	user, err = s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// endSpan marks unexpected failures on the span. Client errors are not span errors.
func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrInvalidInput) && !errors.Is(err, ErrUsernameTaken) && !errors.Is(err, ErrUserNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
