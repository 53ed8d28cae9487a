// Package form drives the registration form: it validates what the user
// typed, submits it, and tells the host what to show or where to go next.
// Rendering is left to a UI implementation.
package form

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/schedly/schedly/internal/client"
	"github.com/schedly/schedly/internal/model"
	"github.com/schedly/schedly/internal/registration"
)

// DefaultNextStep is where a registered user goes next.
const DefaultNextStep = "/register/connect-calendar"

// Input is what the user typed.
type Input struct {
	Name     string
	Username string
}

// UI is the host that renders the form.
type UI interface {
	// Collect returns the user's input. defaults holds pre-filled values.
	Collect(ctx context.Context, defaults Input) (Input, error)
	// ShowFieldErrors displays one message per invalid field.
	ShowFieldErrors(errs map[string]string)
	// ShowMessage displays a message returned by the server.
	ShowMessage(message string)
	// Navigate moves on to path.
	Navigate(path string)
}

// Registrar submits a registration.
type Registrar interface {
	Register(ctx context.Context, name, username string) (*model.User, error)
}

// Outcome is the result of one submission.
type Outcome int

// Submission outcomes.
const (
	// OutcomeInvalid means validation failed and nothing was sent.
	OutcomeInvalid Outcome = iota
	// OutcomeRegistered means the user was created and the UI navigated on.
	OutcomeRegistered
	// OutcomeRejected means the server refused with a message the UI showed.
	OutcomeRejected
	// OutcomeFailed means an unexpected failure; it was logged only.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalid:
		return "invalid"
	case OutcomeRegistered:
		return "registered"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Controller runs the registration form.
type Controller struct {
	ui        UI
	registrar Registrar
	logger    *slog.Logger
	nextStep  string
	defaults  Input
}

// Option configures a Controller.
type Option func(*Controller)

// WithNextStep overrides DefaultNextStep.
func WithNextStep(path string) Option {
	return func(c *Controller) { c.nextStep = path }
}

// NewController creates a Controller.
func NewController(ui UI, registrar Registrar, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		ui:        ui,
		registrar: registrar,
		logger:    logger,
		nextStep:  DefaultNextStep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prefill sets the username shown when the form opens.
func (c *Controller) Prefill(username string) {
	c.defaults.Username = username
}

// PrefillName sets the display name shown when the form opens.
func (c *Controller) PrefillName(name string) {
	c.defaults.Name = name
}

// Defaults returns the pre-filled values.
func (c *Controller) Defaults() Input {
	return c.defaults
}

// Submit validates in and, when it passes, sends it to the registrar.
func (c *Controller) Submit(ctx context.Context, in Input) Outcome {
	valid, err := registration.Validate(registration.Input{Name: in.Name, Username: in.Username})
	if err != nil {
		var fields registration.FieldErrors
		if errors.As(err, &fields) {
			c.ui.ShowFieldErrors(fields)
			return OutcomeInvalid
		}
		c.logger.Error("registration validation failed", "error", err)
		return OutcomeFailed
	}

	if _, err := c.registrar.Register(ctx, valid.Name, valid.Username); err != nil {
		if msg, ok := displayable(err); ok {
			c.ui.ShowMessage(msg)
			return OutcomeRejected
		}
		c.logger.Error("registration failed", "error", err, "username", valid.Username)
		return OutcomeFailed
	}

	c.ui.Navigate(c.nextStep)
	return OutcomeRegistered
}

// Run collects and submits until a registration succeeds, the UI stops
// returning input or ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	current := c.defaults
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		in, err := c.ui.Collect(ctx, current)
		if err != nil {
			return err
		}
		current = in

		if c.Submit(ctx, in) == OutcomeRegistered {
			return nil
		}
	}
}

// displayable reports whether err carries a client-facing message from the
// API. Server faults are not shown.
func displayable(err error) (string, bool) {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return "", false
	}
	if apiErr.Message == "" || apiErr.Status >= 500 {
		return "", false
	}
	return apiErr.Message, true
}

// PrefillFromURL returns the username query parameter of rawURL, if any.
func PrefillFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(registration.FieldUsername)
}
