package form

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedly/schedly/internal/client"
	"github.com/schedly/schedly/internal/model"
	"github.com/schedly/schedly/internal/registration"
)

type fakeUI struct {
	inputs      []Input
	defaultsArg []Input
	fieldErrors []map[string]string
	messages    []string
	navigated   []string
}

func (f *fakeUI) Collect(_ context.Context, defaults Input) (Input, error) {
	f.defaultsArg = append(f.defaultsArg, defaults)
	if len(f.inputs) == 0 {
		return Input{}, io.EOF
	}
	in := f.inputs[0]
	f.inputs = f.inputs[1:]
	return in, nil
}

func (f *fakeUI) ShowFieldErrors(errs map[string]string) { f.fieldErrors = append(f.fieldErrors, errs) }
func (f *fakeUI) ShowMessage(message string) { f.messages = append(f.messages, message) }
func (f *fakeUI) Navigate(path string) { f.navigated = append(f.navigated, path) }

type fakeRegistrar struct {
	calls []Input
	err   error
}

func (f *fakeRegistrar) Register(_ context.Context, name, username string) (*model.User, error) {
	f.calls = append(f.calls, Input{Name: name, Username: username})
	if f.err != nil {
		return nil, f.err
	}
	return &model.User{ID: "01HX", Name: name, Username: username, CreatedAt: time.Now()}, nil
}

func newTestController(reg Registrar) (*Controller, *fakeUI, *bytes.Buffer) {
	ui := &fakeUI{}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	return NewController(ui, reg, logger), ui, &logs
}

func TestSubmit_InvalidInputBlocksSubmission(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		field   string
		message string
	}{
		{"username too short", Input{Name: "Diego", Username: "di"}, registration.FieldUsername, registration.MsgUsernameTooShort},
		{"username with digits", Input{Name: "Diego", Username: "diego2"}, registration.FieldUsername, registration.MsgUsernameInvalid},
		{"username with underscore", Input{Name: "Diego", Username: "die_go"}, registration.FieldUsername, registration.MsgUsernameInvalid},
		{"empty username", Input{Name: "Diego", Username: ""}, registration.FieldUsername, registration.MsgUsernameTooShort},
		{"name too short", Input{Name: "Di", Username: "diego"}, registration.FieldName, registration.MsgNameTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistrar{}
			c, ui, _ := newTestController(reg)

			outcome := c.Submit(context.Background(), tt.in)

			assert.Equal(t, OutcomeInvalid, outcome)
			assert.Empty(t, reg.calls, "registrar must not be called")
			require.Len(t, ui.fieldErrors, 1)
			assert.Equal(t, tt.message, ui.fieldErrors[0][tt.field])
			assert.Empty(t, ui.navigated)
		})
	}
}

func TestSubmit_SuccessNavigates(t *testing.T) {
	reg := &fakeRegistrar{}
	c, ui, _ := newTestController(reg)

	outcome := c.Submit(context.Background(), Input{Name: "Diego", Username: "Diego"})

	assert.Equal(t, OutcomeRegistered, outcome)
	require.Len(t, reg.calls, 1)
	assert.Equal(t, "diego", reg.calls[0].Username, "username is lowercased before submission")
	assert.Equal(t, []string{DefaultNextStep}, ui.navigated)
}

func TestSubmit_CustomNextStep(t *testing.T) {
	ui := &fakeUI{}
	c := NewController(ui, &fakeRegistrar{}, nil, WithNextStep("/welcome"))

	c.Submit(context.Background(), Input{Name: "Diego", Username: "diego"})
	assert.Equal(t, []string{"/welcome"}, ui.navigated)
}

func TestSubmit_StructuredRejectionIsShown(t *testing.T) {
	reg := &fakeRegistrar{err: &client.APIError{Status: http.StatusBadRequest, Message: "Username already taken."}}
	c, ui, logs := newTestController(reg)

	outcome := c.Submit(context.Background(), Input{Name: "Diego", Username: "diego"})

	assert.Equal(t, OutcomeRejected, outcome)
	assert.Equal(t, []string{"Username already taken."}, ui.messages)
	assert.Empty(t, ui.navigated)
	assert.Empty(t, logs.String())
}

func TestSubmit_UnclassifiedFailureIsLoggedOnly(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"transport", errors.New("dial tcp 127.0.0.1:8080: connection refused")},
		{"no message", &client.APIError{Status: http.StatusBadGateway}},
		{"server fault", &client.APIError{Status: http.StatusInternalServerError, Message: "An internal error occurred."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistrar{err: tt.err}
			c, ui, logs := newTestController(reg)

			outcome := c.Submit(context.Background(), Input{Name: "Diego", Username: "diego"})

			assert.Equal(t, OutcomeFailed, outcome)
			assert.Empty(t, ui.messages)
			assert.Empty(t, ui.navigated)
			assert.Contains(t, logs.String(), "registration failed")
			assert.Contains(t, logs.String(), "level=ERROR")
		})
	}
}

func TestRun_RetriesUntilRegistered(t *testing.T) {
	reg := &fakeRegistrar{}
	c, ui, _ := newTestController(reg)
	c.Prefill("diego")

	ui.inputs = []Input{
		{Name: "Di", Username: "diego"},
		{Name: "Diego", Username: "diego"},
	}

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, Input{Username: "diego"}, ui.defaultsArg[0])
	assert.Equal(t, Input{Name: "Di", Username: "diego"}, ui.defaultsArg[1], "previous answers are kept")
	assert.Len(t, reg.calls, 1)
	assert.Equal(t, []string{DefaultNextStep}, ui.navigated)
}

func TestRun_StopsWhenInputEnds(t *testing.T) {
	c, ui, _ := newTestController(&fakeRegistrar{})
	ui.inputs = []Input{{Name: "Di", Username: "d"}}

	assert.ErrorIs(t, c.Run(context.Background()), io.EOF)
}

func TestPrefillFromURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://schedly.app/register?username=diego", "diego"},
		{"/register?username=Ana-Maria&ref=x", "Ana-Maria"},
		{"/register", ""},
		{"%zz", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PrefillFromURL(tt.raw), tt.raw)
	}
}

func TestTerminalUI(t *testing.T) {
	in := strings.NewReader("\nDiego\n")
	var out bytes.Buffer
	ui := NewTerminalUI(in, &out)

	got, err := ui.Collect(context.Background(), Input{Username: "diego"})
	require.NoError(t, err)
	assert.Equal(t, Input{Name: "Diego", Username: "diego"}, got)
	assert.Contains(t, out.String(), "Username [diego]: ")

	ui.ShowFieldErrors(map[string]string{
		registration.FieldName:     registration.MsgNameTooShort,
		registration.FieldUsername: registration.MsgUsernameTooShort,
	})
	ui.ShowMessage("Username already taken.")
	ui.Navigate(DefaultNextStep)

	text := out.String()
	assert.Less(t, strings.Index(text, "username:"), strings.Index(text, "name: The name"))
	assert.Contains(t, text, "! Username already taken.")
	assert.Equal(t, DefaultNextStep, ui.Destination)

	_, err = ui.Collect(context.Background(), Input{})
	assert.ErrorIs(t, err, io.EOF)
}

func TestTerminalUI_CancelWhileWaitingForInput(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	ui := NewTerminalUI(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := ui.Collect(ctx, Input{})
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Collect did not return after cancel")
	}

	// Input typed after the cancelled prompt reaches the next one.
	go func() { _, _ = io.WriteString(pw, "diego\nDiego\n") }()

	got, err := ui.Collect(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, Input{Name: "Diego", Username: "diego"}, got)
}

func TestTerminalUI_LastLineWithoutNewline(t *testing.T) {
	ui := NewTerminalUI(strings.NewReader("diego\nDiego"), io.Discard)

	got, err := ui.Collect(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, Input{Name: "Diego", Username: "diego"}, got)

	_, err = ui.Collect(context.Background(), Input{})
	assert.ErrorIs(t, err, io.EOF)
}
