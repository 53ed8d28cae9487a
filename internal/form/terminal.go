package form

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/schedly/schedly/internal/registration"
)

// TerminalUI renders the form on a line-oriented terminal.
//
// Input is read by a single background goroutine so a prompt can return as
// soon as its context is cancelled, even while the terminal is blocked.
type TerminalUI struct {
	in  *bufio.Reader
	out io.Writer

	startReader sync.Once
	lines       chan string
	readErr     error // set before lines is closed

	// Destination is the last path passed to Navigate.
	Destination string
}

// NewTerminalUI creates a TerminalUI reading from in and writing to out.
func NewTerminalUI(in io.Reader, out io.Writer) *TerminalUI {
	return &TerminalUI{
		in:    bufio.NewReader(in),
		out:   out,
		lines: make(chan string),
	}
}

// Collect prompts for the username, then the name. An empty answer keeps
// the default.
func (t *TerminalUI) Collect(ctx context.Context, defaults Input) (Input, error) {
	username, err := t.prompt(ctx, "Username", defaults.Username)
	if err != nil {
		return Input{}, err
	}
	name, err := t.prompt(ctx, "Name", defaults.Name)
	if err != nil {
		return Input{}, err
	}
	return Input{Name: name, Username: username}, nil
}

// ShowFieldErrors prints one line per invalid field in form order.
func (t *TerminalUI) ShowFieldErrors(errs map[string]string) {
	for _, field := range []string{registration.FieldUsername, registration.FieldName} {
		if msg, ok := errs[field]; ok {
			fmt.Fprintf(t.out, "  %s: %s\n", field, msg)
		}
	}
}

// ShowMessage prints a message from the server.
func (t *TerminalUI) ShowMessage(message string) {
	fmt.Fprintf(t.out, "! %s\n", message)
}

// Navigate records and prints the next step.
func (t *TerminalUI) Navigate(path string) {
	t.Destination = path
	fmt.Fprintf(t.out, "Registered. Continue at %s\n", path)
}

func (t *TerminalUI) prompt(ctx context.Context, label, def string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if def != "" {
		fmt.Fprintf(t.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(t.out, "%s: ", label)
	}

	t.startReader.Do(func() { go t.readLines() })

	var line string
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-t.lines:
		if !ok {
			return "", t.readErr
		}
		line = l
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// readLines feeds lines to prompt until the input fails. A final line
// without a newline is still delivered before the error.
func (t *TerminalUI) readLines() {
	defer close(t.lines)
	for {
		line, err := t.in.ReadString('\n')
		if line != "" {
			t.lines <- line
		}
		if err != nil {
			t.readErr = err
			return
		}
	}
}
