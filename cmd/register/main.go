// Package main is a terminal front end for the registration form.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/schedly/schedly/internal/client"
	"github.com/schedly/schedly/internal/form"
)

var (
	app = kingpin.New("register", "Register a schedly account from the terminal.")

	serverURL = app.Flag("server", "base URL of the schedly API").Default("http://localhost:8080").Envar("SCHEDLY_SERVER").String()
	linkURL   = app.Flag("url", "registration link; its ?username= pre-fills the handle").String()
	username  = app.Flag("username", "pre-fill the username").String()
	name      = app.Flag("name", "pre-fill the display name").String()
	verbose   = app.Flag("verbose", "log at debug level").Short('v').Bool()
)

// options are the parsed command-line flags.
type options struct {
	server   string
	link     string
	username string
	name     string
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		server:   *serverURL,
		link:     *linkURL,
		username: *username,
		name:     *name,
	}

	err := run(ctx, opts, os.Stdin, os.Stdout, logger)
	if code := exitCode(err); code != 0 {
		if code != exitInterrupted {
			logger.Error("register failed", "error", err)
		}
		stop()
		os.Exit(code)
	}
}

// exitInterrupted is the shell convention for a SIGINT-terminated process.
const exitInterrupted = 130

// exitCode maps the result of run to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return 1
	}
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer, logger *slog.Logger) error {
	api := client.New(opts.server)
	ui := form.NewTerminalUI(in, out)
	controller := form.NewController(ui, api, logger)

	// --username wins over the link's ?username=
	prefill := opts.username
	if prefill == "" && opts.link != "" {
		prefill = form.PrefillFromURL(opts.link)
	}
	controller.Prefill(prefill)
	if opts.name != "" {
		controller.PrefillName(opts.name)
	}

	fmt.Fprintln(out, "Create your schedly account")
	if err := controller.Run(ctx); err != nil {
		return err
	}

	logger.Debug("registered", "user_id", api.UserID(), "next", ui.Destination)
	return nil
}
