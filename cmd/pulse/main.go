package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

type command func(ctx context.Context, args []string) error

func commands() map[string]command {
	return map[string]command{
		"signup":           signupCmd,
		"login":            loginCmd,
		"logout":           logoutCmd,
		"whoami":           whoamiCmd,
		"complete-profile": completeProfileCmd,
		"explore":          exploreCmd,
		"event":            eventCmd,
		"rsvp":             rsvpCmd,
		"unrsvp":           unrsvpCmd,
		"buy":              buyCmd,
		"mine":             mineCmd,
		"create-event":     createEventCmd,
		"edit-event":       editEventCmd,
		"set-cover":        setCoverCmd,
		"publish":          publishCmd,
		"delete-event":     deleteEventCmd,
		"orders":           ordersCmd,
		"manage":           manageCmd,
		"scan":             scanCmd,
		"toggle":           toggleCmd,
		"serve-media":      serveMediaCmd,
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "help", "-h", "--help":
		printUsage()
		return
	}

	cmd, ok := commands()[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, os.Args[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Pulse - event ticketing client

USAGE:
  pulse <command> [options]

ACCOUNT:
  signup             Create an account
  login              Check credentials and show the session state
  logout             Revoke the remote session
  whoami             Show the signed-in account and profile
  complete-profile   Fill in name, birthdate, interests and role

ATTENDEES:
  explore            List upcoming published events
  event <id>         Show one event and its ticket types
  rsvp <id>          RSVP going to a free event
  unrsvp <id>        Cancel an RSVP
  buy <id>           Buy tickets: --ticket General=2 --ticket VIP=1
  mine               List my orders, RSVPs and tickets

ORGANIZERS:
  create-event       Create an event
  edit-event <id>    Change an event's details
  set-cover <id> <f> Upload a JPEG cover image
  publish <id>       Publish a draft event
  delete-event <id>  Delete an event
  orders             Orders across all my events
  manage [id]        List my events, or show one event's door dashboard
  scan <id> [code]   Redeem codes from arguments, or one per line on stdin
  toggle <id> <tid>  Enable or disable ticket <tid> of event <id>

BACKEND:
  serve-media        Serve locally stored covers over HTTP

ENVIRONMENT:
  PULSE_EMAIL, PULSE_PASSWORD   Credentials when --email/--password are omitted
  PULSE_BACKEND                 rest (default) or postgres
  SUPABASE_URL, SUPABASE_ANON_KEY, DATABASE_URL, JWT_SECRET, STORAGE_DIR, ...
  A .env file in the working directory is read first.

Run 'pulse <command> --help' for the options of one command.`)
}
