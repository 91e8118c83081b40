package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/dom/pulse/internal/organizer"
	"github.com/dom/pulse/internal/redemption"
	"github.com/dom/pulse/internal/reservation"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

// inputLayouts are accepted by --start and --end, in local time unless the
// value carries an offset.
var inputLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use YYYY-MM-DD HH:MM", s)
}

// eventFlags are the details shared by create-event and edit-event.
type eventFlags struct {
	title       string
	description string
	start       string
	end         string
	location    string
	city        string
}

func (f *eventFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "event title")
	fs.StringVar(&f.description, "description", "", "event description")
	fs.StringVar(&f.start, "start", "", "start time, YYYY-MM-DD HH:MM")
	fs.StringVar(&f.end, "end", "", "optional end time, YYYY-MM-DD HH:MM")
	fs.StringVar(&f.location, "location", "", "venue name")
	fs.StringVar(&f.city, "city", "", "city")
}

func (f *eventFlags) times() (time.Time, *time.Time, error) {
	var start time.Time
	if f.start != "" {
		t, err := parseTime(f.start)
		if err != nil {
			return time.Time{}, nil, err
		}
		start = t
	}
	if f.end == "" {
		return start, nil, nil
	}
	end, err := parseTime(f.end)
	if err != nil {
		return time.Time{}, nil, err
	}
	return start, &end, nil
}

// parseTicketDraft reads NAME:PRICE_CENTS:CAPACITY[:CURRENCY].
func parseTicketDraft(s string) (organizer.TicketDraft, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return organizer.TicketDraft{}, fmt.Errorf("invalid --ticket %q: want NAME:PRICE_CENTS:CAPACITY[:CURRENCY]", s)
	}
	draft := organizer.TicketDraft{
		Name:       parts[0],
		PriceCents: parts[1],
		Capacity:   parts[2],
	}
	if len(parts) == 4 {
		draft.Currency = parts[3]
	}
	return draft, nil
}

func createEventCmd(ctx context.Context, args []string) error {
	var creds credentials
	var details eventFlags
	fs := newFlagSet("create-event")
	creds.addFlags(fs)
	details.add(fs)
	category := fs.String("category", "", "category, e.g. Music")
	free := fs.Bool("free", false, "free event with RSVPs instead of tickets")
	rsvpCapacity := fs.String("rsvp-capacity", "", "RSVP limit for free events; empty means unlimited")
	tickets := fs.StringArray("ticket", nil, "ticket type as NAME:PRICE_CENTS:CAPACITY[:CURRENCY]; repeatable")
	cover := fs.String("cover", "", "path to a JPEG cover image")
	publish := fs.Bool("publish", false, "publish immediately")

	a, _, err := setup(fs, args, 0)
	if err != nil {
		return err
	}

	start, end, err := details.times()
	if err != nil {
		return err
	}
	form := organizer.EventForm{
		Title:        details.title,
		Description:  details.description,
		StartAt:      start,
		EndAt:        end,
		LocationName: details.location,
		City:         details.city,
		Category:     *category,
		IsFree:       *free,
		RSVPCapacity: *rsvpCapacity,
		IsPublished:  *publish,
	}
	for _, raw := range *tickets {
		draft, err := parseTicketDraft(raw)
		if err != nil {
			return err
		}
		form.Tickets = append(form.Tickets, draft)
	}
	if *cover != "" {
		form.Cover, err = os.ReadFile(*cover)
		if err != nil {
			return fmt.Errorf("read cover: %w", err)
		}
	}

	// Fail on the form before touching the network.
	if err := form.Validate(); err != nil {
		return err
	}
	if _, err := a.organizer(ctx, &creds); err != nil {
		return err
	}

	event, err := organizer.NewCreator(a.gw, a.cfg.CoverBucket, a.log).Create(ctx, form)
	var partial *organizer.PartialCreateError
	if errors.As(err, &partial) {
		fmt.Printf("Event %s was created, but setup did not finish.\n", partial.Event.ID)
		fmt.Println("Fix it with 'pulse edit-event' and 'pulse set-cover', or remove it with 'pulse delete-event'.")
		return err
	}
	if err != nil {
		return err
	}

	fmt.Printf("Created %s (%s)\n", event.Title, event.ID)
	if !event.IsPublished {
		fmt.Printf("It is a draft. Run 'pulse publish %s' when ready.\n", event.ID)
	}
	return nil
}

func editEventCmd(ctx context.Context, args []string) error {
	var creds credentials
	var details eventFlags
	fs := newFlagSet("edit-event")
	creds.addFlags(fs)
	details.add(fs)
	unpublish := fs.Bool("unpublish", false, "move the event back to draft")

	a, operands, err := setup(fs, args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(operands[0])
	if err != nil {
		return err
	}
	if _, err := a.organizer(ctx, &creds); err != nil {
		return err
	}

	event, err := a.gw.Events.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	edit := organizer.EditFrom(event)

	// Only flags given on the command line change the event.
	start, end, err := details.times()
	if err != nil {
		return err
	}
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "title":
			edit.Title = details.title
		case "description":
			edit.Description = details.description
		case "start":
			edit.StartAt = start
		case "end":
			edit.EndAt = end
		case "location":
			edit.LocationName = details.location
		case "city":
			edit.City = details.city
		case "unpublish":
			edit.IsPublished = !*unpublish
		}
	})

	if err := organizer.NewCreator(a.gw, a.cfg.CoverBucket, a.log).Update(ctx, id, edit); err != nil {
		return err
	}
	fmt.Println("Event updated.")
	return nil
}

func setCoverCmd(ctx context.Context, args []string) error {
	var creds credentials
	fs := newFlagSet("set-cover")
	creds.addFlags(fs)

	a, operands, err := setup(fs, args, 2)
	if err != nil {
		return err
	}
	id, err := parseID(operands[0])
	if err != nil {
		return err
	}
	jpeg, err := os.ReadFile(operands[1])
	if err != nil {
		return fmt.Errorf("read cover: %w", err)
	}
	if _, err := a.organizer(ctx, &creds); err != nil {
		return err
	}

	url, err := organizer.NewCreator(a.gw, a.cfg.CoverBucket, a.log).UploadCover(ctx, id, jpeg)
	if err != nil {
		return err
	}
	fmt.Printf("Cover uploaded: %s\n", url)
	return nil
}

func publishCmd(ctx context.Context, args []string) error {
	return eventAction(ctx, "publish", args, func(ctx context.Context, c *organizer.Creator, id uuid.UUID) error {
		if err := c.Publish(ctx, id); err != nil {
			return err
		}
		fmt.Println("Event published.")
		return nil
	})
}

func deleteEventCmd(ctx context.Context, args []string) error {
	return eventAction(ctx, "delete-event", args, func(ctx context.Context, c *organizer.Creator, id uuid.UUID) error {
		if !confirm("Delete this event with its tickets and orders?") {
			fmt.Println("Kept.")
			return nil
		}
		if err := c.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Println("Event deleted.")
		return nil
	})
}

func eventAction(ctx context.Context, name string, args []string, fn func(context.Context, *organizer.Creator, uuid.UUID) error) error {
	var creds credentials
	fs := newFlagSet(name)
	creds.addFlags(fs)

	a, operands, err := setup(fs, args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(operands[0])
	if err != nil {
		return err
	}
	if _, err := a.organizer(ctx, &creds); err != nil {
		return err
	}
	return fn(ctx, organizer.NewCreator(a.gw, a.cfg.CoverBucket, a.log), id)
}

func ordersCmd(ctx context.Context, args []string) error {
	var creds credentials
	fs := newFlagSet("orders")
	creds.addFlags(fs)

	a, _, err := setup(fs, args, 0)
	if err != nil {
		return err
	}
	if _, err := a.organizer(ctx, &creds); err != nil {
		return err
	}

	orders, err := organizer.NewCreator(a.gw, a.cfg.CoverBucket, a.log).OrdersFeed(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("No orders yet.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tPLACED\tEVENT\tTOTAL\tSTATUS")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.ID, formatTime(o.CreatedAt), snippetTitle(o.Event), reservation.FormatCents(o.TotalCents, o.Currency), o.Status)
	}
	return tw.Flush()
}

func manageCmd(ctx context.Context, args []string) error {
	var creds credentials
	fs := newFlagSet("manage")
	creds.addFlags(fs)

	a, operands, err := setup(fs, args, -1)
	if err != nil {
		return err
	}
	if len(operands) > 1 {
		return errors.New("expected at most one event id")
	}
	if _, err := a.organizer(ctx, &creds); err != nil {
		return err
	}

	if len(operands) == 0 {
		return listMyEvents(ctx, a)
	}

	dashboard, event, err := a.dashboard(ctx, operands[0])
	if err != nil {
		return err
	}
	printEvent(event)
	printDashboard(dashboard.View())
	return nil
}

func listMyEvents(ctx context.Context, a *app) error {
	events, err := organizer.NewCreator(a.gw, a.cfg.CoverBucket, a.log).MyEvents(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("You have no events. Create one with 'pulse create-event'.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTS\tTITLE\tADMISSION\tSTATUS")
	for _, e := range events {
		status := "published"
		if !e.IsPublished {
			status = "draft"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, formatTime(e.StartAt), e.Title, admission(&e), status)
	}
	return tw.Flush()
}

func scanCmd(ctx context.Context, args []string) error {
	var creds credentials
	fs := newFlagSet("scan")
	creds.addFlags(fs)

	a, operands, err := setup(fs, args, -1)
	if err != nil {
		return err
	}
	if len(operands) == 0 {
		fs.Usage()
		return errors.New("expected an event id")
	}
	if _, err := a.organizer(ctx, &creds); err != nil {
		return err
	}

	dashboard, event, err := a.dashboard(ctx, operands[0])
	if err != nil {
		return err
	}

	codes := make(chan string)
	go func() {
		defer close(codes)
		if len(operands) > 1 {
			for _, code := range operands[1:] {
				select {
				case codes <- code:
				case <-ctx.Done():
					return
				}
			}
			return
		}
		fmt.Fprintf(os.Stderr, "Scanning for %s. Enter one code per line, Ctrl-D to stop.\n", event.Title)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case codes <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	debouncer := redemption.NewDebouncer(a.cfg.ScanCooldown, time.Now)
	for result := range dashboard.Scanner().Feed(ctx, codes, debouncer) {
		printScan(result, dashboard.View())
	}

	stats := dashboard.View().Stats()
	fmt.Printf("\n%d issued, %d scanned, %d disabled.\n", stats.Issued, stats.Scanned, stats.Disabled)
	return nil
}

func toggleCmd(ctx context.Context, args []string) error {
	var creds credentials
	fs := newFlagSet("toggle")
	creds.addFlags(fs)

	a, operands, err := setup(fs, args, 2)
	if err != nil {
		return err
	}
	ticketID, err := parseID(operands[1])
	if err != nil {
		return err
	}
	if _, err := a.organizer(ctx, &creds); err != nil {
		return err
	}

	dashboard, _, err := a.dashboard(ctx, operands[0])
	if err != nil {
		return err
	}
	ticket, err := dashboard.Toggle(ctx, ticketID)
	if err != nil {
		return err
	}

	state := "disabled"
	if ticket.IsActive {
		state = "enabled"
	}
	fmt.Printf("Ticket %s is now %s.\n", ticket.ID, state)
	if ticket.Scanned() {
		fmt.Printf("It was scanned at %s.\n", formatTime(*ticket.ScannedAt))
	}
	return nil
}

// dashboard loads the door dashboard for one of the organizer's events.
func (a *app) dashboard(ctx context.Context, rawID string) (*organizer.Dashboard, *domain.Event, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, nil, err
	}
	user := a.gw.Auth.CurrentUser()
	if user == nil {
		return nil, nil, errors.New("not signed in")
	}

	event, err := a.gw.Events.GetEvent(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if event.CreatorID != user.ID {
		return nil, nil, errors.New("you can only manage your own events")
	}

	scope := gateway.TicketScope{EventID: event.ID, OrganizerID: user.ID}
	d := organizer.NewDashboard(a.gw, scope, a.log)
	if err := d.Load(ctx); err != nil {
		return nil, nil, err
	}
	return d, event, nil
}

func printDashboard(v organizer.View) {
	stats := v.Stats()
	fmt.Printf("\n%d tickets issued, %d scanned, %d disabled. Revenue %s.\n",
		stats.Issued, stats.Scanned, stats.Disabled, reservation.FormatCents(stats.Revenue, currencyOf(v)))

	if len(v.Orders) > 0 {
		fmt.Println("\nORDERS")
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, o := range v.Orders {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", o.ID, formatTime(o.CreatedAt), v.Name(o.UserID, "Unknown buyer"), reservation.FormatCents(o.TotalCents, o.Currency))
		}
		tw.Flush()
	}

	if len(v.Tickets) > 0 {
		fmt.Println("\nTICKETS")
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, t := range v.Tickets {
			status := "valid"
			switch {
			case t.Scanned() && t.IsActive:
				status = "scanned, re-enabled"
			case t.Scanned():
				status = "scanned"
			case !t.IsActive:
				status = "disabled"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", t.ID, ticketTypeName(&t), v.Name(t.OwnerUserID, "Unknown attendee"), status)
		}
		tw.Flush()
	}
}

func printScan(r redemption.Result, v organizer.View) {
	line := fmt.Sprintf("[%s] %s", r.Code, r.Message())
	if r.Ticket != nil {
		line += fmt.Sprintf(" %s, %s", ticketTypeName(r.Ticket), v.Name(r.Ticket.OwnerUserID, "Unknown attendee"))
	}
	fmt.Println(line)
}

func currencyOf(v organizer.View) string {
	for _, o := range v.Orders {
		if o.Currency != "" {
			return o.Currency
		}
	}
	return domain.DefaultCurrency
}
