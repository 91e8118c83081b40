package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dom/pulse/internal/attendee"
	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/reservation"
)

const timeLayout = "Mon Jan 2 2006 15:04"

func exploreCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("explore")
	city := fs.String("city", "", "only events in this city")

	a, _, err := setup(fs, args, 0)
	if err != nil {
		return err
	}

	events, err := attendee.NewLibrary(a.gw, a.log).Explore(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTS\tTITLE\tWHERE\tADMISSION")
	shown := 0
	for _, e := range events {
		if *city != "" && (e.City == nil || !strings.EqualFold(*city, *e.City)) {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, formatTime(e.StartAt), e.Title, e.Location(), admission(&e))
		shown++
	}
	tw.Flush()
	if shown == 0 {
		fmt.Println("No upcoming events.")
	}
	return nil
}

func eventCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("event")

	a, operands, err := setup(fs, args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(operands[0])
	if err != nil {
		return err
	}

	event, err := attendee.NewLibrary(a.gw, a.log).Event(ctx, id)
	if err != nil {
		return err
	}
	printEvent(event)

	if event.IsFree {
		return nil
	}
	w := reservation.New(a.gw, *event, a.log)
	if err := w.Load(ctx); err != nil {
		return err
	}
	printTicketTypes(w.State().Lines)
	return nil
}

func rsvpCmd(ctx context.Context, args []string) error {
	return rsvp(ctx, "rsvp", args, (*reservation.Workflow).RSVPGoing)
}

func unrsvpCmd(ctx context.Context, args []string) error {
	return rsvp(ctx, "unrsvp", args, (*reservation.Workflow).CancelRSVP)
}

func rsvp(ctx context.Context, name string, args []string, mutate func(*reservation.Workflow, context.Context) (*domain.RSVP, error)) error {
	var creds credentials
	fs := newFlagSet(name)
	creds.addFlags(fs)

	a, operands, err := setup(fs, args, 1)
	if err != nil {
		return err
	}
	w, err := a.loadReservation(ctx, &creds, operands[0])
	if err != nil {
		return err
	}

	got, err := mutate(w, ctx)
	if err != nil {
		return err
	}
	if got != nil && got.Status == domain.RSVPGoing {
		fmt.Printf("You're going to %s.\n", w.State().Event.Title)
	} else {
		fmt.Printf("You're not going to %s.\n", w.State().Event.Title)
	}
	return nil
}

func buyCmd(ctx context.Context, args []string) error {
	var creds credentials
	fs := newFlagSet("buy")
	creds.addFlags(fs)
	selections := fs.StringArray("ticket", nil, "ticket type and quantity as NAME=QTY or ID=QTY; repeatable")
	yes := fs.BoolP("yes", "y", false, "place the order without showing the summary first")

	a, operands, err := setup(fs, args, 1)
	if err != nil {
		return err
	}
	w, err := a.loadReservation(ctx, &creds, operands[0])
	if err != nil {
		return err
	}
	if w.State().Event.IsFree {
		return errors.New("this event is free: use 'pulse rsvp' instead")
	}

	for _, sel := range *selections {
		key, qty, err := parseSelection(sel)
		if err != nil {
			return err
		}
		line, ok := findLine(w.State().Lines, key)
		if !ok {
			return fmt.Errorf("no ticket type %q for this event", key)
		}
		got, err := w.SetQuantity(line.TicketType.ID, qty)
		if err != nil {
			return err
		}
		if got < qty {
			fmt.Printf("Only %d %s ticket(s) available; selected %d.\n", line.TicketType.Available(), line.TicketType.Name, got)
		}
	}

	summary := w.Checkout()
	if summary.Empty() {
		printTicketTypes(w.State().Lines)
		return errors.New("select at least one ticket with --ticket NAME=QTY")
	}
	printSummary(summary)
	if summary.MixedCurrency() {
		fmt.Println("These tickets are priced in different currencies and are charged separately per currency.")
	}
	if !*yes && !confirm("Place order?") {
		fmt.Println("Order cancelled.")
		return nil
	}

	orderID, err := w.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Order %s confirmed. Run 'pulse mine' to see your tickets.\n", orderID)
	return nil
}

func mineCmd(ctx context.Context, args []string) error {
	var creds credentials
	fs := newFlagSet("mine")
	creds.addFlags(fs)
	items := fs.Bool("items", false, "also list the items of each order")

	a, _, err := setup(fs, args, 0)
	if err != nil {
		return err
	}
	if _, err := a.ready(ctx, &creds); err != nil {
		return err
	}

	lib := attendee.NewLibrary(a.gw, a.log)
	stuff, err := lib.Load(ctx)
	if err != nil {
		return err
	}
	passes, err := lib.Tickets(ctx)
	if err != nil {
		return err
	}

	fmt.Println("ORDERS")
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, o := range stuff.Orders {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", o.ID, formatTime(o.CreatedAt), snippetTitle(o.Event), reservation.FormatCents(o.TotalCents, o.Currency))
		if *items {
			orderItems, err := lib.OrderItems(ctx, o.ID)
			if err != nil {
				return err
			}
			for _, item := range orderItems {
				name := "ticket"
				if item.TicketType != nil {
					name = item.TicketType.Name
				}
				fmt.Fprintf(tw, "  \t%d x %s\t\t%s\n", item.Quantity, name, reservation.FormatCents(item.UnitPriceCents, item.Currency))
			}
		}
	}
	tw.Flush()

	fmt.Println("\nRSVPS")
	for _, r := range stuff.RSVPs {
		fmt.Printf("  %s  %s  %s\n", r.EventID, snippetTitle(r.Event), r.Status)
	}

	fmt.Println("\nTICKETS")
	tw = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, p := range passes {
		status := "valid"
		switch {
		case p.Ticket.Scanned():
			status = "scanned"
		case !p.Ticket.IsActive:
			status = "disabled"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", snippetTitle(p.Ticket.Event), ticketTypeName(&p.Ticket), status, p.Payload)
	}
	tw.Flush()
	return nil
}

// loadReservation signs in and loads the reservation workflow for one event.
func (a *app) loadReservation(ctx context.Context, creds *credentials, rawID string) (*reservation.Workflow, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	if _, err := a.ready(ctx, creds); err != nil {
		return nil, err
	}
	event, err := attendee.NewLibrary(a.gw, a.log).Event(ctx, id)
	if err != nil {
		return nil, err
	}
	w := reservation.New(a.gw, *event, a.log)
	if err := w.Load(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func parseSelection(s string) (string, int, error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok {
		return "", 0, fmt.Errorf("invalid --ticket %q: want NAME=QTY", s)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return "", 0, fmt.Errorf("invalid quantity in --ticket %q", s)
	}
	return strings.TrimSpace(key), qty, nil
}

func findLine(lines []reservation.Line, key string) (reservation.Line, bool) {
	for _, l := range lines {
		if l.TicketType.ID.String() == key || strings.EqualFold(l.TicketType.Name, key) {
			return l, true
		}
	}
	return reservation.Line{}, false
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	var answer string
	fmt.Scanln(&answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func admission(e *domain.Event) string {
	if !e.IsFree {
		return "tickets"
	}
	if e.RSVPCapacity != nil {
		return fmt.Sprintf("free, %d spots", *e.RSVPCapacity)
	}
	return "free"
}

func printEvent(e *domain.Event) {
	fmt.Println(e.Title)
	fmt.Printf("  When:  %s", formatTime(e.StartAt))
	if e.EndAt != nil {
		fmt.Printf(" to %s", formatTime(*e.EndAt))
	}
	fmt.Println()
	if where := e.Location(); where != "" {
		fmt.Printf("  Where: %s\n", where)
	}
	fmt.Printf("  Entry: %s\n", admission(e))
	if !e.IsPublished {
		fmt.Println("  (draft)")
	}
	if e.Description != "" {
		fmt.Printf("\n%s\n", e.Description)
	}
}

func printTicketTypes(lines []reservation.Line) {
	if len(lines) == 0 {
		fmt.Println("\nNo tickets on sale.")
		return
	}
	fmt.Println()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKET\tPRICE\tAVAILABLE")
	for _, l := range lines {
		available := strconv.Itoa(l.TicketType.Available())
		if l.TicketType.SoldOut() {
			available = "sold out"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.TicketType.Name, reservation.FormatCents(l.TicketType.PriceCents, l.TicketType.Currency), available)
	}
	tw.Flush()
}

func printSummary(s reservation.Summary) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, l := range s.Lines {
		fmt.Fprintf(tw, "%d x %s\t%s\n", l.Quantity, l.Name, reservation.FormatCents(l.SubtotalCents, l.Currency))
	}
	if s.MixedCurrency() {
		currencies := slices.Sorted(maps.Keys(s.Totals))
		for _, c := range currencies {
			fmt.Fprintf(tw, "Total %s\t%s\n", c, reservation.FormatCents(s.Totals[c], c))
		}
	} else {
		fmt.Fprintf(tw, "Total\t%s\n", reservation.FormatCents(s.TotalCents, s.Currency))
	}
	tw.Flush()
}

func snippetTitle(e *domain.EventSnippet) string {
	if e == nil {
		return "(event removed)"
	}
	return e.Title
}

func ticketTypeName(t *domain.Ticket) string {
	if t.TicketType == nil {
		return "Ticket"
	}
	return t.TicketType.Name
}

func formatTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}
