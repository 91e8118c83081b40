package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/session"
)

func signupCmd(ctx context.Context, args []string) error {
	var creds credentials
	fs := newFlagSet("signup")
	creds.addFlags(fs)

	a, _, err := setup(fs, args, 0)
	if err != nil {
		return err
	}
	if err := creds.resolve(); err != nil {
		return err
	}

	snap, err := a.session.SignUp(ctx, creds.email, creds.password)
	if err != nil {
		return err
	}
	if !snap.Authenticated() {
		fmt.Println("Account created. Confirm your email address, then run 'pulse login'.")
		return nil
	}
	fmt.Println("Account created.")
	printSession(snap)
	return nil
}

func loginCmd(ctx context.Context, args []string) error {
	var creds credentials
	fs := newFlagSet("login")
	creds.addFlags(fs)

	a, _, err := setup(fs, args, 0)
	if err != nil {
		return err
	}
	snap, err := a.login(ctx, &creds)
	if err != nil {
		return err
	}
	printSession(snap)
	return nil
}

func logoutCmd(ctx context.Context, args []string) error {
	var creds credentials
	fs := newFlagSet("logout")
	creds.addFlags(fs)

	a, _, err := setup(fs, args, 0)
	if err != nil {
		return err
	}
	if _, err := a.login(ctx, &creds); err != nil {
		return err
	}
	if err := a.session.SignOut(ctx); err != nil {
		return fmt.Errorf("signed out locally, but the server did not confirm: %w", err)
	}
	fmt.Println("Signed out.")
	return nil
}

func whoamiCmd(ctx context.Context, args []string) error {
	var creds credentials
	fs := newFlagSet("whoami")
	creds.addFlags(fs)

	a, _, err := setup(fs, args, 0)
	if err != nil {
		return err
	}
	snap, err := a.login(ctx, &creds)
	if err != nil {
		return err
	}

	if user := a.gw.Auth.CurrentUser(); user != nil {
		fmt.Printf("Email:     %s\n", user.Email)
	}
	printSession(snap)
	if p := snap.Profile; p != nil {
		if p.Birthdate != nil && *p.Birthdate != "" {
			fmt.Printf("Birthdate: %s\n", *p.Birthdate)
		}
		if len(p.Interests) > 0 {
			fmt.Printf("Interests: %s\n", strings.Join(p.Interests, ", "))
		}
	}
	return nil
}

func completeProfileCmd(ctx context.Context, args []string) error {
	var creds credentials
	var in session.ProfileInput
	var role string

	fs := newFlagSet("complete-profile")
	creds.addFlags(fs)
	fs.StringVar(&in.FullName, "name", "", "full name")
	fs.StringVar(&in.Birthdate, "birthdate", "", "birthdate as YYYY-MM-DD")
	fs.StringSliceVar(&in.Interests, "interest", nil, "an interest; repeat or comma-separate")
	fs.StringVar(&role, "role", string(domain.RoleAttendee), "attendee or organizer")

	a, _, err := setup(fs, args, 0)
	if err != nil {
		return err
	}
	in.Role = domain.Role(strings.ToLower(strings.TrimSpace(role)))

	if err := in.Validate(); err != nil {
		return err
	}
	if _, err := a.login(ctx, &creds); err != nil {
		return err
	}
	if err := a.session.CompleteProfile(ctx, in); err != nil {
		return err
	}

	fmt.Println("Profile saved.")
	printSession(a.session.Snapshot())
	return nil
}

func printSession(snap session.Snapshot) {
	fmt.Printf("User ID:   %s\n", snap.UserID)
	fmt.Printf("State:     %s\n", snap.State)
	if snap.Profile != nil && snap.Profile.FullName != nil {
		fmt.Printf("Name:      %s\n", *snap.Profile.FullName)
	}
	if snap.Role != "" {
		fmt.Printf("Role:      %s\n", snap.Role)
	}
	if snap.NeedsProfileCompletion() {
		fmt.Println("Your profile is incomplete. Run 'pulse complete-profile'.")
	}
}
