// Command resetpassword sets a new password for an existing account.
//
// Usage:
//
//	resetpassword <username>
//
// The password is read twice from the terminal without echo.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"metarticles/internal/server/config"
	"metarticles/internal/server/database"
	"metarticles/internal/server/service"

	"golang.org/x/term"
)

// readPassword is replaced in tests to avoid touching the terminal.
var readPassword = term.ReadPassword

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: resetpassword <username>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.UsesMemoryDatabase() {
		fmt.Fprintln(os.Stderr, "Error: DATABASE_URL must point at a postgres database")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	identity := service.NewIdentityService(database.NewUserRepository(db))
	if err := run(ctx, identity, os.Args[1], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		db.Close()
		os.Exit(1)
	}
}

type passwordSetter interface {
	SetPassword(ctx context.Context, username, password string) error
}

func run(ctx context.Context, identity passwordSetter, username string, w io.Writer) error {
	password, err := prompt(w, "New password: ")
	if err != nil {
		return err
	}
	confirm, err := prompt(w, "Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	if err := identity.SetPassword(ctx, username, password); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return fmt.Errorf("user %q not found", username)
		}
		return err
	}
	fmt.Fprintf(w, "✓ Password updated for %s\n", username)
	return nil
}

func prompt(w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
