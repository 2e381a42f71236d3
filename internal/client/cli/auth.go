package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errPasswordMismatch = errors.New("passwords do not match")

// readSecret reads a hidden value and returns it as a string, wiping the
// terminal buffer.
func (a *App) readSecret(prompt string) (string, error) {
	b, err := getPassword(prompt, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(b)
	return string(b), nil
}

// readNewPassword asks twice and returns both values; the server enforces
// that they match, this only saves a round trip.
func (a *App) readNewPassword() (string, string, error) {
	password, err := a.readSecret("Enter password")
	if err != nil {
		return "", "", err
	}
	confirm, err := a.readSecret("Confirm password")
	if err != nil {
		return "", "", err
	}
	if password != confirm {
		return "", "", errPasswordMismatch
	}
	return password, confirm, nil
}

// Register prompts for a username, password and secret phrase and creates
// the account. It does not log in.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, confirm, err := a.readNewPassword()
	if err != nil {
		return err
	}
	phrase, err := a.readSecret("Enter secret phrase (used to reset the password)")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	id, err := a.auth.Register(ctx, userName, password, confirm, phrase)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s. You can login now.\n", id.UserName)
	return nil
}

// Login prompts for credentials, authenticates and caches the token.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := a.readSecret("Enter password")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	id, err := a.auth.Login(ctx, userName, password)
	if err != nil {
		return err
	}

	a.setIdentity(id)
	fmt.Fprintf(a.out, "Logged in as %s\n", id.UserName)
	return nil
}

// ResetPassword sets a new password after proving the secret phrase.
func (a *App) ResetPassword(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	phrase, err := a.readSecret("Enter secret phrase")
	if err != nil {
		return err
	}
	password, confirm, err := a.readNewPassword()
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.auth.ResetPassword(ctx, userName, phrase, password, confirm); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Password updated")
	return nil
}

// Logout drops the cached token and any verification in progress.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.setIdentity(nil)
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
