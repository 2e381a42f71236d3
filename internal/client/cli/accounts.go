package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/client/apiclient"
)

var errNoPendingCode = errors.New("no code requested, run sendcode first")

// expired logs the user out locally when the server stops accepting the
// cached token, and passes err through.
func (a *App) expired(ctx context.Context, err error) error {
	if apiclient.IsUnauthorized(err) {
		_ = a.auth.Logout(ctx)
		a.setIdentity(nil)
		return fmt.Errorf("session expired, please login again: %w", err)
	}
	return err
}

// SendCode asks for a phone number and optional app credentials and starts
// a verification.
func (a *App) SendCode(ctx context.Context) error {
	phone, err := getSimpleText(a.reader, "Enter phone number in international format", a.out)
	if err != nil {
		return err
	}
	creds, err := a.readCredentials()
	if err != nil {
		return err
	}

	rctx, cancel := a.withTimeout(ctx)
	defer cancel()

	hash, err := a.api.SendCode(rctx, phone, creds)
	if err != nil {
		return a.expired(ctx, err)
	}

	a.mu.Lock()
	a.pending = &pendingCode{phone: phone, hash: hash, creds: creds}
	a.mu.Unlock()

	fmt.Fprintln(a.out, "Code sent. Run verify to enter it.")
	return nil
}

func (a *App) readCredentials() (apiclient.Credentials, error) {
	raw, err := getSimpleText(a.reader, "App API ID (empty for server default)", a.out)
	if err != nil || raw == "" {
		return apiclient.Credentials{}, err
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return apiclient.Credentials{}, fmt.Errorf("invalid API ID %q", raw)
	}
	hash, err := a.readSecret("App API hash")
	if err != nil {
		return apiclient.Credentials{}, err
	}
	return apiclient.Credentials{APIID: id, APIHash: hash}, nil
}

// Verify submits the code for the pending verification. A wrong code keeps
// the verification pending so the user can retry.
func (a *App) Verify(ctx context.Context) error {
	a.mu.Lock()
	p := a.pending
	a.mu.Unlock()
	if p == nil {
		return errNoPendingCode
	}

	code, err := getSimpleText(a.reader, "Enter the code for "+p.phone, a.out)
	if err != nil {
		return err
	}

	rctx, cancel := a.withTimeout(ctx)
	defer cancel()

	acc, err := a.api.VerifyLogin(rctx, apiclient.VerifyLoginRequest{
		Phone:         p.phone,
		Code:          code,
		PhoneCodeHash: p.hash,
		Credentials:   p.creds,
	})
	if err != nil {
		return a.expired(ctx, err)
	}

	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()

	fmt.Fprintf(a.out, "Linked %s as %s (id %d)\n", acc.Phone, displayName(acc), acc.ID)
	return nil
}

func (a *App) Accounts(ctx context.Context) error {
	rctx, cancel := a.withTimeout(ctx)
	defer cancel()

	accounts, err := a.api.Accounts(rctx)
	if err != nil {
		return a.expired(ctx, err)
	}
	a.printAccounts(accounts)
	return nil
}

func (a *App) Check(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	rctx, cancel := a.withTimeout(ctx)
	defer cancel()

	status, err := a.api.CheckStatus(rctx, id)
	if err != nil {
		return a.expired(ctx, err)
	}
	fmt.Fprintf(a.out, "Account %d is %s\n", id, status)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	rctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.api.DeleteAccount(rctx, id); err != nil {
		return a.expired(ctx, err)
	}
	fmt.Fprintf(a.out, "Account %d deleted\n", id)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	rctx, cancel := a.withTimeout(ctx)
	defer cancel()

	accounts, err := a.api.RefreshAccounts(rctx)
	if err != nil {
		return a.expired(ctx, err)
	}
	a.printAccounts(accounts)
	return nil
}

func (a *App) printAccounts(accounts []*apiclient.LinkedAccount) {
	if len(accounts) == 0 {
		fmt.Fprintln(a.out, "No linked accounts")
		return
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPHONE\tNAME\tSTATUS\tLAST ACTIVE")
	for _, acc := range accounts {
		last := "-"
		if acc.LastActive != nil {
			last = acc.LastActive.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", acc.ID, acc.Phone, displayName(acc), acc.Status, last)
	}
	_ = tw.Flush()
}

func displayName(acc *apiclient.LinkedAccount) string {
	var parts []string
	for _, p := range []*string{acc.FirstName, acc.LastName} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if acc.UserName != nil && *acc.UserName != "" {
		parts = append(parts, "@"+*acc.UserName)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: <command> <account id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id %q", args[0])
	}
	return id, nil
}
