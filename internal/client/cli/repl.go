package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	ResetPassword(ctx context.Context) error
	Logout(ctx context.Context) error
	SendCode(ctx context.Context) error
	Verify(ctx context.Context) error
	Accounts(ctx context.Context) error
	Check(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Refresh(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: register, login, reset, exit"
	helpLoggedIn  = "Available commands: sendcode, verify, (l)ist, check <id>, delete <id>, refresh, logout, exit"
)

// runREPL reads commands line by line from reader and dispatches them to a.
// Commands share reader with their own prompts, so input is never read ahead.
//
//	Not logged in:
//	  - help           show available commands
//	  - register       create an account
//	  - login          authenticate
//	  - reset          reset the password with the secret phrase
//	  - exit | quit    leave the program
//
//	Logged in:
//	  - sendcode       request a verification code for a phone number
//	  - verify         submit the code and link the account
//	  - list           list linked accounts
//	  - check <id>     probe one account's session
//	  - delete <id>    unlink an account
//	  - refresh        probe every account
//	  - logout         forget the cached token
//	  - exit | quit    leave the program
//
// Errors are reported and the loop keeps going. It exits on EOF, on "exit"
// and when ctx is cancelled.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}

		printlnFn(fmt.Sprintf("lk %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}

		if err := dispatch(ctx, a, cmd, args); err != nil {
			printlnFn("Error:", err)
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn(helpLoggedIn)
		} else {
			printlnFn(helpLoggedOut)
		}
		return nil
	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	case "reset":
		return a.ResetPassword(ctx)
	}

	if !a.isLoggedIn() {
		switch cmd {
		case "logout", "sendcode", "verify", "l", "list", "check", "delete", "refresh":
			printlnFn("Please login first")
		default:
			printlnFn("Unknown command:", cmd)
		}
		return nil
	}

	switch cmd {
	case "logout":
		return a.Logout(ctx)
	case "sendcode":
		return a.SendCode(ctx)
	case "verify":
		return a.Verify(ctx)
	case "l", "list":
		return a.Accounts(ctx)
	case "check":
		return a.Check(ctx, args)
	case "delete":
		return a.Delete(ctx, args)
	case "refresh":
		return a.Refresh(ctx)
	}

	printlnFn("Unknown command:", cmd)
	return nil
}
