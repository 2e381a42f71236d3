package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/client/apiclient"
	"github.com/dmitrijs2005/linkkeeper/internal/client/config"
	"github.com/dmitrijs2005/linkkeeper/internal/client/localdb"
	"github.com/dmitrijs2005/linkkeeper/internal/client/services"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// authService is the login state the commands rely on.
type authService interface {
	Register(ctx context.Context, userName, password, confirm, secretPhrase string) (*apiclient.Identity, error)
	Login(ctx context.Context, userName, password string) (*apiclient.Identity, error)
	Restore(ctx context.Context) (*apiclient.Identity, error)
	Logout(ctx context.Context) error
	ResetPassword(ctx context.Context, userName, secretPhrase, newPassword, confirm string) error
}

// accountsAPI is the subset of the API client used by the account commands.
type accountsAPI interface {
	Health(ctx context.Context) error
	SendCode(ctx context.Context, phone string, creds apiclient.Credentials) (string, error)
	VerifyLogin(ctx context.Context, req apiclient.VerifyLoginRequest) (*apiclient.LinkedAccount, error)
	Accounts(ctx context.Context) ([]*apiclient.LinkedAccount, error)
	CheckStatus(ctx context.Context, id int64) (string, error)
	DeleteAccount(ctx context.Context, id int64) error
	RefreshAccounts(ctx context.Context) ([]*apiclient.LinkedAccount, error)
}

// pendingCode is the verification started by sendcode and finished by verify.
type pendingCode struct {
	phone string
	hash  string
	creds apiclient.Credentials
}

type App struct {
	config  *config.Config
	db      *sql.DB
	auth    authService
	api     accountsAPI
	reader  *bufio.Reader
	out     io.Writer
	timeout time.Duration

	mu       sync.Mutex
	mode     Mode
	identity *apiclient.Identity
	pending  *pendingCode
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	db, err := localdb.Open(ctx, c.StatePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing local state: %w", err)
	}

	api := apiclient.New(c.ServerURL, apiclient.WithRetry(c.MaxRetries, 250*time.Millisecond))

	return &App{
		config:  c,
		db:      db,
		auth:    services.NewAuthService(api, db),
		api:     api,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		timeout: c.RequestTimeout,
	}, nil
}

// Run restores a cached session, starts the health watcher and blocks in
// the REPL until the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.db.Close()

	if id, err := a.auth.Restore(ctx); err == nil {
		a.setIdentity(id)
		log.Printf("Restored session for %s", id.UserName)
	}

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	log.Println("Welcome to linkkeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.identity != nil
}

func (a *App) setIdentity(id *apiclient.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.identity = id
	if id == nil {
		a.pending = nil
	}
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := ""
	if a.identity != nil {
		s = a.identity.UserName + " "
	}
	if a.mode != "" {
		s += string(a.mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// StartOnlineStatusWatcher polls the server until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.probe(ctx)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.api.Health(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// withTimeout bounds one command's API calls.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}
