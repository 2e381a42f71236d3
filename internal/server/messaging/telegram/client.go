// Package telegram adapts github.com/gotd/td to the messaging.Client contract.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/logging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/materials"
	"github.com/dmitrijs2005/linkkeeper/internal/server/messaging"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// Client connects to Telegram using session material from a materials.Store.
type Client struct {
	store    materials.Store
	defaults messaging.Credentials
	logger   logging.Logger
}

// NewClient returns a client that falls back to defaults when a connect
// call carries zero credentials.
func NewClient(store materials.Store, defaults messaging.Credentials, logger logging.Logger) *Client {
	return &Client{
		store:    store,
		defaults: defaults,
		logger:   logger.With("module", "telegram"),
	}
}

var _ messaging.Client = (*Client)(nil)

// Connect starts the MTProto client and returns once it is ready to serve
// calls, or fails with common.ErrConnect.
func (c *Client) Connect(ctx context.Context, materialKey string, creds messaging.Credentials) (messaging.Conn, error) {
	if creds.IsZero() {
		creds = c.defaults
	}
	if creds.APIID == 0 || creds.APIHash == "" {
		return nil, fmt.Errorf("%w: missing api credentials", common.ErrConnect)
	}

	client := telegram.NewClient(creds.APIID, creds.APIHash, telegram.Options{
		SessionStorage: &materialStorage{store: c.store, key: materialKey},
		NoUpdates:      true,
	})

	conn := &conn{
		client: client,
		ready:  make(chan struct{}),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	// Run owns the network connection for as long as its callback blocks.
	runCtx, cancel := context.WithCancel(context.Background())
	conn.cancel = cancel
	go func() {
		defer close(conn.done)
		conn.runErr = client.Run(runCtx, func(ctx context.Context) error {
			close(conn.ready)
			select {
			case <-conn.stop:
			case <-ctx.Done():
			}
			return nil
		})
	}()

	select {
	case <-conn.ready:
		c.logger.Debug(ctx, "connected", "key", materialKey)
		return conn, nil
	case <-conn.done:
		cancel()
		return nil, fmt.Errorf("%w: %w", common.ErrConnect, conn.runErr)
	case <-ctx.Done():
		cancel()
		<-conn.done
		return nil, ctxErr(ctx.Err())
	}
}

type conn struct {
	client *telegram.Client
	cancel context.CancelFunc
	ready  chan struct{}
	stop   chan struct{}
	done   chan struct{}
	runErr error
	once   sync.Once
}

func (c *conn) RequestCode(ctx context.Context, phone string) (string, error) {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", mapErr(ctx, fmt.Errorf("%w: %w", common.ErrChallengeRequestFailed, err))
	}

	switch s := sent.(type) {
	case *tg.AuthSentCode:
		return s.PhoneCodeHash, nil
	default:
		return "", fmt.Errorf("%w: unexpected response %T", common.ErrChallengeRequestFailed, sent)
	}
}

func (c *conn) SignIn(ctx context.Context, phone, code, codeHash string) error {
	_, err := c.client.Auth().SignIn(ctx, phone, code, codeHash)
	return signInErr(ctx, err)
}

// signInErr maps sign-in failures onto the common sentinels.
func signInErr(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrPasswordAuthNeeded):
		return common.ErrTwoFactorRequired
	case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EXPIRED", "PHONE_CODE_EMPTY"):
		return fmt.Errorf("%w: %w", common.ErrInvalidCode, err)
	default:
		return mapErr(ctx, err)
	}
}

func (c *conn) CurrentIdentity(ctx context.Context) (*messaging.Identity, error) {
	self, err := c.client.Self(ctx)
	if err != nil {
		return nil, mapErr(ctx, err)
	}
	return &messaging.Identity{
		ExternalID: self.ID,
		UserName:   self.Username,
		FirstName:  self.FirstName,
		LastName:   self.LastName,
	}, nil
}

func (c *conn) IsAuthorized(ctx context.Context) (bool, error) {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, mapErr(ctx, err)
	}
	return status.Authorized, nil
}

// Disconnect stops the run loop and waits for it to exit. Safe to call twice.
func (c *conn) Disconnect() error {
	c.once.Do(func() {
		close(c.stop)
		<-c.done
		c.cancel()
	})
	if c.runErr != nil && !errors.Is(c.runErr, context.Canceled) {
		return c.runErr
	}
	return nil
}

func mapErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctxErr(ctx.Err())
	}
	return err
}

func ctxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", common.ErrTimeout, err)
	}
	return err
}

// materialStorage implements session.Storage over a materials.Store key.
type materialStorage struct {
	store materials.Store
	key   string
}

var _ session.Storage = (*materialStorage)(nil)

func (s *materialStorage) LoadSession(ctx context.Context) ([]byte, error) {
	data, err := s.store.Load(ctx, s.key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, session.ErrNotFound
	}
	return data, nil
}

func (s *materialStorage) StoreSession(ctx context.Context, data []byte) error {
	return s.store.Save(ctx, s.key, data)
}
