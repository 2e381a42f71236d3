package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/dbx"
	"github.com/dmitrijs2005/linkkeeper/internal/logging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/challenges"
	"github.com/dmitrijs2005/linkkeeper/internal/server/keylock"
	"github.com/dmitrijs2005/linkkeeper/internal/server/materials"
	"github.com/dmitrijs2005/linkkeeper/internal/server/messaging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
	"github.com/dmitrijs2005/linkkeeper/internal/server/repositories/repomanager"
	"golang.org/x/sync/errgroup"
)

// SessionConfig bounds the external work done by SessionService.
type SessionConfig struct {
	// ExternalTimeout bounds every connect and protocol call, and the wait
	// for a busy phone.
	ExternalTimeout time.Duration
	// RefreshConcurrency caps parallel probes in RefreshAll.
	RefreshConcurrency int
	// UnverifiedTTL is how long material created by RequestCode may sit
	// without a linked account before ReapUnverified removes it.
	UnverifiedTTL time.Duration
}

// SessionService manages the lifecycle of linked accounts and the session
// material behind them. At most one external operation runs per phone at a
// time; different phones proceed in parallel.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       materials.Store
	client      messaging.Client
	locks       *keylock.Registry
	pending     *challenges.Registry
	logger      logging.Logger
	cfg         SessionConfig
	now         func() time.Time
	cleanups    sync.WaitGroup
}

func NewSessionService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	store materials.Store,
	client messaging.Client,
	locks *keylock.Registry,
	pending *challenges.Registry,
	logger logging.Logger,
	cfg SessionConfig,
) *SessionService {
	if cfg.RefreshConcurrency <= 0 {
		cfg.RefreshConcurrency = 1
	}
	return &SessionService{
		db:          db,
		repomanager: m,
		store:       store,
		client:      client,
		locks:       locks,
		pending:     pending,
		logger:      logger.With("module", "sessions"),
		cfg:         cfg,
		now:         time.Now,
	}
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{5,15}$`)

// normalizePhone drops spaces, dashes and parentheses and returns the phone
// as "+" followed by digits, the form stored in the Phone column. The
// material key is derived from the same digits.
func normalizePhone(phone string) (string, error) {
	p := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))

	if !phonePattern.MatchString(p) {
		return "", fmt.Errorf("%w: invalid phone number", common.ErrValidation)
	}
	return "+" + strings.TrimPrefix(p, "+"), nil
}

// RequestCode asks the network to send a login code to phone and returns the
// challenge hash. Session material for the phone is created if missing. The
// relational store is not touched.
func (s *SessionService) RequestCode(ctx context.Context, phone string, creds messaging.Credentials) (string, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return "", err
	}
	key := s.store.Key(phone)

	unlock, err := s.lock(ctx, key)
	if err != nil {
		return "", err
	}
	defer unlock()

	if err := s.store.Create(ctx, key); err != nil {
		return "", fmt.Errorf("%w: create session material: %w", common.ErrOperationFailed, err)
	}

	var hash string
	err = s.withConn(ctx, key, creds, func(ctx context.Context, conn messaging.Conn) error {
		var err error
		hash, err = conn.RequestCode(ctx, phone)
		return err
	})
	if err != nil {
		s.logger.Warn(ctx, "code request failed", "key", key, "error", err)
		if errors.Is(err, common.ErrTimeout) || errors.Is(err, common.ErrChallengeRequestFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", common.ErrChallengeRequestFailed, err)
	}

	s.pending.Put(key, hash)
	s.logger.Info(ctx, "code requested", "key", key)
	return hash, nil
}

// VerifyAndLink signs in with code and links the resulting identity to
// userID, updating the existing (userID, phone) row if there is one. An empty
// challengeHash uses the one recorded by the last RequestCode for the phone.
//
// common.ErrInvalidCode and common.ErrTwoFactorRequired leave the relational
// store untouched and keep the pending challenge, so the caller can retry.
func (s *SessionService) VerifyAndLink(ctx context.Context, userID int64, phone, code, challengeHash string, creds messaging.Credentials) (*models.LinkedAccount, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", common.ErrValidation)
	}
	key := s.store.Key(phone)

	unlock, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if challengeHash == "" {
		p, ok := s.pending.Get(key)
		if !ok {
			return nil, fmt.Errorf("%w: no pending code request for this phone", common.ErrValidation)
		}
		challengeHash = p.Hash
	}

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrOperationFailed, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: request a code first", common.ErrValidation)
	}

	var ident *messaging.Identity
	err = s.withConn(ctx, key, creds, func(ctx context.Context, conn messaging.Conn) error {
		if err := conn.SignIn(ctx, phone, code, challengeHash); err != nil {
			return err
		}
		var err error
		ident, err = conn.CurrentIdentity(ctx)
		return connErr(ctx, err)
	})
	if err != nil {
		s.logger.Warn(ctx, "sign in failed", "key", key, "user_id", userID, "error", err)
		return nil, err
	}

	now := s.now()
	account, err := s.repomanager.LinkedAccounts(s.db).Upsert(ctx, &models.LinkedAccount{
		UserID:     userID,
		Phone:      phone,
		UserName:   optional(ident.UserName),
		FirstName:  optional(ident.FirstName),
		LastName:   optional(ident.LastName),
		ExternalID: &ident.ExternalID,
		SessionKey: &key,
		Status:     models.StatusOnline,
		LastActive: &now,
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.pending.Clear(key)
	s.logger.Info(ctx, "account linked", "account_id", account.ID, "user_id", userID)
	return account, nil
}

// CheckStatus probes the account's session and records the result. Missing
// material yields offline without a connection attempt. When the probe itself
// fails the previous status is restored and the error returned.
func (s *SessionService) CheckStatus(ctx context.Context, accountID, userID int64) (models.AccountStatus, error) {
	repo := s.repomanager.LinkedAccounts(s.db)

	account, err := repo.GetByID(ctx, accountID, userID)
	if err != nil {
		return "", storeErr(err)
	}

	if account.SessionKey == nil || *account.SessionKey == "" {
		return s.markOffline(ctx, accountID, userID)
	}
	key := *account.SessionKey

	unlock, err := s.lock(ctx, key)
	if err != nil {
		return "", err
	}
	defer unlock()

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrOperationFailed, err)
	}
	if !exists {
		return s.markOffline(ctx, accountID, userID)
	}

	prev := account.Status
	if prev == models.StatusConnecting || !prev.Valid() {
		prev = models.StatusOffline
	}

	if err := repo.UpdateStatus(ctx, accountID, userID, models.StatusConnecting, nil); err != nil {
		return "", storeErr(err)
	}

	var authorized bool
	err = s.withConn(ctx, key, messaging.Credentials{}, func(ctx context.Context, conn messaging.Conn) error {
		var err error
		authorized, err = conn.IsAuthorized(ctx)
		return connErr(ctx, err)
	})
	if err != nil {
		s.logger.Warn(ctx, "status probe failed", "account_id", accountID, "error", err)
		// ctx may already be past its deadline; the restore must still land.
		restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ExternalTimeout)
		defer cancel()
		if rerr := repo.UpdateStatus(restoreCtx, accountID, userID, prev, nil); rerr != nil && !errors.Is(rerr, common.ErrNotFound) {
			s.logger.Error(ctx, "restore status failed", "account_id", accountID, "error", rerr)
		}
		return "", err
	}

	status := models.StatusOffline
	var lastActive *time.Time
	if authorized {
		now := s.now()
		status, lastActive = models.StatusOnline, &now
	}

	// The probe has run; its result is recorded even if the caller went away.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ExternalTimeout)
	defer cancel()
	if err := repo.UpdateStatus(writeCtx, accountID, userID, status, lastActive); err != nil {
		return "", storeErr(err)
	}
	return status, nil
}

func (s *SessionService) markOffline(ctx context.Context, accountID, userID int64) (models.AccountStatus, error) {
	err := s.repomanager.LinkedAccounts(s.db).UpdateStatus(ctx, accountID, userID, models.StatusOffline, nil)
	if err != nil {
		return "", storeErr(err)
	}
	return models.StatusOffline, nil
}

// RefreshAll probes every account of userID concurrently and returns the
// list as stored afterwards. A failed probe leaves that account's previous
// status in place and does not affect the others.
func (s *SessionService) RefreshAll(ctx context.Context, userID int64) ([]*models.LinkedAccount, error) {
	accounts, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.RefreshConcurrency)
	for _, a := range accounts {
		g.Go(func() error {
			if _, err := s.CheckStatus(ctx, a.ID, userID); err != nil {
				s.logger.Warn(ctx, "refresh failed", "account_id", a.ID, "kind", common.KindOf(err).String(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return s.List(ctx, userID)
}

// Delete removes the account row and then, best effort, its session material
// if no other row still references it. It never waits for a running probe;
// such a probe fails with common.ErrNotFound when it tries to write, and the
// material is released in the background once the phone is free.
func (s *SessionService) Delete(ctx context.Context, accountID, userID int64) error {
	var (
		key       string
		remaining int
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.LinkedAccounts(tx)

		account, err := repo.GetByID(ctx, accountID, userID)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, accountID, userID); err != nil {
			return err
		}
		if account.SessionKey != nil && *account.SessionKey != "" {
			key = *account.SessionKey
			remaining, err = repo.CountBySessionKey(ctx, key)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr(err)
	}

	s.logger.Info(ctx, "account deleted", "account_id", accountID, "user_id", userID)

	if key == "" || remaining > 0 {
		return nil
	}

	unlock, ok := s.locks.TryLock(key)
	if !ok {
		// A request or probe holds the phone; release once it is done.
		s.cleanups.Add(1)
		go func() {
			defer s.cleanups.Done()
			s.releaseWhenIdle(context.WithoutCancel(ctx), key)
		}()
		return nil
	}
	defer unlock()
	s.releaseMaterial(ctx, key)
	return nil
}

// Wait blocks until material cleanups deferred by Delete have finished.
func (s *SessionService) Wait() {
	s.cleanups.Wait()
}

func (s *SessionService) releaseWhenIdle(ctx context.Context, key string) {
	// A holder runs one bounded exchange and at most two bounded store writes.
	ctx, cancel := context.WithTimeout(ctx, 3*s.cfg.ExternalTimeout)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "session material not released", "key", key, "error", err)
		return
	}
	defer unlock()
	s.releaseMaterial(ctx, key)
}

// releaseMaterial removes the material under key unless a pending challenge
// or a linked account still uses it. The caller holds the gate for key.
func (s *SessionService) releaseMaterial(ctx context.Context, key string) {
	if _, ok := s.pending.Get(key); ok {
		// A new link for the same phone is in progress and owns the material now.
		return
	}
	n, err := s.repomanager.LinkedAccounts(s.db).CountBySessionKey(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "count session references failed", "key", key, "error", err)
		return
	}
	if n > 0 {
		return
	}
	s.removeMaterial(ctx, key)
}

func (s *SessionService) removeMaterial(ctx context.Context, key string) {
	err := s.store.Delete(ctx, key)
	switch {
	case err == nil:
		s.logger.Debug(ctx, "session material removed", "key", key)
	case errors.Is(err, common.ErrNotFound):
		s.logger.Debug(ctx, "session material already gone", "key", key)
	default:
		s.logger.Warn(ctx, "remove session material failed", "key", key, "error", err)
	}
}

// List returns userID's accounts, newest first.
func (s *SessionService) List(ctx context.Context, userID int64) ([]*models.LinkedAccount, error) {
	accounts, err := s.repomanager.LinkedAccounts(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return accounts, nil
}

// ReapUnverified drops challenges older than the configured TTL and removes
// their material when no linked account references it. Challenges whose key
// is busy are put back for the next pass. It returns the number of materials
// removed.
func (s *SessionService) ReapUnverified(ctx context.Context, now time.Time) (int, error) {
	repo := s.repomanager.LinkedAccounts(s.db)
	removed := 0

	expired := s.pending.Expired(now, s.cfg.UnverifiedTTL)
	for i, p := range expired {
		unlock, ok := s.locks.TryLock(p.Key)
		if !ok {
			// Retried on the next pass.
			s.pending.Requeue(p)
			continue
		}

		n, err := repo.CountBySessionKey(ctx, p.Key)
		if err != nil {
			unlock()
			for _, rest := range expired[i:] {
				s.pending.Requeue(rest)
			}
			return removed, storeErr(err)
		}
		if n == 0 {
			if err := s.store.Delete(ctx, p.Key); err == nil {
				removed++
			} else if !errors.Is(err, common.ErrNotFound) {
				s.logger.Warn(ctx, "reap session material failed", "key", p.Key, "error", err)
			}
		}
		unlock()
	}

	if removed > 0 {
		s.logger.Info(ctx, "unverified sessions reaped", "count", removed)
	}
	return removed, nil
}

// RunReaper calls ReapUnverified every interval until ctx is done.
func (s *SessionService) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if _, err := s.ReapUnverified(ctx, t); err != nil {
				s.logger.Error(ctx, "reaper", "error", err)
			}
		}
	}
}

// lock waits for the per-phone gate, at most ExternalTimeout.
func (s *SessionService) lock(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExternalTimeout)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: session busy", common.ErrTimeout)
		}
		return nil, err
	}
	return unlock, nil
}

// withConn connects to the material under key, runs fn and always
// disconnects. The whole exchange is bounded by ExternalTimeout.
func (s *SessionService) withConn(ctx context.Context, key string, creds messaging.Credentials, fn func(context.Context, messaging.Conn) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExternalTimeout)
	defer cancel()

	conn, err := s.client.Connect(ctx, key, creds)
	if err != nil {
		if isTimeout(ctx, err) {
			return timeoutErr(err)
		}
		if errors.Is(err, common.ErrConnect) {
			return err
		}
		return fmt.Errorf("%w: %w", common.ErrConnect, err)
	}
	defer func() {
		if err := conn.Disconnect(); err != nil {
			s.logger.Warn(ctx, "disconnect failed", "key", key, "error", err)
		}
	}()

	if err := fn(ctx, conn); err != nil {
		if isTimeout(ctx, err) {
			return timeoutErr(err)
		}
		return err
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, common.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// connErr classifies a failure the transport left unclassified as a
// connection error. Context errors are left to withConn.
func connErr(ctx context.Context, err error) error {
	if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, common.ErrOperationFailed) || common.KindOf(err) != common.KindOperationFailed {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrConnect, err)
}

func timeoutErr(err error) error {
	if errors.Is(err, common.ErrTimeout) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrTimeout, err)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
