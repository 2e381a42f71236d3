// Package httpapi is the JSON-over-HTTP surface of the server. Handlers only
// decode input, resolve the caller from the bearer token and map service
// errors to status codes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/logging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/messaging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
)

// UserService is the account surface the API calls into.
type UserService interface {
	Register(ctx context.Context, username, password, confirm, secretPhrase string) (*models.Identity, error)
	Login(ctx context.Context, username, password string) (*models.Identity, error)
	ResetPassword(ctx context.Context, username, secretPhrase, newPassword, confirm string) error
}

// SessionService is the linked account surface the API calls into.
type SessionService interface {
	RequestCode(ctx context.Context, phone string, creds messaging.Credentials) (string, error)
	VerifyAndLink(ctx context.Context, userID int64, phone, code, challengeHash string, creds messaging.Credentials) (*models.LinkedAccount, error)
	CheckStatus(ctx context.Context, accountID, userID int64) (models.AccountStatus, error)
	RefreshAll(ctx context.Context, userID int64) ([]*models.LinkedAccount, error)
	Delete(ctx context.Context, accountID, userID int64) error
	List(ctx context.Context, userID int64) ([]*models.LinkedAccount, error)
}

type Server struct {
	address       string
	users         UserService
	sessions      SessionService
	logger        logging.Logger
	jwtSecret     []byte
	tokenValidity time.Duration
}

func NewServer(address string, l logging.Logger, us UserService, ss SessionService, secretKey string, tokenValidity time.Duration) *Server {
	return &Server{
		address:       address,
		users:         us,
		sessions:      ss,
		logger:        l.With("module", "http_server"),
		jwtSecret:     []byte(secretKey),
		tokenValidity: tokenValidity,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
