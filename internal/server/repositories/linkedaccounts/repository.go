package linkedaccounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
)

// Repository stores linked accounts. Every lookup and mutation by id is
// scoped to the owning user; a row owned by someone else is reported as
// common.ErrNotFound.
type Repository interface {
	Upsert(ctx context.Context, account *models.LinkedAccount) (*models.LinkedAccount, error)
	GetByID(ctx context.Context, id, userID int64) (*models.LinkedAccount, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.LinkedAccount, error)
	UpdateStatus(ctx context.Context, id, userID int64, status models.AccountStatus, lastActive *time.Time) error
	Delete(ctx context.Context, id, userID int64) error
	CountBySessionKey(ctx context.Context, sessionKey string) (int, error)
}
