package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/linkkeeper/internal/dbx"
	"github.com/dmitrijs2005/linkkeeper/internal/server/repositories/linkedaccounts"
	"github.com/dmitrijs2005/linkkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	LinkedAccounts(db dbx.DBTX) linkedaccounts.Repository
}
