package linkedaccounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/dbx"
	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, user_id, phone, username, first_name, last_name, external_id,
		session_key, status, last_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.LinkedAccount, error) {
	var (
		a                                                 models.LinkedAccount
		userName, firstName, lastName, sessionKey, status sql.NullString
		externalID                                        sql.NullInt64
		lastActive                                        sql.NullTime
	)

	err := s.Scan(&a.ID, &a.UserID, &a.Phone, &userName, &firstName, &lastName, &externalID,
		&sessionKey, &status, &lastActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.UserName = nullString(userName)
	a.FirstName = nullString(firstName)
	a.LastName = nullString(lastName)
	a.SessionKey = nullString(sessionKey)
	a.Status = models.AccountStatus(status.String)
	if externalID.Valid {
		a.ExternalID = &externalID.Int64
	}
	if lastActive.Valid {
		a.LastActive = &lastActive.Time
	}
	return &a, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// Upsert inserts the account or, when (user_id, phone) already exists,
// overwrites its profile, session key, status and last_active. The stored
// row is returned.
func (r *PostgresRepository) Upsert(ctx context.Context, account *models.LinkedAccount) (*models.LinkedAccount, error) {
	query := `
		INSERT INTO linked_accounts (user_id, phone, username, first_name, last_name, external_id, session_key, status, last_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, phone)
		DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			external_id = EXCLUDED.external_id,
			session_key = EXCLUDED.session_key,
			status = EXCLUDED.status,
			last_active = EXCLUDED.last_active,
			updated_at = NOW()
		RETURNING ` + accountColumns

	row := r.db.QueryRowContext(ctx, query,
		account.UserID, account.Phone, account.UserName, account.FirstName, account.LastName,
		account.ExternalID, account.SessionKey, string(account.Status), account.LastActive)

	saved, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id, userID int64) (*models.LinkedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM linked_accounts
		WHERE id = $1 AND user_id = $2`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// ListByUser returns the user's accounts, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.LinkedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM linked_accounts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.LinkedAccount, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// UpdateStatus sets the status and, when lastActive is non-nil, last_active.
// Exactly one row must be affected; otherwise the account is gone.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, userID int64, status models.AccountStatus, lastActive *time.Time) error {
	query := `UPDATE linked_accounts
		SET status = $3, last_active = COALESCE($4, last_active), updated_at = NOW()
		WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID, string(status), lastActive)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID int64) error {
	query := `DELETE FROM linked_accounts WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

// CountBySessionKey returns how many rows reference the session material key.
func (r *PostgresRepository) CountBySessionKey(ctx context.Context, sessionKey string) (int, error) {
	query := `SELECT COUNT(*) FROM linked_accounts WHERE session_key = $1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, sessionKey).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
