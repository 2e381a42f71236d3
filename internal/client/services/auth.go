// Package services contains application services for the linkkeeper CLI.
// This file defines the authentication service: register, login, logout,
// password reset and the locally cached access token.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/linkkeeper/internal/client/apiclient"
	"github.com/dmitrijs2005/linkkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/linkkeeper/internal/dbx"
)

// ErrNoSavedSession is returned by Restore when nothing is cached.
var ErrNoSavedSession = errors.New("no saved session")

// AuthAPI is the subset of the API client used for authentication.
type AuthAPI interface {
	Register(ctx context.Context, req apiclient.RegisterRequest) (*apiclient.Identity, error)
	Login(ctx context.Context, userName, password string) (*apiclient.LoginResponse, error)
	ResetPassword(ctx context.Context, req apiclient.ResetPasswordRequest) error
	SetToken(token string)
}

// AuthService keeps the login state of the CLI. The access token and the
// identity it belongs to are cached in the local metadata table so a restart
// does not force a new login while the token is valid.
type AuthService struct {
	api AuthAPI
	db  *sql.DB
}

func NewAuthService(api AuthAPI, db *sql.DB) *AuthService {
	return &AuthService{api: api, db: db}
}

func (s *AuthService) getMetadataRepo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (s *AuthService) Register(ctx context.Context, userName, password, confirm, secretPhrase string) (*apiclient.Identity, error) {
	return s.api.Register(ctx, apiclient.RegisterRequest{
		UserName:        userName,
		Password:        password,
		ConfirmPassword: confirm,
		SecretPhrase:    secretPhrase,
	})
}

// Login authenticates against the server and caches the issued token.
func (s *AuthService) Login(ctx context.Context, userName, password string) (*apiclient.Identity, error) {
	resp, err := s.api.Login(ctx, userName, password)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.getMetadataRepo(tx)
		if err := repo.Set(ctx, metadata.KeyAccessToken, []byte(resp.AccessToken)); err != nil {
			return err
		}
		if err := repo.Set(ctx, metadata.KeyUserName, []byte(resp.User.UserName)); err != nil {
			return err
		}
		return repo.Set(ctx, metadata.KeyUserID, []byte(strconv.FormatInt(resp.User.ID, 10)))
	})
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return resp.User, nil
}

// Restore loads a cached session and hands its token to the API client.
func (s *AuthService) Restore(ctx context.Context) (*apiclient.Identity, error) {
	values, err := s.getMetadataRepo(s.db).List(ctx)
	if err != nil {
		return nil, err
	}

	token, userName := values[metadata.KeyAccessToken], values[metadata.KeyUserName]
	if len(token) == 0 || len(userName) == 0 {
		return nil, ErrNoSavedSession
	}

	id, err := strconv.ParseInt(string(values[metadata.KeyUserID]), 10, 64)
	if err != nil {
		return nil, ErrNoSavedSession
	}

	s.api.SetToken(string(token))
	return &apiclient.Identity{ID: id, UserName: string(userName)}, nil
}

// Logout forgets the token locally. The server keeps no session state, so
// there is nothing to revoke remotely.
func (s *AuthService) Logout(ctx context.Context) error {
	s.api.SetToken("")
	return s.getMetadataRepo(s.db).Clear(ctx)
}

func (s *AuthService) ResetPassword(ctx context.Context, userName, secretPhrase, newPassword, confirm string) error {
	return s.api.ResetPassword(ctx, apiclient.ResetPasswordRequest{
		UserName:           userName,
		SecretPhrase:       secretPhrase,
		NewPassword:        newPassword,
		ConfirmNewPassword: confirm,
	})
}
