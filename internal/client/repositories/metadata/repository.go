// Package metadata stores small named values of the CLI's local state, such
// as the cached access token.
package metadata

import (
	"context"
)

// Keys of the cached login. Login writes all three in one transaction;
// KeyUserID holds the decimal user id. Logout clears the table.
const (
	KeyAccessToken = "access_token"
	KeyUserName    = "username"
	KeyUserID      = "user_id"
)

// Repository is a key/value view over the metadata table. Get returns
// (nil, nil) for an absent key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
