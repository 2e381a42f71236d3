// Package materials persists the opaque session material a messaging client
// needs to resume an authorized connection. Material is keyed by a value
// derived from the phone number and must survive process restarts.
package materials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidKey is returned for keys that could escape the store's namespace.
var ErrInvalidKey = errors.New("invalid material key")

// Store is a durable blob store for session material.
//
// Create makes an empty record if none exists and leaves an existing one
// untouched. Delete reports common.ErrNotFound when the key is absent.
type Store interface {
	Key(phone string) string
	Create(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

const keySuffix = ".session"

// KeyForPhone keeps only the digits of phone, so "+1 (555) 0100" and
// "15550100" share material.
func KeyForPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String() + keySuffix
}

func checkKey(key string) error {
	name := strings.TrimSuffix(key, keySuffix)
	if name == "" || name == key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
