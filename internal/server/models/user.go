// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. The hashes never leave the service layer.
type User struct {
	ID               int64
	UserName         string
	PasswordHash     string
	SecretPhraseHash string
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Identity is the authenticated view of a user handed to callers.
type Identity struct {
	ID       int64  `json:"id"`
	UserName string `json:"username"`
}
