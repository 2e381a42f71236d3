package models

import "time"

// AccountStatus is the last known state of a linked account's session.
type AccountStatus string

const (
	StatusOnline     AccountStatus = "online"
	StatusOffline    AccountStatus = "offline"
	StatusConnecting AccountStatus = "connecting"
)

// Valid reports whether s is one of the known statuses.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusConnecting:
		return true
	}
	return false
}

// LinkedAccount is a user's link to one external messaging identity.
// Profile fields stay nil until the first successful sign-in.
type LinkedAccount struct {
	ID         int64         `json:"id"`
	UserID     int64         `json:"-"`
	Phone      string        `json:"phone"`
	UserName   *string       `json:"username"`
	FirstName  *string       `json:"first_name"`
	LastName   *string       `json:"last_name"`
	ExternalID *int64        `json:"telegram_user_id"`
	SessionKey *string       `json:"-"`
	Status     AccountStatus `json:"status"`
	LastActive *time.Time    `json:"last_active"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
