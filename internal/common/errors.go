// Package common defines shared constants and sentinel errors used across
// linkkeeper layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
)

var (
	// Input shape errors (user-correctable, never retried).
	ErrValidation = errors.New("validation error")

	// Business-rule rejections.
	ErrDuplicateUser   = errors.New("user already exists")
	ErrNotFound        = errors.New("not found")
	ErrAccountDisabled = errors.New("account disabled")
	ErrBadCredentials  = errors.New("invalid username or password")
	ErrBadSecretPhrase = errors.New("invalid secret phrase")

	// Messaging-protocol errors; the verification flow may be retried.
	ErrChallengeRequestFailed = errors.New("challenge request failed")
	ErrInvalidCode            = errors.New("invalid verification code")
	ErrTwoFactorRequired      = errors.New("two-factor password required")

	// Transient infrastructure errors.
	ErrConnect = errors.New("connect error")
	ErrTimeout = errors.New("operation timed out")

	// Anything the storage layer failed at.
	ErrOperationFailed = errors.New("operation failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)

// Kind classifies an operation outcome so that boundary layers can switch on
// it exhaustively instead of matching error strings.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindDuplicateUser
	KindNotFound
	KindAccountDisabled
	KindBadCredentials
	KindBadSecretPhrase
	KindChallengeRequestFailed
	KindInvalidCode
	KindTwoFactorRequired
	KindConnect
	KindTimeout
	KindOperationFailed
	KindUnauthorized
)

var kindNames = map[Kind]string{
	KindNone:                   "none",
	KindValidation:             "validation_error",
	KindDuplicateUser:          "duplicate_user",
	KindNotFound:               "not_found",
	KindAccountDisabled:        "account_disabled",
	KindBadCredentials:         "bad_credentials",
	KindBadSecretPhrase:        "bad_secret_phrase",
	KindChallengeRequestFailed: "challenge_request_failed",
	KindInvalidCode:            "invalid_code",
	KindTwoFactorRequired:      "two_factor_required",
	KindConnect:                "connect_error",
	KindTimeout:                "timeout",
	KindOperationFailed:        "operation_failed",
	KindUnauthorized:           "unauthorized",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ordered by precedence: a timeout during a challenge request is reported as
// a timeout, not as a generic challenge failure.
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrValidation, KindValidation},
	{ErrDuplicateUser, KindDuplicateUser},
	{ErrNotFound, KindNotFound},
	{ErrAccountDisabled, KindAccountDisabled},
	{ErrBadCredentials, KindBadCredentials},
	{ErrBadSecretPhrase, KindBadSecretPhrase},
	{ErrInvalidCode, KindInvalidCode},
	{ErrTwoFactorRequired, KindTwoFactorRequired},
	{ErrTimeout, KindTimeout},
	{ErrConnect, KindConnect},
	{ErrChallengeRequestFailed, KindChallengeRequestFailed},
	{ErrInvalidToken, KindUnauthorized},
	{ErrOperationFailed, KindOperationFailed},
}

// KindOf returns the Kind of err. Errors that match no sentinel are reported
// as KindOperationFailed.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindOperationFailed
}

// ParseKind is the inverse of Kind.String. Unrecognised names map to
// KindOperationFailed.
func ParseKind(name string) Kind {
	for k, s := range kindNames {
		if s == name {
			return k
		}
	}
	return KindOperationFailed
}

// Err returns the sentinel error for k, or nil for KindNone.
func (k Kind) Err() error {
	if k == KindNone {
		return nil
	}
	for _, e := range kinds {
		if e.kind == k {
			return e.err
		}
	}
	return ErrOperationFailed
}

// Retryable reports whether the caller may retry the operation as is.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConnect, KindTimeout:
		return true
	}
	return false
}
