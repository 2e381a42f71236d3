package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"validation", fmt.Errorf("%w: password too short", ErrValidation), KindValidation},
		{"duplicate", ErrDuplicateUser, KindDuplicateUser},
		{"not found wrapped", fmt.Errorf("load account: %w", ErrNotFound), KindNotFound},
		{"timeout beats challenge", fmt.Errorf("%w: %w", ErrChallengeRequestFailed, ErrTimeout), KindTimeout},
		{"connect beats challenge", fmt.Errorf("%w: %w", ErrChallengeRequestFailed, ErrConnect), KindConnect},
		{"challenge", ErrChallengeRequestFailed, KindChallengeRequestFailed},
		{"two factor", ErrTwoFactorRequired, KindTwoFactorRequired},
		{"token", ErrInvalidToken, KindUnauthorized},
		{"unknown", errors.New("boom"), KindOperationFailed},
		{"db", fmt.Errorf("%w: %w", ErrOperationFailed, errors.New("db down")), KindOperationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrTimeout))
	assert.True(t, Retryable(fmt.Errorf("probe: %w", ErrConnect)))
	assert.False(t, Retryable(ErrInvalidCode))
	assert.False(t, Retryable(nil))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "duplicate_user", KindDuplicateUser.String())
	assert.Equal(t, "unknown", Kind(999).String())
}

func TestParseKindRoundTrip(t *testing.T) {
	for k := range kindNames {
		assert.Equal(t, k, ParseKind(k.String()))
	}
	assert.Equal(t, KindOperationFailed, ParseKind("no_such_kind"))
}

func TestKindErr(t *testing.T) {
	assert.NoError(t, KindNone.Err())
	assert.ErrorIs(t, KindInvalidCode.Err(), ErrInvalidCode)
	assert.ErrorIs(t, KindUnauthorized.Err(), ErrInvalidToken)
	assert.ErrorIs(t, Kind(99).Err(), ErrOperationFailed)

	for _, e := range kinds {
		assert.Equal(t, e.kind, KindOf(e.kind.Err()))
	}
}
