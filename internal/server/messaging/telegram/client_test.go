package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
)

func TestSignInErr(t *testing.T) {
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	other := errors.New("rpc: flood wait")

	tests := []struct {
		name    string
		ctx     context.Context
		err     error
		want    error
		wantErr bool
	}{
		{name: "ok", ctx: context.Background()},
		{name: "password needed", ctx: context.Background(), err: fmt.Errorf("sign in: %w", auth.ErrPasswordAuthNeeded), want: common.ErrTwoFactorRequired, wantErr: true},
		{name: "code invalid", ctx: context.Background(), err: tgerr.New(400, "PHONE_CODE_INVALID"), want: common.ErrInvalidCode, wantErr: true},
		{name: "code expired", ctx: context.Background(), err: fmt.Errorf("sign in: %w", tgerr.New(400, "PHONE_CODE_EXPIRED")), want: common.ErrInvalidCode, wantErr: true},
		{name: "code empty", ctx: context.Background(), err: tgerr.New(400, "PHONE_CODE_EMPTY"), want: common.ErrInvalidCode, wantErr: true},
		{name: "deadline", ctx: expired, err: other, want: common.ErrTimeout, wantErr: true},
		{name: "other", ctx: context.Background(), err: other, want: other, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := signInErr(tt.ctx, tt.err)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignInErr_Kinds(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, common.KindInvalidCode, common.KindOf(signInErr(ctx, tgerr.New(400, "PHONE_CODE_INVALID"))))
	assert.Equal(t, common.KindTwoFactorRequired, common.KindOf(signInErr(ctx, auth.ErrPasswordAuthNeeded)))
	assert.False(t, common.Retryable(signInErr(ctx, tgerr.New(400, "PHONE_CODE_INVALID"))))
}
