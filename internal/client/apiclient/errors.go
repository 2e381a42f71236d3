package apiclient

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
)

var (
	// ErrUnavailable means the request never got an HTTP response.
	ErrUnavailable = fmt.Errorf("server unavailable: %w", common.ErrConnect)

	ErrNotLoggedIn = errors.New("not logged in")
)

// Error is a non-2xx response decoded from the server's error envelope. It
// unwraps to the common sentinel for its kind, so errors.Is and
// common.KindOf work across the wire.
type Error struct {
	Status    int
	Kind      common.Kind
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Kind.Err()
}
