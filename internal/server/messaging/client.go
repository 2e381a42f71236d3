// Package messaging defines the capability the session manager needs from a
// messaging network client. Implementations live in subpackages.
package messaging

import "context"

// Credentials identify the calling application to the messaging network.
// The zero value asks the client to use its configured defaults.
type Credentials struct {
	APIID   int
	APIHash string
}

func (c Credentials) IsZero() bool {
	return c.APIID == 0 && c.APIHash == ""
}

// Identity is the external account a session is signed in as.
type Identity struct {
	ExternalID int64
	UserName   string
	FirstName  string
	LastName   string
}

// Client opens connections backed by the session material stored under
// materialKey. Connection failures are reported as common.ErrConnect.
type Client interface {
	Connect(ctx context.Context, materialKey string, creds Credentials) (Conn, error)
}

// Conn is one live connection. Callers must always call Disconnect.
type Conn interface {
	// RequestCode asks the network to send a login code to phone and returns
	// the challenge hash that must accompany SignIn.
	RequestCode(ctx context.Context, phone string) (string, error)
	// SignIn returns common.ErrInvalidCode or common.ErrTwoFactorRequired for
	// the recoverable failures.
	SignIn(ctx context.Context, phone, code, codeHash string) error
	CurrentIdentity(ctx context.Context) (*Identity, error)
	IsAuthorized(ctx context.Context) (bool, error)
	Disconnect() error
}
