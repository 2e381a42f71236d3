// Package apiclient is a typed client for the linkkeeper HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/sethvargo/go-retry"
)

const maxErrorBody = 1 << 16

// Client talks to one linkkeeper server. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
	backoff    time.Duration

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRetry sets how many times idempotent calls are retried after a
// connect or timeout failure, and the first backoff step.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		if maxRetries < 0 {
			maxRetries = 0
		}
		c.maxRetries = uint64(maxRetries)
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		maxRetries: 2,
		backoff:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Health pings the server's liveness route.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, true)
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Identity, error) {
	var id Identity
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &id, false); err != nil {
		return nil, err
	}
	return &id, nil
}

// Login authenticates and keeps the returned access token for later calls.
func (c *Client) Login(ctx context.Context, userName, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", loginRequest{UserName: userName, Password: password}, &resp, false); err != nil {
		return nil, err
	}
	c.SetToken(resp.AccessToken)
	return &resp, nil
}

func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/api/auth/reset-password", req, nil, false)
}

// SendCode asks the server to start a verification and returns the
// challenge handle.
func (c *Client) SendCode(ctx context.Context, phone string, creds Credentials) (string, error) {
	var resp sendCodeResponse
	if err := c.do(ctx, http.MethodPost, "/api/telegram/send_code", sendCodeRequest{Phone: phone, Credentials: creds}, &resp, false); err != nil {
		return "", err
	}
	return resp.PhoneCodeHash, nil
}

func (c *Client) VerifyLogin(ctx context.Context, req VerifyLoginRequest) (*LinkedAccount, error) {
	var acc LinkedAccount
	if err := c.do(ctx, http.MethodPost, "/api/telegram/verify_login", req, &acc, false); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *Client) Accounts(ctx context.Context) ([]*LinkedAccount, error) {
	var resp accountsResponse
	if err := c.do(ctx, http.MethodGet, "/api/telegram/accounts", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (c *Client) CheckStatus(ctx context.Context, id int64) (string, error) {
	var resp statusResponse
	path := "/api/telegram/accounts/" + strconv.FormatInt(id, 10) + "/check_status"
	if err := c.do(ctx, http.MethodPost, path, nil, &resp, true); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Client) DeleteAccount(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/telegram/accounts/"+strconv.FormatInt(id, 10), nil, nil, true)
}

func (c *Client) RefreshAccounts(ctx context.Context) ([]*LinkedAccount, error) {
	var resp accountsResponse
	if err := c.do(ctx, http.MethodPost, "/api/telegram/refresh_accounts", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// do sends one request. Idempotent calls are retried with exponential
// backoff while the failure is retryable.
func (c *Client) do(ctx context.Context, method, path string, in, out any, idempotent bool) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = b
	}

	if !idempotent || c.maxRetries == 0 {
		return c.roundTrip(ctx, method, path, body, out)
	}

	b := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.roundTrip(ctx, method, path, body, out)
		if err != nil && common.Retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	// retry.Do returns a bare ctx error when the deadline hits between attempts.
	if ctx.Err() != nil && err != nil && !errors.Is(err, common.ErrTimeout) {
		return fmt.Errorf("%w: %w", common.ErrTimeout, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", common.ErrTimeout, ctxErr)
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var er errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(data, &er); err != nil || er.Kind == "" {
		return &Error{
			Status:    resp.StatusCode,
			Kind:      kindForStatus(resp.StatusCode),
			Message:   http.StatusText(resp.StatusCode),
			Retryable: resp.StatusCode == http.StatusServiceUnavailable,
		}
	}
	return &Error{
		Status:    resp.StatusCode,
		Kind:      common.ParseKind(er.Kind),
		Message:   er.Error,
		Retryable: er.Retryable,
	}
}

// kindForStatus classifies responses that carry no error envelope, such as
// a proxy's 502 page.
func kindForStatus(status int) common.Kind {
	switch status {
	case http.StatusUnauthorized:
		return common.KindUnauthorized
	case http.StatusNotFound:
		return common.KindNotFound
	case http.StatusBadRequest:
		return common.KindValidation
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return common.KindConnect
	case http.StatusGatewayTimeout:
		return common.KindTimeout
	}
	return common.KindOperationFailed
}

// IsUnauthorized reports whether err means the cached token is no longer
// accepted.
func IsUnauthorized(err error) bool {
	return errors.Is(err, common.ErrInvalidToken) || errors.Is(err, ErrNotLoggedIn)
}
