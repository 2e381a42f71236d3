package apiclient

import "time"

// Identity is the authenticated user as reported by the server.
type Identity struct {
	ID       int64  `json:"id"`
	UserName string `json:"username"`
}

// Credentials are optional per-request messaging app credentials. Zero values
// make the server fall back to its configured defaults.
type Credentials struct {
	APIID   int    `json:"api_id,omitempty"`
	APIHash string `json:"api_hash,omitempty"`
}

// LinkedAccount mirrors the server's account representation.
type LinkedAccount struct {
	ID             int64      `json:"id"`
	Phone          string     `json:"phone"`
	UserName       *string    `json:"username"`
	FirstName      *string    `json:"first_name"`
	LastName       *string    `json:"last_name"`
	TelegramUserID *int64     `json:"telegram_user_id"`
	Status         string     `json:"status"`
	LastActive     *time.Time `json:"last_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type RegisterRequest struct {
	UserName        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	SecretPhrase    string `json:"secret_phrase"`
}

type loginRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User        *Identity `json:"user"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
}

type ResetPasswordRequest struct {
	UserName           string `json:"username"`
	SecretPhrase       string `json:"secret_phrase"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

type sendCodeRequest struct {
	Phone string `json:"phone"`
	Credentials
}

type sendCodeResponse struct {
	PhoneCodeHash string `json:"phone_code_hash"`
}

type VerifyLoginRequest struct {
	Phone         string `json:"phone"`
	Code          string `json:"code"`
	PhoneCodeHash string `json:"phone_code_hash,omitempty"`
	Credentials
}

type accountsResponse struct {
	Accounts []*LinkedAccount `json:"accounts"`
}

type statusResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}
