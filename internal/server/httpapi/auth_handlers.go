package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/server/auth"
	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
)

type RegisterRequest struct {
	UserName        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	SecretPhrase    string `json:"secret_phrase"`
}

type LoginRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User        *models.Identity `json:"user"`
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
}

type ResetPasswordRequest struct {
	UserName           string `json:"username"`
	SecretPhrase       string `json:"secret_phrase"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := s.users.Register(r.Context(), req.UserName, req.Password, req.ConfirmPassword, req.SecretPhrase)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, id)
}

// Login verifies the credentials and issues an access token.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := s.users.Login(r.Context(), req.UserName, req.Password)
	if err != nil {
		s.mapError(w, r, err)
		return
	}

	token, err := auth.GenerateToken(id.ID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		s.mapError(w, r, common.ErrOperationFailed)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{User: id, AccessToken: token, TokenType: "bearer"})
}

func (s *Server) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := s.users.ResetPassword(r.Context(), req.UserName, req.SecretPhrase, req.NewPassword, req.ConfirmNewPassword)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}
