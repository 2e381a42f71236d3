package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/server/messaging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type SendCodeRequest struct {
	Phone   string `json:"phone"`
	APIID   int    `json:"api_id"`
	APIHash string `json:"api_hash"`
}

type SendCodeResponse struct {
	PhoneCodeHash string `json:"phone_code_hash"`
}

type VerifyLoginRequest struct {
	Phone         string `json:"phone"`
	Code          string `json:"code"`
	PhoneCodeHash string `json:"phone_code_hash"`
	APIID         int    `json:"api_id"`
	APIHash       string `json:"api_hash"`
}

type AccountsResponse struct {
	Accounts []*models.LinkedAccount `json:"accounts"`
}

type StatusResponse struct {
	ID     int64                `json:"id"`
	Status models.AccountStatus `json:"status"`
}

func (s *Server) SendCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hash, err := s.sessions.RequestCode(r.Context(), req.Phone, messaging.Credentials{APIID: req.APIID, APIHash: req.APIHash})
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SendCodeResponse{PhoneCodeHash: hash})
}

func (s *Server) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req VerifyLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := s.sessions.VerifyAndLink(r.Context(), userIDFrom(r.Context()), req.Phone, req.Code, req.PhoneCodeHash,
		messaging.Credentials{APIID: req.APIID, APIHash: req.APIHash})
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.sessions.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountsResponse{Accounts: accounts})
}

func (s *Server) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		s.mapError(w, r, err)
		return
	}

	if err := s.sessions.Delete(r.Context(), id, userIDFrom(r.Context())); err != nil {
		s.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) CheckStatus(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		s.mapError(w, r, err)
		return
	}

	status, err := s.sessions.CheckStatus(r.Context(), id, userIDFrom(r.Context()))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{ID: id, Status: status})
}

func (s *Server) RefreshAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.sessions.RefreshAll(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountsResponse{Accounts: accounts})
}

func accountID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid account id", common.ErrValidation)
	}
	return id, nil
}
