package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router returns the chi router with every route mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.Health)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.Register)
		r.Post("/login", s.Login)
		r.Post("/reset-password", s.ResetPassword)
	})

	r.Route("/api/telegram", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/send_code", s.SendCode)
		r.Post("/verify_login", s.VerifyLogin)
		r.Get("/accounts", s.ListAccounts)
		r.Delete("/accounts/{id}", s.DeleteAccount)
		r.Post("/accounts/{id}/check_status", s.CheckStatus)
		r.Post("/refresh_accounts", s.RefreshAccounts)
	})

	return r
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
