package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
)

const maxBodyBytes = 1 << 16

type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind common.Kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind.String()})
}

var kindStatus = map[common.Kind]int{
	common.KindValidation:             http.StatusBadRequest,
	common.KindDuplicateUser:          http.StatusConflict,
	common.KindNotFound:               http.StatusNotFound,
	common.KindAccountDisabled:        http.StatusForbidden,
	common.KindBadCredentials:         http.StatusUnauthorized,
	common.KindBadSecretPhrase:        http.StatusUnauthorized,
	common.KindUnauthorized:           http.StatusUnauthorized,
	common.KindChallengeRequestFailed: http.StatusUnprocessableEntity,
	common.KindInvalidCode:            http.StatusUnprocessableEntity,
	common.KindTwoFactorRequired:      http.StatusUnprocessableEntity,
	common.KindConnect:                http.StatusServiceUnavailable,
	common.KindTimeout:                http.StatusServiceUnavailable,
	common.KindOperationFailed:        http.StatusInternalServerError,
}

// mapError writes the response for a failed service call. Internal causes
// are logged, not returned.
func (s *Server) mapError(w http.ResponseWriter, r *http.Request, err error) {
	kind := common.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "error", err, "request_id", requestIDFrom(r.Context()))
		msg = common.ErrOperationFailed.Error()
	}

	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind.String(), Retryable: common.Retryable(err)})
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			writeError(w, http.StatusRequestEntityTooLarge, common.KindValidation, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, common.KindValidation, "empty request body")
		default:
			writeError(w, http.StatusBadRequest, common.KindValidation, "invalid request body")
		}
		return false
	}
	return true
}
