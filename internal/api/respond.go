package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/session"
)

type errorResponse struct {
	Code     errors.Code `json:"code"`
	Error    string      `json:"error"`
	Guidance string      `json:"guidance,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError renders err with the status its code maps to. Errors without
// a code are logged and reported as internal.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if stderrors.Is(err, session.ErrNotFound) {
		err = errors.Wrap(errors.ErrCodeSessionNotFound, err, "session not found or expired")
	}
	code := errors.GetCode(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	msg := errors.UserMessage(err)
	if code == "" {
		code = errors.ErrCodeInternal
		msg = "internal error"
	}
	s.writeJSON(w, status, errorResponse{Code: code, Error: msg, Guidance: errors.Guidance(err)})
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidIndex, errors.ErrCodeInvalidLayout, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case errors.ErrCodeExportInProgress:
		return http.StatusConflict
	case errors.ErrCodeDecodeFailure:
		return http.StatusUnsupportedMediaType
	case errors.ErrCodeNoContent, errors.ErrCodeCompositeFailure:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeDeliveryFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
