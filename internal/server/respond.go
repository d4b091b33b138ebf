package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

// envelope is the uniform response shape.
type envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a success envelope.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
	}
}

// writeError maps an error onto the taxonomy and writes the error
// envelope. Errors outside the taxonomy become internal_unexpected.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := types.ErrCodeInternalUnexpected
	message := "internal server error"

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
	}

	status := code.HTTPStatus()
	requestID := requestIDFrom(r.Context())

	logFn := s.logger.Warn
	if status >= 500 {
		logFn = s.logger.Error
	}
	logFn("request failed",
		zap.String("code", string(code)),
		zap.Int("status", status),
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestID),
		zap.Error(err))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(envelope{Error: &errorBody{
		Code:      string(code),
		Message:   message,
		RequestID: requestID,
	}}); encErr != nil {
		s.logger.Error("encode error response failed", zap.Error(encErr))
	}
}
