package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/deldesir/gateway/internal/domain"
	"github.com/rs/zerolog/log"
)

// SuccessResponse is the envelope of every 2xx body.
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the envelope of every error body. Code is the DomainError
// code when there is one.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes data with status. A nil data writes no body.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := sonic.ConfigStd.NewEncoder(w).Encode(data); err != nil {
			log.Warn().Err(err).Msg("failed to encode response")
		}
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

func invalidBody(err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid request body", err)
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	if err := sonic.ConfigStd.NewDecoder(r.Body).Decode(v); err != nil {
		return invalidBody(err)
	}
	return nil
}

// DecodeOptional is Decode for endpoints whose body may be empty.
func DecodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return invalidBody(err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := sonic.ConfigStd.Unmarshal(raw, v); err != nil {
		return invalidBody(err)
	}
	return nil
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:        http.StatusBadRequest,
	domain.ErrCodeNotFound:          http.StatusNotFound,
	domain.ErrCodeAlreadyExists:     http.StatusConflict,
	domain.ErrCodeUnauthorized:      http.StatusUnauthorized,
	domain.ErrCodeInvalidOperation:  http.StatusForbidden,
	domain.ErrCodeConfiguration:     http.StatusServiceUnavailable,
	domain.ErrCodeContractViolation: http.StatusBadGateway,
}

// DomainErrorToHTTP returns the status for err. Errors without a known code are 500.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if status, ok := statusByCode[domain.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes err as an ErrorResponse. 500s are logged and their
// message replaced by the status text.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("internal error")
		message = http.StatusText(status)
	}
	JSON(w, status, ErrorResponse{Error: message, Code: domain.CodeOf(err)})
}
