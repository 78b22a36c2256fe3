package api

import (
	"encoding/json"
	"net/http"

	"github.com/matzehuels/sqltree/pkg/errors"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type envelope struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data,omitempty"`
	Code    string   `json:"code,omitempty"`
	Error   string   `json:"error,omitempty"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func success(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Status: statusSuccess, Message: message, Data: data})
}

// fail writes err with the status its code maps to. data, when non-nil,
// travels with the error (a rejected conversion still returns its
// validation).
func fail(w http.ResponseWriter, err error, data any) {
	code := errors.GetCode(err)
	env := envelope{
		Status:  statusError,
		Message: errors.UserMessage(err),
		Data:    data,
		Code:    string(code),
		Error:   err.Error(),
	}
	if msgs := errors.Messages(err); len(msgs) > 1 {
		env.Details = msgs
	}
	writeJSON(w, httpStatus(code), env)
}

// httpStatus maps an error code to an HTTP status.
func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidJSON, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeInvalidName,
		errors.ErrCodeInvalidConnection,
		errors.ErrCodeLimitExceeded,
		errors.ErrCodeLastColumn,
		errors.ErrCodeFieldLocked,
		errors.ErrCodeFKTargetNotPrimaryKey,
		errors.ErrCodeSchemaRejected:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeNetwork:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v. Bodies over maxBodyBytes and malformed
// JSON are INVALID_JSON errors.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidJSON, err, "invalid request body")
	}
	return nil
}
