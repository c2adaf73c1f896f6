package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Request validation failures; all map to 400
var (
	ErrMissingParams = errors.New("missing required parameters")
	ErrInvalidDate   = errors.New("invalid date format, expected YYYY-MM-DD")
	ErrInvalidParam  = errors.New("invalid parameter")
)

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// requestError is a validation failure with the details reported to the client
type requestError struct {
	err     error
	details map[string]interface{}
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error, details map[string]interface{}) error {
	return &requestError{err: err, details: details}
}

func invalidParam(name, value string) error {
	return badRequest(ErrInvalidParam, map[string]interface{}{
		"param": name,
		"value": value,
	})
}

// writeRequestError answers a validation failure with 400
func writeRequestError(w http.ResponseWriter, log *zap.Logger, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var re *requestError
	if errors.As(err, &re) {
		resp.Details = re.details
	}
	writeJSON(w, log, http.StatusBadRequest, resp)
}

// writeInternalError answers an unexpected failure with 500
func writeInternalError(w http.ResponseWriter, log *zap.Logger, message string, err error) {
	writeJSON(w, log, http.StatusInternalServerError, ErrorResponse{
		Error: message,
		Details: map[string]interface{}{
			"internal": err.Error(),
		},
	})
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to encode response", zap.Int("status", status), zap.Error(err))
	}
}
