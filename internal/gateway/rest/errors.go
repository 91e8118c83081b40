package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dom/pulse/internal/domain"
)

// apiError is the union of the error bodies returned by the table API,
// the auth server and the storage API.
type apiError struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Details          string          `json:"details"`
	Hint             string          `json:"hint"`
}

func (e apiError) code() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}
	if len(e.Code) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Code, &s); err == nil {
		return s
	}
	var n int
	if err := json.Unmarshal(e.Code, &n); err == nil {
		return strconv.Itoa(n)
	}
	return ""
}

func (e apiError) message() string {
	for _, m := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

func decodeError(status int, body []byte, authEndpoint bool) *domain.RemoteError {
	var payload apiError
	if err := json.Unmarshal(body, &payload); err != nil {
		payload.Message = strings.TrimSpace(string(body))
	}

	code := payload.code()
	message := payload.message()
	if message == "" {
		message = http.StatusText(status)
	}

	return &domain.RemoteError{
		Kind:    classify(status, code, authEndpoint),
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// classify maps an HTTP status and backend error code onto the taxonomy.
// Codes are checked first: a raised exception inside the checkout procedure
// arrives as 400 with SQLSTATE P0001.
func classify(status int, code string, authEndpoint bool) error {
	switch {
	case code == "PGRST116":
		return domain.ErrNotFound
	case code == "P0001", strings.HasPrefix(code, "23"):
		return domain.ErrConflict
	case code == "PGRST301", code == "PGRST302", code == "42501":
		return domain.ErrAuth
	case code == "invalid_credentials", code == "invalid_grant",
		code == "session_not_found", code == "refresh_token_not_found":
		return domain.ErrAuth
	case code == "user_already_exists", code == "email_exists":
		return domain.ErrConflict
	}

	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrAuth
	case authEndpoint && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity):
		return domain.ErrAuth
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusConflict:
		return domain.ErrConflict
	case status >= http.StatusInternalServerError:
		return domain.ErrTransport
	default:
		return domain.ErrValidation
	}
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(path, authPrefix)
}
