package client

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// APIError is a non-2xx answer of the API.
type APIError struct {
	StatusCode int
	Message    string
	// Fields holds the per-field messages of a validation failure.
	Fields map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// newAPIError reads either {"error": "..."} or a {field: message} object.
func newAPIError(code int, body string) *APIError {
	apiErr := &APIError{StatusCode: code}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		apiErr.Message = strings.TrimSpace(body)
		return apiErr
	}
	if msg, ok := raw["error"].(string); ok {
		apiErr.Message = msg
		return apiErr
	}
	if msg, ok := raw["message"].(string); ok {
		apiErr.Message = msg
		return apiErr
	}

	apiErr.Fields = make(map[string]string, len(raw))
	for field, val := range raw {
		if msg, ok := val.(string); ok {
			apiErr.Fields[field] = msg
		}
	}
	fields := make([]string, 0, len(apiErr.Fields))
	for field := range apiErr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, field+": "+apiErr.Fields[field])
	}
	apiErr.Message = strings.Join(msgs, "; ")
	return apiErr
}

// StatusCode returns the HTTP status of an *APIError, 0 for anything else (transport failures).
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }
func IsForbidden(err error) bool    { return StatusCode(err) == http.StatusForbidden }
func IsNotFound(err error) bool     { return StatusCode(err) == http.StatusNotFound }

func itoa(i int) string {
	return strconv.Itoa(i)
}
