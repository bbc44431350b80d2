package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that branch on failure class
// rather than HTTP status.
type Kind string

const (
	// KindNetwork covers transport errors and non-2xx responses that
	// carry no more specific meaning.
	KindNetwork Kind = "NETWORK_FAILURE"

	// KindConflict means the auction was claimed by someone else first
	// (HTTP 409 on booking).
	KindConflict Kind = "CONFLICT"

	// KindValidation covers 4xx responses that carry a detail payload.
	KindValidation Kind = "VALIDATION_FAILURE"

	// KindUnauthenticated means a privileged action was attempted
	// without an active session.
	KindUnauthenticated Kind = "UNAUTHENTICATED"

	// KindNotFound means the requested entity does not exist upstream.
	KindNotFound Kind = "NOT_FOUND"

	// KindTransportDisconnected means the realtime channel exhausted
	// its retry budget. The channel exposes this as observable state;
	// the error form exists for operations attempted against a dead
	// channel.
	KindTransportDisconnected Kind = "TRANSPORT_DISCONNECTED"
)

// Error is the typed error surfaced by the sync core for REST and
// channel failures.
type Error struct {
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// Is reports whether target is an *Error of the same Kind, so callers
// can use errors.Is with a bare constructor result as the target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// NetworkFailure creates a generic transport/response error.
func NetworkFailure(message string) *Error {
	if message == "" {
		message = "request failed"
	}
	return &Error{
		Kind:    KindNetwork,
		Message: message,
	}
}

// Conflict creates the booking race error. The message is distinct from
// generic failures so UIs can present the race case specifically.
func Conflict(message string) *Error {
	if message == "" {
		message = "Sorry! Someone just booked this session seconds ago."
	}
	return &Error{
		Kind:       KindConflict,
		StatusCode: http.StatusConflict,
		Message:    message,
	}
}

// ValidationFailure creates a 4xx error carrying the server's detail.
func ValidationFailure(message, detail string) *Error {
	if message == "" {
		message = "request rejected"
	}
	return &Error{
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Detail:     detail,
	}
}

// Unauthenticated creates the no-active-session error.
func Unauthenticated(message string) *Error {
	if message == "" {
		message = "you must be logged in to perform this action"
	}
	return &Error{
		Kind:       KindUnauthenticated,
		StatusCode: http.StatusUnauthorized,
		Message:    message,
	}
}

// NotFound creates a 404 error.
func NotFound(message string) *Error {
	if message == "" {
		message = "resource not found"
	}
	return &Error{
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
		Message:    message,
	}
}

// TransportDisconnected creates the exhausted-retry-budget error.
func TransportDisconnected(message string) *Error {
	if message == "" {
		message = "realtime channel is disconnected"
	}
	return &Error{
		Kind:    KindTransportDisconnected,
		Message: message,
	}
}

// detailBody matches the backend's error payload shape.
type detailBody struct {
	Detail string `json:"detail"`
}

// FromResponse maps a non-2xx REST response to a typed error.
// 409 becomes Conflict, 401 Unauthenticated, 404 NotFound, other 4xx
// with a detail payload become ValidationFailure, everything else a
// generic NetworkFailure carrying whatever detail the server sent.
func FromResponse(statusCode int, body []byte) *Error {
	var payload detailBody
	_ = json.Unmarshal(body, &payload)

	switch {
	case statusCode == http.StatusConflict:
		return Conflict("")
	case statusCode == http.StatusUnauthorized:
		e := Unauthenticated("")
		e.Detail = payload.Detail
		return e
	case statusCode == http.StatusNotFound:
		return NotFound(payload.Detail)
	case statusCode >= 400 && statusCode < 500 && payload.Detail != "":
		e := ValidationFailure("", payload.Detail)
		e.StatusCode = statusCode
		return e
	default:
		e := NetworkFailure(payload.Detail)
		e.StatusCode = statusCode
		return e
	}
}

// ToJSON converts the error to JSON bytes for the local status API.
func (e *Error) ToJSON() []byte {
	response := map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"kind":    e.Kind,
			"message": e.Message,
		},
	}
	if e.Detail != "" {
		response["error"].(map[string]interface{})["detail"] = e.Detail
	}

	data, _ := json.Marshal(response)
	return data
}
