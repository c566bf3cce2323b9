// Package httputil carries the JSON response envelope shared by every
// handler: {"success": bool, "message": string, "data": optional}.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Response is the uniform body shape for all API responses.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Kind classifies a request failure. It decides the HTTP status the
// envelope is written with.
type Kind int

const (
	// KindInvalid covers malformed or out-of-range request fields.
	KindInvalid Kind = iota
	// KindUnauthenticated covers missing, unknown, and expired credentials.
	// The three are deliberately indistinguishable to the caller.
	KindUnauthenticated
	// KindForbidden covers bans, insufficient privilege, and non-ownership.
	KindForbidden
	// KindNotFound covers missing users and servers.
	KindNotFound
	// KindConflict covers duplicate names/addresses, active vote cooldowns,
	// and already-verified servers.
	KindConflict
	// KindTransient covers handshake timeouts and transport errors. Safe for
	// the caller to retry.
	KindTransient
)

func (k Kind) status() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// RequestError is a failure scoped to a single request. Handlers return it
// up to the point where Fail writes the envelope.
type RequestError struct {
	Kind    Kind
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// Errorf builds a RequestError of the given kind.
func Errorf(kind Kind, message string) *RequestError {
	return &RequestError{Kind: kind, Message: message}
}

// JSON writes a success envelope with the given message and optional data.
func JSON(w http.ResponseWriter, message string, data any) {
	write(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// Fail writes a failure envelope. RequestErrors map to their kind's status;
// anything else is treated as an internal error without leaking its text.
func Fail(w http.ResponseWriter, err error) {
	var re *RequestError
	if errors.As(err, &re) {
		write(w, re.Kind.status(), Response{Success: false, Message: re.Message})
		return
	}
	log.Error().Err(err).Msg("unhandled request error")
	write(w, http.StatusInternalServerError, Response{
		Success: false,
		Message: "An internal error occurred. Please try again later.",
	})
}

// Write emits an envelope with an explicit status code, for the few spots
// (rate limiting, not-found fallback) that sit outside the kind taxonomy.
func Write(w http.ResponseWriter, status int, body Response) {
	write(w, status, body)
}

func write(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
