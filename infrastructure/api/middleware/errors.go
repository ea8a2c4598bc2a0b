package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/helixml/marketbasket/application/service"
	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/infrastructure/api/jsonapi"
	"github.com/helixml/marketbasket/internal/database"
	"github.com/helixml/marketbasket/internal/log"
)

// Base API errors as sentinels.
var (
	// ErrAuthentication indicates authentication failure.
	ErrAuthentication = errors.New("authentication failed")

	// ErrServer indicates the server could not serve the request.
	ErrServer = errors.New("server error")
)

// APIError is an error with an explicit HTTP status, typically a bad request
// detected by a handler.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates a new APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{
		code:    code,
		message: message,
		cause:   cause,
	}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error { return e.cause }

// Code returns the HTTP status code.
func (e *APIError) Code() int { return e.code }

// Message returns the error message.
func (e *APIError) Message() string { return e.message }

// AuthenticationError represents a rejected API key.
type AuthenticationError struct {
	message string
}

// NewAuthenticationError creates a new AuthenticationError.
func NewAuthenticationError(message string) *AuthenticationError {
	return &AuthenticationError{message: message}
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.message
}

// Unwrap returns ErrAuthentication for errors.Is compatibility.
func (e *AuthenticationError) Unwrap() error { return ErrAuthentication }

// ServerError represents a server-side condition with a specific status,
// such as a closed client.
type ServerError struct {
	statusCode int
	message    string
}

// NewServerError creates a new ServerError.
func NewServerError(statusCode int, message string) *ServerError {
	return &ServerError{statusCode: statusCode, message: message}
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.statusCode, e.message)
}

// Unwrap returns ErrServer for errors.Is compatibility.
func (e *ServerError) Unwrap() error { return ErrServer }

// StatusCode returns the HTTP status code.
func (e *ServerError) StatusCode() int { return e.statusCode }

// Message returns the error message.
func (e *ServerError) Message() string { return e.message }

// classify maps err to an HTTP status, title and client-facing detail.
func classify(err error) (int, string, string) {
	var apiErr *APIError
	var serverErr *ServerError
	var authErr *AuthenticationError

	switch {
	case errors.As(err, &apiErr):
		detail := apiErr.Message()
		if apiErr.cause != nil {
			detail += ": " + apiErr.cause.Error()
		}
		return apiErr.Code(), http.StatusText(apiErr.Code()), detail
	case errors.As(err, &serverErr):
		return serverErr.StatusCode(), "Server Error", serverErr.Message()
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, "Authentication Failed", authErr.Error()
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "Not Found", err.Error()
	case errors.Is(err, basket.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid Input", err.Error()
	case errors.Is(err, basket.ErrConcurrentUpdate):
		return http.StatusConflict, "Conflict", err.Error()
	case errors.Is(err, service.ErrClientClosed):
		return http.StatusServiceUnavailable, "Service Unavailable", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timeout", "request timed out"
	default:
		return http.StatusInternalServerError, "Internal Server Error", "internal server error"
	}
}

// WriteError writes err as a JSON:API error document.
// Server faults are logged at error level and their detail is not exposed.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status, title, detail := classify(err)
	correlationID := log.CorrelationID(r.Context())

	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "request error",
			slog.Int("status", status),
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
		)
	}

	doc := jsonapi.NewErrorResponse(jsonapi.Error{
		ID:     correlationID,
		Status: strconv.Itoa(status),
		Title:  title,
		Detail: detail,
	})

	w.Header().Set("Content-Type", jsonapi.MediaType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}

// WriteJSON writes data as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteDocument writes a JSON:API document.
func WriteDocument(w http.ResponseWriter, status int, doc *jsonapi.Document) {
	w.Header().Set("Content-Type", jsonapi.MediaType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}
