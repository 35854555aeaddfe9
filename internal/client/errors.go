package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrValidation marks input rejected before any request was made.
var ErrValidation = errors.New("validation failed")

// ErrUnreachable marks transport failures: the server could not be reached or
// answered with something that is not an API response.
var ErrUnreachable = errors.New("cannot connect to the server")

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// APIError is a non 2xx answer of the content backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Operation names a gateway call in the error taxonomy.
type Operation string

const (
	OpCreateAccount  Operation = "createAccount"
	OpLogin          Operation = "login"
	OpForgotPassword Operation = "forgotPassword"
	OpUpdatePassword Operation = "updatePassword"
)

// Error is a failed gateway call with its user facing message.
type Error struct {
	Op      Operation
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

type rule struct {
	status int
	// contains further restricts the rule to provider messages containing it.
	contains string
	message  string
}

type policy struct {
	rules    []rule
	fallback string
}

const unreachableMessage = "Cannot connect to the server. Please check your connection."

var taxonomy = map[Operation]policy{
	OpCreateAccount: {
		rules: []rule{
			{status: http.StatusConflict, message: "An account with this email already exists. Please login instead."},
			{status: http.StatusBadRequest, contains: "password", message: "Password is too weak. Please use a stronger password."},
			{status: http.StatusBadRequest, contains: "email", message: "Invalid email format. Please check your email address."},
			{status: http.StatusTooManyRequests, message: "Too many account creation attempts. Please try again later."},
		},
		fallback: "Account creation failed. Please try again.",
	},
	OpLogin: {
		rules: []rule{
			{status: http.StatusUnauthorized, message: "Invalid email or password."},
			{status: http.StatusConflict, message: "A session already exists. Please logout first."},
			{status: http.StatusTooManyRequests, message: "Too many login attempts. Please try again later."},
			{status: http.StatusInternalServerError, message: "Server error. Please try again later."},
		},
		fallback: "Login failed. Please check your credentials.",
	},
	OpForgotPassword: {
		rules: []rule{
			{status: http.StatusNotFound, message: "Email not found. Please register first."},
		},
		fallback: "Failed to send reset email. Try again later.",
	},
	OpUpdatePassword: {
		fallback: "Password update failed",
	},
}

// Describe maps err, as returned by a call of op, to its user facing message.
// Validation errors keep their own text.
func Describe(op Operation, err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrValidation) {
		return err.Error()
	}
	if errors.Is(err, ErrUnreachable) {
		return unreachableMessage
	}
	p := taxonomy[op]
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		lower := strings.ToLower(apiErr.Message)
		for _, r := range p.rules {
			if r.status != apiErr.Status {
				continue
			}
			if r.contains != "" && !strings.Contains(lower, r.contains) {
				continue
			}
			return r.message
		}
	}
	if p.fallback == "" {
		return err.Error()
	}
	return p.fallback
}

func wrap(op Operation, err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	return &Error{Op: op, Message: Describe(op, err), Err: err}
}
