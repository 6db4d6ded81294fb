package auth

import (
	"errors"
	"fmt"
)

// Provider error codes. They travel to clients verbatim in the JSON error
// body so the client can choose the user-facing message.
const (
	CodeUserNotFound       = "auth/user-not-found"
	CodeWrongPassword      = "auth/wrong-password"
	CodeTooManyRequests    = "auth/too-many-requests"
	CodeUserDisabled       = "auth/user-disabled"
	CodeEmailAlreadyInUse  = "auth/email-already-in-use"
	CodeInvalidEmail       = "auth/invalid-email"
	CodeWeakPassword       = "auth/weak-password"
	CodeInvalidCredential  = "auth/invalid-credential"
	CodeInvalidIDToken     = "auth/invalid-id-token"
	CodeProviderNotEnabled = "auth/operation-not-allowed"
)

var messages = map[string]string{
	CodeUserNotFound:       "No account found with this email address.",
	CodeWrongPassword:      "Incorrect password. Please try again.",
	CodeTooManyRequests:    "Too many attempts. Account temporarily locked.",
	CodeUserDisabled:       "This account has been disabled.",
	CodeEmailAlreadyInUse:  "An account with this email address already exists.",
	CodeInvalidEmail:       "Please enter a valid email address.",
	CodeWeakPassword:       "Password should be at least 6 characters.",
	CodeInvalidCredential:  "Login failed. Please try again.",
	CodeInvalidIDToken:     "Sign-in with Google failed. Please try again.",
	CodeProviderNotEnabled: "This sign-in method is not enabled.",
}

// DefaultMessage is shown for codes without a dedicated message.
const DefaultMessage = "Login failed. Please try again."

// UserMessage maps a provider error code to the text shown to the user.
func UserMessage(code string) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return DefaultMessage
}

// ProviderError is a categorized authentication failure.
type ProviderError struct {
	Code string
	Err  error
}

func NewProviderError(code string, err error) *ProviderError {
	return &ProviderError{Code: code, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Message returns the user-facing text for e.
func (e *ProviderError) Message() string { return UserMessage(e.Code) }

// Code extracts the provider error code from err, or "" when err is not a
// *ProviderError.
func Code(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
