// Package identity implements the identity provider: password and
// federated sign-in, account creation, password reset, and auth-state
// change notification. Every failure is reported as an *AuthError
// carrying one code from a fixed set; callers map codes to user-facing
// text with Message and never see a raw backend error.
package identity

import "fmt"

// Code identifies an authentication failure. The set is fixed; any
// backend failure that does not map cleanly becomes CodeUnknown.
type Code string

const (
	CodeUserNotFound        Code = "auth/user-not-found"
	CodeWrongPassword       Code = "auth/wrong-password"
	CodeInvalidEmail        Code = "auth/invalid-email"
	CodeUserDisabled        Code = "auth/user-disabled"
	CodeEmailAlreadyInUse   Code = "auth/email-already-in-use"
	CodeWeakPassword        Code = "auth/weak-password"
	CodeOperationNotAllowed Code = "auth/operation-not-allowed"
	CodeTooManyRequests     Code = "auth/too-many-requests"
	CodeUnknown             Code = "auth/unknown"
)

// userMessages maps each code to its one fixed user-facing string.
var userMessages = map[Code]string{
	CodeUserNotFound:        "No account exists with this email address.",
	CodeWrongPassword:       "The password is incorrect.",
	CodeInvalidEmail:        "The email address is not valid.",
	CodeUserDisabled:        "This account has been disabled.",
	CodeEmailAlreadyInUse:   "An account already exists with this email address.",
	CodeWeakPassword:        "The password is too weak. Use at least 6 characters.",
	CodeOperationNotAllowed: "This sign-in method is not enabled.",
	CodeTooManyRequests:     "Too many attempts. Please wait a moment and try again.",
}

const genericRetryMessage = "Something went wrong. Please try again."

// AuthError is an authentication failure with a fixed code.
type AuthError struct {
	Code Code
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Message returns the fixed user-facing string for the error's code.
// Unknown codes fall back to a generic retry message.
func (e *AuthError) Message() string {
	if msg, ok := userMessages[e.Code]; ok {
		return msg
	}
	return genericRetryMessage
}

// NewAuthError builds an AuthError for the given code.
func NewAuthError(code Code, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}
