package auth

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific enrollment or authentication failure.
type ErrorCode string

const (
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeNoFace        ErrorCode = "NO_FACE"
	ErrCodeMultipleFaces ErrorCode = "MULTIPLE_FACES"
	ErrCodeNotRecognized ErrorCode = "NOT_RECOGNIZED"
	ErrCodeNoUsers       ErrorCode = "NO_USERS"
	ErrCodeNotEnrolled   ErrorCode = "NOT_ENROLLED"
	ErrCodeStorage       ErrorCode = "STORAGE_ERROR"
)

// AuthError is a structured, user-actionable error.
type AuthError struct {
	Code    ErrorCode
	Message string
	Retry   bool
	Details map[string]interface{}
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// User-friendly error messages
var errorMessages = map[ErrorCode]string{
	ErrCodeInvalidInput:  "user_id and image are required",
	ErrCodeNoFace:        "No face detected. Please position your face in the image",
	ErrCodeMultipleFaces: "Multiple faces detected. Please send a photo with only one person",
	ErrCodeNotRecognized: "Face not recognized. Please enroll first",
	ErrCodeNoUsers:       "No users enrolled",
	ErrCodeNotEnrolled:   "No face data enrolled for this user",
	ErrCodeStorage:       "Identity store unavailable",
}

// GetErrorMessage returns a user-friendly message for an error code.
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Authentication failed"
}

// NewAuthError creates a new structured error with the default message.
func NewAuthError(code ErrorCode, retry bool) *AuthError {
	return &AuthError{
		Code:    code,
		Message: GetErrorMessage(code),
		Retry:   retry,
		Details: make(map[string]interface{}),
	}
}

func invalidInput(message string, err error) *AuthError {
	e := NewAuthError(ErrCodeInvalidInput, false)
	e.Message = message
	e.Err = err
	return e
}

func storageError(err error) *AuthError {
	e := NewAuthError(ErrCodeStorage, true)
	e.Err = err
	return e
}

// CodeOf returns the code of an AuthError anywhere in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code, true
	}
	return "", false
}
