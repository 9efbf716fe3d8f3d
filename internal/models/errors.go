package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError. Handlers map these to HTTP statuses.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeDuplicateContact = "DUPLICATE_CONTACT"
	CodeAccountNotFound  = "ACCOUNT_NOT_FOUND"
	CodePostNotFound     = "POST_NOT_FOUND"
	CodeInternal         = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. They match any AppError with the same code.
var (
	ErrValidation       = &AppError{Code: CodeValidation, Message: "validation failed"}
	ErrDuplicateContact = &AppError{Code: CodeDuplicateContact, Message: "contact number already in use"}
	ErrAccountNotFound  = &AppError{Code: CodeAccountNotFound, Message: "account not found"}
	ErrPostNotFound     = &AppError{Code: CodePostNotFound, Message: "post not found"}
	ErrStoreFailure     = &AppError{Code: CodeInternal, Message: "Internal server error"}
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Predefined error constructors
func NewAccountNotFoundError(id interface{}) *AppError {
	return &AppError{
		Code:    CodeAccountNotFound,
		Message: fmt.Sprintf("Account with ID %v not found", id),
	}
}

func NewPostNotFoundError(id interface{}) *AppError {
	return &AppError{
		Code:    CodePostNotFound,
		Message: fmt.Sprintf("Post with ID %v not found", id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewDuplicateContactError(contactNumber string) *AppError {
	return &AppError{
		Code:    CodeDuplicateContact,
		Message: fmt.Sprintf("Contact number %q already in use", contactNumber),
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// ErrorCode returns the AppError code found in err's chain, or CodeInternal.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// RespondWithError creates a standardized error response. Internal errors are
// reported without their cause.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: "Internal server error",
			Code:  CodeInternal,
		}
	}

	return c.Status(status).JSON(response)
}
