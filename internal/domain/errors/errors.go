package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrTooManyRequests = errors.New("too many requests")

	// Registration
	ErrMissingField              = errors.New("missing required field")
	ErrInvalidRole               = errors.New("invalid role")
	ErrEmailInUse                = errors.New("email already in use")
	ErrAdminRegistrationDisabled = errors.New("admin registration disabled")
	ErrNotAllowedAdmin           = errors.New("not allowed to register as admin")
	ErrAdminAlreadyExists        = errors.New("admin already exists")
	ErrPhoneRequired             = errors.New("agent requires phone number")
	ErrInvalidPhone              = errors.New("invalid phone number")
	ErrInvalidWhatsApp           = errors.New("invalid whatsapp number")
	ErrInvalidTelegram           = errors.New("invalid telegram username")

	// Authentication and verification
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrNoToken            = errors.New("no token provided")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrAlreadyVerified    = errors.New("email already verified")
)

// Machine readable error codes
const (
	CodeInvalidInput              = "INVALID_INPUT"
	CodeNotFound                  = "NOT_FOUND"
	CodeUnauthorized              = "UNAUTHORIZED"
	CodeForbidden                 = "FORBIDDEN"
	CodeTooManyRequests           = "TOO_MANY_REQUESTS"
	CodeInternalError             = "INTERNAL_ERROR"
	CodeMissingField              = "MISSING_FIELD"
	CodeInvalidRole               = "INVALID_ROLE"
	CodeEmailInUse                = "EMAIL_IN_USE"
	CodeAdminRegistrationDisabled = "ADMIN_REGISTRATION_DISABLED"
	CodeNotAllowedAdmin           = "NOT_ALLOWED_ADMIN"
	CodeAdminAlreadyExists        = "ADMIN_ALREADY_EXISTS"
	CodePhoneRequired             = "PHONE_REQUIRED"
	CodeInvalidPhone              = "INVALID_PHONE"
	CodeInvalidWhatsApp           = "INVALID_WHATSAPP"
	CodeInvalidTelegram           = "INVALID_TELEGRAM"
	CodeInvalidCredentials        = "INVALID_CREDENTIALS"
	CodeEmailNotVerified          = "EMAIL_NOT_VERIFIED"
	CodeNoToken                   = "NO_TOKEN"
	CodeInvalidToken              = "INVALID_TOKEN"
	CodeTokenExpired              = "TOKEN_EXPIRED"
	CodeAlreadyVerified           = "ALREADY_VERIFIED"
)

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidInput, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message, ErrForbidden)
}

func TooManyRequests(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, CodeTooManyRequests, message, ErrTooManyRequests)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

type mapping struct {
	status  int
	code    string
	message string
}

var sentinelMappings = []struct {
	err error
	mapping
}{
	{ErrMissingField, mapping{http.StatusBadRequest, CodeMissingField, "Missing fields"}},
	{ErrInvalidRole, mapping{http.StatusBadRequest, CodeInvalidRole, "Invalid role"}},
	{ErrPhoneRequired, mapping{http.StatusBadRequest, CodePhoneRequired, "Agent requires phone number"}},
	{ErrInvalidPhone, mapping{http.StatusBadRequest, CodeInvalidPhone, "Invalid phone number"}},
	{ErrInvalidWhatsApp, mapping{http.StatusBadRequest, CodeInvalidWhatsApp, "Invalid WhatsApp number"}},
	{ErrInvalidTelegram, mapping{http.StatusBadRequest, CodeInvalidTelegram, "Invalid telegram username"}},
	{ErrEmailInUse, mapping{http.StatusConflict, CodeEmailInUse, "Email already in use"}},
	{ErrAdminRegistrationDisabled, mapping{http.StatusForbidden, CodeAdminRegistrationDisabled, "Admin registration disabled"}},
	{ErrNotAllowedAdmin, mapping{http.StatusForbidden, CodeNotAllowedAdmin, "Not allowed to register as admin"}},
	{ErrAdminAlreadyExists, mapping{http.StatusForbidden, CodeAdminAlreadyExists, "Admin already exists"}},
	{ErrInvalidCredentials, mapping{http.StatusUnauthorized, CodeInvalidCredentials, "Invalid credentials"}},
	{ErrEmailNotVerified, mapping{http.StatusUnauthorized, CodeEmailNotVerified, "Please verify your email before logging in."}},
	{ErrNoToken, mapping{http.StatusUnauthorized, CodeNoToken, "No token provided"}},
	{ErrInvalidToken, mapping{http.StatusBadRequest, CodeInvalidToken, "Invalid verification token"}},
	{ErrTokenExpired, mapping{http.StatusBadRequest, CodeTokenExpired, "Verification token expired"}},
	{ErrAlreadyVerified, mapping{http.StatusBadRequest, CodeAlreadyVerified, "Email already verified"}},
	{ErrTooManyRequests, mapping{http.StatusTooManyRequests, CodeTooManyRequests, "Too many requests, try again later"}},
	{ErrNotFound, mapping{http.StatusNotFound, CodeNotFound, "User not found"}},
	{ErrInvalidInput, mapping{http.StatusBadRequest, CodeInvalidInput, "Invalid input"}},
	{ErrUnauthorized, mapping{http.StatusUnauthorized, CodeUnauthorized, "Unauthorized"}},
	{ErrForbidden, mapping{http.StatusForbidden, CodeForbidden, "Insufficient permissions"}},
}

// FromError converts any error into an AppError. Existing AppErrors pass through,
// known sentinels get their HTTP status and code, everything else becomes a 500.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range sentinelMappings {
		if errors.Is(err, m.err) {
			return NewAppError(m.status, m.code, m.message, err)
		}
	}
	return InternalError(err)
}
