package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// UserRole represents user roles
type UserRole string

const (
	UserRoleStudent UserRole = "student"
	UserRoleAgent   UserRole = "agent"
	UserRoleAdmin   UserRole = "admin"
)

// Roles lists every recognised role.
var Roles = []UserRole{UserRoleStudent, UserRoleAgent, UserRoleAdmin}

// IsValid reports whether r is one of the recognised roles.
func (r UserRole) IsValid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequiresVerification reports whether accounts with this role must confirm
// their email before logging in.
func (r UserRole) RequiresVerification() bool {
	return r == UserRoleStudent || r == UserRoleAgent
}

// User represents a user entity
type User struct {
	ID                       uuid.UUID   `json:"id"`
	Name                     string      `json:"name"`
	Email                    string      `json:"email"`
	PasswordHash             string      `json:"-"`
	Role                     UserRole    `json:"role"`
	Phone                    null.String `json:"phone,omitempty"`
	WhatsApp                 null.String `json:"whatsapp,omitempty"`
	Telegram                 null.String `json:"telegram,omitempty"`
	IsEmailVerified          bool        `json:"isEmailVerified"`
	EmailVerificationToken   null.String `json:"-"`
	EmailVerificationExpires null.Time   `json:"-"`
	CreatedAt                time.Time   `json:"createdAt"`
	UpdatedAt                time.Time   `json:"updatedAt"`
}

// HasPendingVerification reports whether a verification challenge is outstanding.
func (u *User) HasPendingVerification() bool {
	return u.EmailVerificationToken.Valid && u.EmailVerificationExpires.Valid
}

// PublicUser is the projection of a user that may leave the service.
type PublicUser struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            UserRole  `json:"role"`
	Phone           string    `json:"phone,omitempty"`
	WhatsApp        string    `json:"whatsapp,omitempty"`
	Telegram        string    `json:"telegram,omitempty"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Public returns the public projection of the user.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		Phone:           u.Phone.String,
		WhatsApp:        u.WhatsApp.String,
		Telegram:        u.Telegram.String,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
	}
}

// NewUser is a registration candidate handed to the credential store.
// Password is plaintext and is hashed before anything is persisted.
type NewUser struct {
	Name            string
	Email           string
	Password        string
	Role            UserRole
	Phone           null.String
	WhatsApp        null.String
	Telegram        null.String
	IsEmailVerified bool
}

// UserPatch is a partial update. Nil fields are left untouched.
type UserPatch struct {
	Name     *string
	Password *string
	Phone    *string
	WhatsApp *string
	Telegram *string
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Password == nil && p.Phone == nil && p.WhatsApp == nil && p.Telegram == nil
}

// AuthenticatedUser is the identity attached to a request by the session validator.
type AuthenticatedUser struct {
	ID   uuid.UUID `json:"id"`
	Role UserRole  `json:"role"`
}

// RegisterInput represents input for user registration
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	WhatsApp string `json:"whatsapp"`
	Telegram string `json:"telegram"`
}

// RegisterResult is returned by a successful registration.
type RegisterResult struct {
	Message string      `json:"message"`
	User    *PublicUser `json:"user"`
}

// LoginInput represents input for user login
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User  *PublicUser `json:"user"`
	Token string      `json:"token"`
}

// VerifyEmailInput represents input for email verification with a pasted code
type VerifyEmailInput struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// ResendVerificationInput represents input for requesting a new verification token
type ResendVerificationInput struct {
	Email string `json:"email"`
}

// UpdateProfileInput represents input for updating the caller's profile.
type UpdateProfileInput struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	WhatsApp *string `json:"whatsapp"`
	Telegram *string `json:"telegram"`
}

// ChangePasswordInput represents input for changing user password.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// RoleCounts holds the number of users per role.
type RoleCounts struct {
	Student int64 `json:"student"`
	Agent   int64 `json:"agent"`
	Admin   int64 `json:"admin"`
}
