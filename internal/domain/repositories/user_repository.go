package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"hostel-hub.backend/internal/domain/entities"
)

// UserChanges lists the columns an update may touch. Nil fields are left as they are.
type UserChanges struct {
	Name         *string
	PasswordHash *string
	Phone        *string
	WhatsApp     *string
	Telegram     *string
}

// UserRepository defines user data operations
type UserRepository interface {
	// Create persists a new user. Email and single-admin uniqueness are enforced by the
	// store and reported as ErrEmailInUse and ErrAdminAlreadyExists.
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	GetByVerificationToken(ctx context.Context, tokenHash string) (*entities.User, error)
	Update(ctx context.Context, id uuid.UUID, changes UserChanges) (*entities.User, error)
	CountByRole(ctx context.Context, role entities.UserRole) (int64, error)

	// SetVerificationToken replaces any outstanding token of an unverified user.
	SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	// ConsumeVerificationToken marks the user verified and clears the token in one
	// conditional update. It returns ErrNotFound when no row matched.
	ConsumeVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, now time.Time) error
	// ClearExpiredVerificationTokens drops tokens whose expiry is at or before cutoff.
	ClearExpiredVerificationTokens(ctx context.Context, cutoff time.Time) (int64, error)
}
