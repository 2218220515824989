package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"hostel-hub.backend/internal/domain/entities"
	domainerrors "hostel-hub.backend/internal/domain/errors"
	"hostel-hub.backend/internal/domain/repositories"
	"hostel-hub.backend/internal/infrastructure/models"
)

var newUserID = func() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// UserRepository implements user data operations
type UserRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail is the canonical stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user.ID == uuid.Nil {
		user.ID = newUserID()
	}
	now := r.now()
	user.Email = NormalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	m := &models.User{
		ID:                       user.ID,
		Name:                     user.Name,
		Email:                    user.Email,
		PasswordHash:             user.PasswordHash,
		Role:                     string(user.Role),
		Phone:                    user.Phone.Ptr(),
		WhatsApp:                 user.WhatsApp.Ptr(),
		Telegram:                 user.Telegram.Ptr(),
		IsEmailVerified:          user.IsEmailVerified,
		EmailVerificationToken:   user.EmailVerificationToken.Ptr(),
		EmailVerificationExpires: user.EmailVerificationExpires.Ptr(),
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return translateUniqueViolation(err)
	}
	return nil
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail gets a user by email, ignoring case
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.first(ctx, "lower(email) = ?", NormalizeEmail(email))
}

// GetByVerificationToken gets the user holding an outstanding token digest
func (r *UserRepository) GetByVerificationToken(ctx context.Context, tokenHash string) (*entities.User, error) {
	if tokenHash == "" {
		return nil, domainerrors.ErrNotFound
	}
	return r.first(ctx, "email_verification_token = ?", tokenHash)
}

func (r *UserRepository) first(ctx context.Context, query string, args ...interface{}) (*entities.User, error) {
	var m models.User
	if err := GetDB(ctx, r.db).Where(query, args...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toUserEntity(&m), nil
}

// Update applies the non-nil changes and returns the stored user
func (r *UserRepository) Update(ctx context.Context, id uuid.UUID, changes repositories.UserChanges) (*entities.User, error) {
	updates := map[string]interface{}{}
	if changes.Name != nil {
		updates["name"] = *changes.Name
	}
	if changes.PasswordHash != nil {
		updates["password_hash"] = *changes.PasswordHash
	}
	if changes.Phone != nil {
		updates["phone"] = nullableColumn(*changes.Phone)
	}
	if changes.WhatsApp != nil {
		updates["whatsapp"] = nullableColumn(*changes.WhatsApp)
	}
	if changes.Telegram != nil {
		updates["telegram"] = nullableColumn(*changes.Telegram)
	}
	if len(updates) == 0 {
		return r.GetByID(ctx, id)
	}
	updates["updated_at"] = r.now()

	result := GetDB(ctx, r.db).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domainerrors.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// CountByRole counts users holding role
func (r *UserRepository) CountByRole(ctx context.Context, role entities.UserRole) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&models.User{}).Where("role = ?", string(role)).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SetVerificationToken stores a new token digest and expiry for an unverified user,
// replacing any previous one
func (r *UserRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	result := GetDB(ctx, r.db).
		Model(&models.User{}).
		Where("id = ? AND is_email_verified = ?", id, false).
		Updates(map[string]interface{}{
			"email_verification_token":   tokenHash,
			"email_verification_expires": expiresAt.UTC(),
			"updated_at":                 r.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	user, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return domainerrors.ErrAlreadyVerified
	}
	return domainerrors.ErrNotFound
}

// ConsumeVerificationToken verifies the user if the digest matches an unexpired token.
// Lookup, validity check and clearing happen in one UPDATE, so of two concurrent
// calls with the same token at most one succeeds.
func (r *UserRepository) ConsumeVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, now time.Time) error {
	result := GetDB(ctx, r.db).
		Model(&models.User{}).
		Where("id = ? AND email_verification_token = ? AND email_verification_expires > ? AND is_email_verified = ?",
			id, tokenHash, now.UTC(), false).
		Updates(map[string]interface{}{
			"is_email_verified":          true,
			"email_verification_token":   nil,
			"email_verification_expires": nil,
			"updated_at":                 r.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// ClearExpiredVerificationTokens removes tokens that expired at or before cutoff
func (r *UserRepository) ClearExpiredVerificationTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	result := GetDB(ctx, r.db).
		Model(&models.User{}).
		Where("is_email_verified = ? AND email_verification_expires IS NOT NULL AND email_verification_expires <= ?", false, cutoff.UTC()).
		Updates(map[string]interface{}{
			"email_verification_token":   nil,
			"email_verification_expires": nil,
			"updated_at":                 r.now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func nullableColumn(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func toUserEntity(m *models.User) *entities.User {
	return &entities.User{
		ID:                       m.ID,
		Name:                     m.Name,
		Email:                    m.Email,
		PasswordHash:             m.PasswordHash,
		Role:                     entities.UserRole(m.Role),
		Phone:                    null.StringFromPtr(m.Phone),
		WhatsApp:                 null.StringFromPtr(m.WhatsApp),
		Telegram:                 null.StringFromPtr(m.Telegram),
		IsEmailVerified:          m.IsEmailVerified,
		EmailVerificationToken:   null.StringFromPtr(m.EmailVerificationToken),
		EmailVerificationExpires: null.TimeFromPtr(m.EmailVerificationExpires),
		CreatedAt:                m.CreatedAt,
		UpdatedAt:                m.UpdatedAt,
	}
}
