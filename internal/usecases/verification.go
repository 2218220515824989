package usecases

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"hostel-hub.backend/internal/domain/entities"
	domainerrors "hostel-hub.backend/internal/domain/errors"
	"hostel-hub.backend/internal/domain/repositories"
	"hostel-hub.backend/pkg/crypto"
)

// VerificationIssuer hands out single-use email verification tokens. Only the
// SHA-256 digest of a token is stored.
type VerificationIssuer struct {
	userRepo repositories.UserRepository
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

func NewVerificationIssuer(userRepo repositories.UserRepository, ttl time.Duration) *VerificationIssuer {
	if ttl <= 0 {
		ttl = DefaultVerificationTTL
	}
	return &VerificationIssuer{
		userRepo: userRepo,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		generate: crypto.GenerateVerificationToken,
	}
}

// SetClock replaces the time source.
func (v *VerificationIssuer) SetClock(now func() time.Time) {
	v.now = now
}

// TTL is the lifetime of an issued token.
func (v *VerificationIssuer) TTL() time.Duration {
	return v.ttl
}

// Issue creates a token for userID, replacing any outstanding one, and returns
// the plaintext to be delivered.
func (v *VerificationIssuer) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := v.generate()
	if err != nil {
		return "", err
	}
	expiresAt := v.now().Add(v.ttl)
	if err := v.userRepo.SetVerificationToken(ctx, userID, crypto.HashToken(token), expiresAt); err != nil {
		return "", err
	}
	return token, nil
}

// Consume verifies the user registered under email. Unknown emails and wrong,
// replaced or already used tokens all fail with ErrInvalidToken. The right
// token presented at or after its expiry fails with ErrTokenExpired.
func (v *VerificationIssuer) Consume(ctx context.Context, email, token string) (*entities.User, error) {
	user, err := v.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return v.consume(ctx, user, crypto.HashToken(token))
}

// ConsumeLink verifies whichever user holds token.
func (v *VerificationIssuer) ConsumeLink(ctx context.Context, token string) (*entities.User, error) {
	digest := crypto.HashToken(token)
	user, err := v.userRepo.GetByVerificationToken(ctx, digest)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return v.consume(ctx, user, digest)
}

func (v *VerificationIssuer) consume(ctx context.Context, user *entities.User, digest string) (*entities.User, error) {
	if user.IsEmailVerified || !user.HasPendingVerification() {
		return nil, domainerrors.ErrInvalidToken
	}

	// Expired is only reported to a caller holding the token, so a wrong code
	// for a known email reads the same as one for an unknown email.
	now := v.now()
	if !now.Before(user.EmailVerificationExpires.Time) {
		if subtle.ConstantTimeCompare([]byte(digest), []byte(user.EmailVerificationToken.String)) != 1 {
			return nil, domainerrors.ErrInvalidToken
		}
		return nil, domainerrors.ErrTokenExpired
	}

	// The update re-checks digest and expiry, so a concurrent consumer that won
	// leaves nothing to match here.
	if err := v.userRepo.ConsumeVerificationToken(ctx, user.ID, digest, now); err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to consume verification token: %w", err)
	}

	user.IsEmailVerified = true
	user.EmailVerificationToken.Valid = false
	user.EmailVerificationExpires.Valid = false
	return user, nil
}
