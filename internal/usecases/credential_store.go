package usecases

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"hostel-hub.backend/internal/domain/entities"
	domainerrors "hostel-hub.backend/internal/domain/errors"
	"hostel-hub.backend/internal/domain/repositories"
	"hostel-hub.backend/pkg/crypto"
)

var hashPassword = crypto.HashPassword

// CredentialStore owns user records and is the only place plaintext passwords
// are turned into hashes.
type CredentialStore struct {
	userRepo repositories.UserRepository
}

func NewCredentialStore(userRepo repositories.UserRepository) *CredentialStore {
	return &CredentialStore{userRepo: userRepo}
}

// Create hashes the candidate's password and persists the user. An email
// collision, including one lost in a race, fails with ErrEmailInUse.
func (s *CredentialStore) Create(ctx context.Context, candidate entities.NewUser) (*entities.User, error) {
	hash, err := hashSecret(candidate.Password)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Name:            candidate.Name,
		Email:           candidate.Email,
		PasswordHash:    hash,
		Role:            candidate.Role,
		Phone:           candidate.Phone,
		WhatsApp:        candidate.WhatsApp,
		Telegram:        candidate.Telegram,
		IsEmailVerified: candidate.IsEmailVerified,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	return s.userRepo.GetByEmail(ctx, email)
}

func (s *CredentialStore) FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// Update applies a partial update. A new password is re-hashed before storage.
func (s *CredentialStore) Update(ctx context.Context, id uuid.UUID, patch entities.UserPatch) (*entities.User, error) {
	changes := repositories.UserChanges{
		Name:     patch.Name,
		Phone:    patch.Phone,
		WhatsApp: patch.WhatsApp,
		Telegram: patch.Telegram,
	}
	if patch.Password != nil {
		hash, err := hashSecret(*patch.Password)
		if err != nil {
			return nil, err
		}
		changes.PasswordHash = &hash
	}
	return s.userRepo.Update(ctx, id, changes)
}

func (s *CredentialStore) CountByRole(ctx context.Context, role entities.UserRole) (int64, error) {
	return s.userRepo.CountByRole(ctx, role)
}

func hashSecret(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", domainerrors.BadRequest(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes))
	}
	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}
	return hash, nil
}
