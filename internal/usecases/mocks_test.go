package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"hostel-hub.backend/internal/domain/entities"
	"hostel-hub.backend/internal/domain/repositories"
)

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, f func(context.Context) error) error {
	m.Called(ctx, f)
	return f(ctx)
}

// Mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByVerificationToken(ctx context.Context, tokenHash string) (*entities.User, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, id uuid.UUID, changes repositories.UserChanges) (*entities.User, error) {
	args := m.Called(ctx, id, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) CountByRole(ctx context.Context, role entities.UserRole) (int64, error) {
	args := m.Called(ctx, role)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, id, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockUserRepository) ConsumeVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, now time.Time) error {
	args := m.Called(ctx, id, tokenHash, now)
	return args.Error(0)
}

func (m *MockUserRepository) ClearExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type sentMail struct {
	kind  string
	to    string
	name  string
	token string
	role  string
}

// stubMailer records deliveries and can be told to fail.
type stubMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (s *stubMailer) SendVerification(_ context.Context, to, name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{kind: "verification", to: to, name: name, token: token})
	return s.err
}

func (s *stubMailer) SendWelcome(_ context.Context, to, name, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{kind: "welcome", to: to, name: name, role: role})
	return s.err
}

func (s *stubMailer) last(kind string) (sentMail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].kind == kind {
			return s.sent[i], true
		}
	}
	return sentMail{}, false
}

func (s *stubMailer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
