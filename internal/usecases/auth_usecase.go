package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"hostel-hub.backend/internal/domain/entities"
	domainerrors "hostel-hub.backend/internal/domain/errors"
	"hostel-hub.backend/internal/domain/repositories"
	"hostel-hub.backend/pkg/crypto"
	"hostel-hub.backend/pkg/jwt"
	"hostel-hub.backend/pkg/logger"
	"hostel-hub.backend/pkg/metrics"
	"hostel-hub.backend/pkg/redis"
)

// AccountMailer delivers account emails.
type AccountMailer interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendWelcome(ctx context.Context, to, name, role string) error
}

// AuthConfig carries the policy knobs of the auth workflows.
type AuthConfig struct {
	// AdminEmail is the only address allowed to register as admin. Empty
	// disables admin registration.
	AdminEmail     string
	ResendCooldown time.Duration
}

var (
	acquireResendSlot = func(ctx context.Context, key string, ttl time.Duration) (bool, error) {
		return redis.SetNX(ctx, key, 1, ttl)
	}
	releaseResendSlot = redis.Del
)

// Compared against when the email is unknown so both failure paths cost one bcrypt check.
var (
	dummyHashOnce sync.Once
	dummyHash     string
)

func timingDummyHash() string {
	dummyHashOnce.Do(func() {
		dummyHash, _ = crypto.HashPassword("hostel-hub-timing-equaliser")
	})
	return dummyHash
}

// AuthUsecase handles authentication business logic
type AuthUsecase struct {
	store      *CredentialStore
	issuer     *VerificationIssuer
	uow        repositories.UnitOfWork
	jwtService *jwt.JWTService
	mailer     AccountMailer
	cfg        AuthConfig
}

// NewAuthUsecase creates a new auth usecase
func NewAuthUsecase(
	store *CredentialStore,
	issuer *VerificationIssuer,
	uow repositories.UnitOfWork,
	jwtService *jwt.JWTService,
	mailer AccountMailer,
	cfg AuthConfig,
) *AuthUsecase {
	cfg.AdminEmail = normalizeEmail(cfg.AdminEmail)
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = DefaultResendCooldown
	}
	return &AuthUsecase{
		store:      store,
		issuer:     issuer,
		uow:        uow,
		jwtService: jwtService,
		mailer:     mailer,
		cfg:        cfg,
	}
}

// Register creates a user. Students and agents receive a verification email;
// the admin account is verified on creation.
func (u *AuthUsecase) Register(ctx context.Context, input *entities.RegisterInput) (*entities.RegisterResult, error) {
	role := entities.UserRole(strings.TrimSpace(input.Role))
	if role == "" {
		role = entities.UserRoleStudent
	}

	result, err := u.register(ctx, input, role)
	roleLabel := string(role)
	if !role.IsValid() {
		roleLabel = metrics.LabelInvalid
	}
	metrics.Registrations.WithLabelValues(roleLabel, metrics.Result(err)).Inc()
	return result, err
}

func (u *AuthUsecase) register(ctx context.Context, input *entities.RegisterInput, role entities.UserRole) (*entities.RegisterResult, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" || email == "" || input.Password == "" {
		return nil, domainerrors.ErrMissingField
	}
	if !role.IsValid() {
		return nil, domainerrors.ErrInvalidRole
	}
	if err := validateIdentity(name, email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	if _, err := u.store.FindByEmail(ctx, email); err == nil {
		return nil, domainerrors.ErrEmailInUse
	} else if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	candidate := entities.NewUser{
		Name:     name,
		Email:    email,
		Password: input.Password,
		Role:     role,
	}

	switch role {
	case entities.UserRoleAdmin:
		if err := u.checkAdminPolicy(ctx, email); err != nil {
			return nil, err
		}
		candidate.IsEmailVerified = true
	case entities.UserRoleAgent:
		contacts, err := validateAgentContacts(input.Phone, input.WhatsApp, input.Telegram)
		if err != nil {
			return nil, err
		}
		candidate.Phone = null.StringFrom(contacts.phone)
		candidate.WhatsApp = null.NewString(contacts.whatsapp, contacts.whatsapp != "")
		candidate.Telegram = null.NewString(contacts.telegram, contacts.telegram != "")
	}

	var (
		user  *entities.User
		token string
	)
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		var err error
		user, err = u.store.Create(txCtx, candidate)
		if err != nil {
			return err
		}
		if !role.RequiresVerification() {
			return nil
		}
		token, err = u.issuer.Issue(txCtx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !role.RequiresVerification() {
		logger.Info(ctx, "Admin registered", zap.String("user_id", user.ID.String()))
		return &entities.RegisterResult{Message: MsgRegisteredAdmin, User: user.Public()}, nil
	}

	// The account exists whether or not the email arrives.
	if err := u.mailer.SendVerification(ctx, user.Email, user.Name, token); err != nil {
		logger.Error(ctx, "Failed to send verification email",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}
	return &entities.RegisterResult{Message: MsgRegisteredPendingVerification, User: user.Public()}, nil
}

func (u *AuthUsecase) checkAdminPolicy(ctx context.Context, email string) error {
	if u.cfg.AdminEmail == "" {
		return domainerrors.ErrAdminRegistrationDisabled
	}
	if email != u.cfg.AdminEmail {
		return domainerrors.ErrNotAllowedAdmin
	}
	count, err := u.store.CountByRole(ctx, entities.UserRoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if count > 0 {
		return domainerrors.ErrAdminAlreadyExists
	}
	return nil
}

// Login authenticates a user and returns a session token
func (u *AuthUsecase) Login(ctx context.Context, input *entities.LoginInput) (*entities.AuthResponse, error) {
	resp, err := u.login(ctx, input)
	metrics.Logins.WithLabelValues(metrics.Result(err)).Inc()
	return resp, err
}

func (u *AuthUsecase) login(ctx context.Context, input *entities.LoginInput) (*entities.AuthResponse, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, domainerrors.ErrMissingField
	}

	user, err := u.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			crypto.CheckPassword(input.Password, timingDummyHash())
			return nil, domainerrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !crypto.CheckPassword(input.Password, user.PasswordHash) {
		return nil, domainerrors.ErrInvalidCredentials
	}

	if user.Role.RequiresVerification() && !user.IsEmailVerified {
		return nil, domainerrors.ErrEmailNotVerified
	}

	token, err := u.jwtService.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &entities.AuthResponse{User: user.Public(), Token: token}, nil
}

// VerifyEmail consumes a token pasted together with the account email.
func (u *AuthUsecase) VerifyEmail(ctx context.Context, input *entities.VerifyEmailInput) error {
	email := normalizeEmail(input.Email)
	token := strings.TrimSpace(input.Token)
	if email == "" || token == "" {
		return domainerrors.ErrMissingField
	}
	user, err := u.issuer.Consume(ctx, email, token)
	return u.afterVerification(ctx, user, err)
}

// VerifyEmailLink consumes a token taken from a verification link.
func (u *AuthUsecase) VerifyEmailLink(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domainerrors.ErrInvalidToken
	}
	user, err := u.issuer.ConsumeLink(ctx, token)
	return u.afterVerification(ctx, user, err)
}

func (u *AuthUsecase) afterVerification(ctx context.Context, user *entities.User, err error) error {
	metrics.Verifications.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return err
	}

	logger.Info(ctx, "Email verified", zap.String("user_id", user.ID.String()))
	if err := u.mailer.SendWelcome(ctx, user.Email, user.Name, string(user.Role)); err != nil {
		logger.Warn(ctx, "Failed to send welcome email",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// ResendVerification replaces the outstanding token of an unverified user and
// mails the new one. Requests for the same address are throttled.
func (u *AuthUsecase) ResendVerification(ctx context.Context, input *entities.ResendVerificationInput) error {
	email := normalizeEmail(input.Email)
	if email == "" {
		return domainerrors.ErrMissingField
	}

	user, err := u.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return domainerrors.ErrAlreadyVerified
	}

	key := resendCooldownKeyPrefix + user.ID.String()
	acquired, err := acquireResendSlot(ctx, key, u.cfg.ResendCooldown)
	switch {
	case errors.Is(err, redis.ErrUnavailable):
	case err != nil:
		logger.Warn(ctx, "Resend cooldown check failed, continuing", zap.Error(err))
	case !acquired:
		return domainerrors.ErrTooManyRequests
	}

	token, err := u.issuer.Issue(ctx, user.ID)
	if err != nil {
		return err
	}

	if err := u.mailer.SendVerification(ctx, user.Email, user.Name, token); err != nil {
		if acquired {
			_ = releaseResendSlot(ctx, key)
		}
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

// GetMe returns the caller's public profile.
func (u *AuthUsecase) GetMe(ctx context.Context, userID uuid.UUID) (*entities.PublicUser, error) {
	user, err := u.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// UpdateProfile changes the caller's name and, for agents, contact details.
func (u *AuthUsecase) UpdateProfile(ctx context.Context, userID uuid.UUID, input *entities.UpdateProfileInput) (*entities.PublicUser, error) {
	user, err := u.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	patch := entities.UserPatch{Name: trimmedPtr(input.Name)}
	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, domainerrors.ErrMissingField
		}
		if err := validateIdentity(*patch.Name, ""); err != nil {
			return nil, err
		}
	}

	hasContacts := input.Phone != nil || input.WhatsApp != nil || input.Telegram != nil
	if hasContacts {
		if user.Role != entities.UserRoleAgent {
			return nil, domainerrors.BadRequest("Only agents have contact details")
		}
		merged := mergeContacts(user, input)
		contacts, err := validateAgentContacts(merged.phone, merged.whatsapp, merged.telegram)
		if err != nil {
			return nil, err
		}
		if input.Phone != nil {
			patch.Phone = strPtr(contacts.phone)
		}
		if input.WhatsApp != nil {
			patch.WhatsApp = strPtr(contacts.whatsapp)
		}
		if input.Telegram != nil {
			patch.Telegram = strPtr(contacts.telegram)
		}
	}

	if patch.IsEmpty() {
		return user.Public(), nil
	}

	updated, err := u.store.Update(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	return updated.Public(), nil
}

func mergeContacts(user *entities.User, input *entities.UpdateProfileInput) agentContacts {
	c := agentContacts{
		phone:    user.Phone.String,
		whatsapp: user.WhatsApp.String,
		telegram: user.Telegram.String,
	}
	if input.Phone != nil {
		c.phone = *input.Phone
	}
	if input.WhatsApp != nil {
		c.whatsapp = *input.WhatsApp
	}
	if input.Telegram != nil {
		c.telegram = *input.Telegram
	}
	return c
}

// ChangePassword replaces the caller's password after checking the current one.
func (u *AuthUsecase) ChangePassword(ctx context.Context, userID uuid.UUID, input *entities.ChangePasswordInput) error {
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return domainerrors.ErrMissingField
	}
	if err := validatePassword(input.NewPassword); err != nil {
		return err
	}

	user, err := u.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.CheckPassword(input.CurrentPassword, user.PasswordHash) {
		return domainerrors.ErrInvalidCredentials
	}

	if _, err := u.store.Update(ctx, userID, entities.UserPatch{Password: &input.NewPassword}); err != nil {
		return err
	}
	logger.Info(ctx, "Password changed", zap.String("user_id", userID.String()))
	return nil
}

// UserStats counts users per role.
func (u *AuthUsecase) UserStats(ctx context.Context) (*entities.RoleCounts, error) {
	var counts entities.RoleCounts
	for _, role := range entities.Roles {
		n, err := u.store.CountByRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s users: %w", role, err)
		}
		switch role {
		case entities.UserRoleStudent:
			counts.Student = n
		case entities.UserRoleAgent:
			counts.Agent = n
		case entities.UserRoleAdmin:
			counts.Admin = n
		}
	}
	return &counts, nil
}
