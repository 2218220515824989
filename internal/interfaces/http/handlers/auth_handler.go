package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"hostel-hub.backend/internal/domain/entities"
	domainerrors "hostel-hub.backend/internal/domain/errors"
	"hostel-hub.backend/internal/interfaces/http/middleware"
	"hostel-hub.backend/internal/interfaces/http/response"
	"hostel-hub.backend/internal/usecases"
)

type authService interface {
	Register(ctx context.Context, input *entities.RegisterInput) (*entities.RegisterResult, error)
	Login(ctx context.Context, input *entities.LoginInput) (*entities.AuthResponse, error)
	VerifyEmail(ctx context.Context, input *entities.VerifyEmailInput) error
	VerifyEmailLink(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, input *entities.ResendVerificationInput) error
	GetMe(ctx context.Context, userID uuid.UUID) (*entities.PublicUser, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input *entities.UpdateProfileInput) (*entities.PublicUser, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, input *entities.ChangePasswordInput) error
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService authService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService authService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid request body"))
		return false
	}
	return true
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Unauthorized"))
		return uuid.Nil, false
	}
	return user.ID, true
}

// Register handles user registration
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var input entities.RegisterInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input entities.LoginInput
	if !bindJSON(c, &input) {
		return
	}

	authResponse, err := h.authService.Login(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, authResponse)
}

// VerifyEmail handles verification with a pasted code
// POST /api/v1/auth/verify
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var input entities.VerifyEmailInput
	if !bindJSON(c, &input) {
		return
	}

	if err := h.authService.VerifyEmail(c.Request.Context(), &input); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, usecases.MsgEmailVerified)
}

// VerifyEmailLink handles the link sent by email
// GET /api/v1/auth/verify-email/:token
func (h *AuthHandler) VerifyEmailLink(c *gin.Context) {
	if err := h.authService.VerifyEmailLink(c.Request.Context(), c.Param("token")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, usecases.MsgEmailVerified)
}

// ResendVerification mails a fresh verification token
// POST /api/v1/auth/resend-verification
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var input entities.ResendVerificationInput
	if !bindJSON(c, &input) {
		return
	}

	if err := h.authService.ResendVerification(c.Request.Context(), &input); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, usecases.MsgVerificationResent)
}

// GetMe returns the current user
// GET /api/v1/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.authService.GetMe(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// UpdateMe updates the current user's profile
// PATCH /api/v1/auth/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var input entities.UpdateProfileInput
	if !bindJSON(c, &input) {
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// ChangePassword handles password change for the authenticated user
// POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var input entities.ChangePasswordInput
	if !bindJSON(c, &input) {
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), userID, &input); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, usecases.MsgPasswordChanged)
}
