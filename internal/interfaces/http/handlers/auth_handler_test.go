package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hostel-hub.backend/internal/domain/entities"
	domainerrors "hostel-hub.backend/internal/domain/errors"
	"hostel-hub.backend/internal/interfaces/http/middleware"
	"hostel-hub.backend/internal/usecases"
)

type authServiceStub struct {
	registerFn        func(ctx context.Context, input *entities.RegisterInput) (*entities.RegisterResult, error)
	loginFn           func(ctx context.Context, input *entities.LoginInput) (*entities.AuthResponse, error)
	verifyEmailFn     func(ctx context.Context, input *entities.VerifyEmailInput) error
	verifyEmailLinkFn func(ctx context.Context, token string) error
	resendFn          func(ctx context.Context, input *entities.ResendVerificationInput) error
	getMeFn           func(ctx context.Context, userID uuid.UUID) (*entities.PublicUser, error)
	updateProfileFn   func(ctx context.Context, userID uuid.UUID, input *entities.UpdateProfileInput) (*entities.PublicUser, error)
	changePassFn      func(ctx context.Context, userID uuid.UUID, input *entities.ChangePasswordInput) error
}

func (s authServiceStub) Register(ctx context.Context, input *entities.RegisterInput) (*entities.RegisterResult, error) {
	return s.registerFn(ctx, input)
}
func (s authServiceStub) Login(ctx context.Context, input *entities.LoginInput) (*entities.AuthResponse, error) {
	return s.loginFn(ctx, input)
}
func (s authServiceStub) VerifyEmail(ctx context.Context, input *entities.VerifyEmailInput) error {
	return s.verifyEmailFn(ctx, input)
}
func (s authServiceStub) VerifyEmailLink(ctx context.Context, token string) error {
	return s.verifyEmailLinkFn(ctx, token)
}
func (s authServiceStub) ResendVerification(ctx context.Context, input *entities.ResendVerificationInput) error {
	return s.resendFn(ctx, input)
}
func (s authServiceStub) GetMe(ctx context.Context, userID uuid.UUID) (*entities.PublicUser, error) {
	return s.getMeFn(ctx, userID)
}
func (s authServiceStub) UpdateProfile(ctx context.Context, userID uuid.UUID, input *entities.UpdateProfileInput) (*entities.PublicUser, error) {
	return s.updateProfileFn(ctx, userID, input)
}
func (s authServiceStub) ChangePassword(ctx context.Context, userID uuid.UUID, input *entities.ChangePasswordInput) error {
	return s.changePassFn(ctx, userID, input)
}

// withUser stands in for the session middleware.
func withUser(id uuid.UUID, role entities.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, id)
		c.Set(middleware.UserRoleKey, role)
		c.Next()
	}
}

func newAuthRouter(h *AuthHandler, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := r.Group("/api/v1/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/verify", h.VerifyEmail)
	auth.GET("/verify-email/:token", h.VerifyEmailLink)
	auth.POST("/resend-verification", h.ResendVerification)

	me := auth.Group("")
	if userID != uuid.Nil {
		me.Use(withUser(userID, entities.UserRoleAgent))
	}
	me.GET("/me", h.GetMe)
	me.PATCH("/me", h.UpdateMe)
	me.POST("/change-password", h.ChangePassword)
	return r
}

func doJSON(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var decoded map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func TestAuthHandler_Register(t *testing.T) {
	h := NewAuthHandler(authServiceStub{
		registerFn: func(_ context.Context, input *entities.RegisterInput) (*entities.RegisterResult, error) {
			switch input.Email {
			case "exists@x.com":
				return nil, domainerrors.ErrEmailInUse
			case "boss@x.com":
				return nil, domainerrors.ErrAdminAlreadyExists
			case "":
				return nil, domainerrors.ErrMissingField
			}
			return &entities.RegisterResult{
				Message: usecases.MsgRegisteredPendingVerification,
				User:    &entities.PublicUser{ID: uuid.New(), Name: input.Name, Email: input.Email, Role: entities.UserRoleStudent},
			}, nil
		},
	})
	r := newAuthRouter(h, uuid.Nil)

	w, body := doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"name":"Ann","email":"ann@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, usecases.MsgRegisteredPendingVerification, body["message"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "student", user["role"])
	assert.NotContains(t, w.Body.String(), "password")

	w, body = doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"name":"Ann","email":"exists@x.com","password":"secret123"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domainerrors.CodeEmailInUse, body["code"])

	w, body = doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"name":"Boss","email":"boss@x.com","password":"secret123","role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, domainerrors.CodeAdminAlreadyExists, body["code"])

	w, body = doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"name":"Ann"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domainerrors.CodeMissingField, body["code"])

	w, _ = doJSON(r, http.MethodPost, "/api/v1/auth/register", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	userID := uuid.New()
	h := NewAuthHandler(authServiceStub{
		loginFn: func(_ context.Context, input *entities.LoginInput) (*entities.AuthResponse, error) {
			switch input.Email {
			case "new@x.com":
				return nil, domainerrors.ErrEmailNotVerified
			case "ann@x.com":
				return &entities.AuthResponse{Token: "session-token", User: &entities.PublicUser{ID: userID}}, nil
			case "down@x.com":
				return nil, errors.New("db down")
			}
			return nil, domainerrors.ErrInvalidCredentials
		},
	})
	r := newAuthRouter(h, uuid.Nil)

	w, body := doJSON(r, http.MethodPost, "/api/v1/auth/login", `{"email":"ann@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "session-token", body["token"])

	w, body = doJSON(r, http.MethodPost, "/api/v1/auth/login", `{"email":"new@x.com","password":"secret123"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, true, body["needsVerification"])
	assert.Equal(t, domainerrors.CodeEmailNotVerified, body["code"])

	w, body = doJSON(r, http.MethodPost, "/api/v1/auth/login", `{"email":"ghost@x.com","password":"secret123"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, body["needsVerification"])

	w, body = doJSON(r, http.MethodPost, "/api/v1/auth/login", `{"email":"down@x.com","password":"secret123"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
	assert.Equal(t, domainerrors.CodeInternalError, body["code"])
}

func TestAuthHandler_Verification(t *testing.T) {
	var gotLink string
	h := NewAuthHandler(authServiceStub{
		verifyEmailFn: func(_ context.Context, input *entities.VerifyEmailInput) error {
			if input.Token == "good" && input.Email == "ann@x.com" {
				return nil
			}
			if input.Token == "old" {
				return domainerrors.ErrTokenExpired
			}
			return domainerrors.ErrInvalidToken
		},
		verifyEmailLinkFn: func(_ context.Context, token string) error {
			gotLink = token
			if token == "abc123" {
				return nil
			}
			return domainerrors.ErrInvalidToken
		},
		resendFn: func(_ context.Context, input *entities.ResendVerificationInput) error {
			switch input.Email {
			case "ghost@x.com":
				return domainerrors.ErrNotFound
			case "done@x.com":
				return domainerrors.ErrAlreadyVerified
			case "spam@x.com":
				return domainerrors.ErrTooManyRequests
			}
			return nil
		},
	})
	r := newAuthRouter(h, uuid.Nil)

	w, body := doJSON(r, http.MethodPost, "/api/v1/auth/verify", `{"email":"ann@x.com","token":"good"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, usecases.MsgEmailVerified, body["message"])

	w, body = doJSON(r, http.MethodPost, "/api/v1/auth/verify", `{"email":"ann@x.com","token":"old"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domainerrors.CodeTokenExpired, body["code"])

	w, body = doJSON(r, http.MethodPost, "/api/v1/auth/verify", `{"email":"ann@x.com","token":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domainerrors.CodeInvalidToken, body["code"])

	w, _ = doJSON(r, http.MethodGet, "/api/v1/auth/verify-email/abc123", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", gotLink)

	w, _ = doJSON(r, http.MethodGet, "/api/v1/auth/verify-email/zzz", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	cases := map[string]int{
		"ann@x.com":   http.StatusOK,
		"ghost@x.com": http.StatusNotFound,
		"done@x.com":  http.StatusBadRequest,
		"spam@x.com":  http.StatusTooManyRequests,
	}
	for email, status := range cases {
		w, _ = doJSON(r, http.MethodPost, "/api/v1/auth/resend-verification", `{"email":"`+email+`"}`)
		assert.Equal(t, status, w.Code, email)
	}
}

func TestAuthHandler_Profile(t *testing.T) {
	userID := uuid.New()
	h := NewAuthHandler(authServiceStub{
		getMeFn: func(_ context.Context, id uuid.UUID) (*entities.PublicUser, error) {
			if id != userID {
				return nil, domainerrors.ErrNotFound
			}
			return &entities.PublicUser{ID: id, Name: "Agent", Role: entities.UserRoleAgent}, nil
		},
		updateProfileFn: func(_ context.Context, id uuid.UUID, input *entities.UpdateProfileInput) (*entities.PublicUser, error) {
			if input.Phone != nil && *input.Phone == "" {
				return nil, domainerrors.ErrPhoneRequired
			}
			return &entities.PublicUser{ID: id, Name: *input.Name, Role: entities.UserRoleAgent}, nil
		},
		changePassFn: func(_ context.Context, _ uuid.UUID, input *entities.ChangePasswordInput) error {
			if input.CurrentPassword != "old-password" {
				return domainerrors.ErrInvalidCredentials
			}
			return nil
		},
	})
	r := newAuthRouter(h, userID)

	w, body := doJSON(r, http.MethodGet, "/api/v1/auth/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Agent", body["user"].(map[string]interface{})["name"])

	w, body = doJSON(r, http.MethodPatch, "/api/v1/auth/me", `{"name":"Agent Smith"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Agent Smith", body["user"].(map[string]interface{})["name"])

	w, body = doJSON(r, http.MethodPatch, "/api/v1/auth/me", `{"name":"Agent","phone":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domainerrors.CodePhoneRequired, body["code"])

	w, body = doJSON(r, http.MethodPost, "/api/v1/auth/change-password", `{"currentPassword":"old-password","newPassword":"new-password"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, usecases.MsgPasswordChanged, body["message"])

	w, _ = doJSON(r, http.MethodPost, "/api/v1/auth/change-password", `{"currentPassword":"nope","newPassword":"new-password"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_ProfileRequiresSession(t *testing.T) {
	r := newAuthRouter(NewAuthHandler(authServiceStub{}), uuid.Nil)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/auth/me", ""},
		{http.MethodPatch, "/api/v1/auth/me", `{}`},
		{http.MethodPost, "/api/v1/auth/change-password", `{}`},
	} {
		w, body := doJSON(r, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
		assert.Equal(t, domainerrors.CodeUnauthorized, body["code"], tc.path)
	}
}

func TestAuthHandler_IncompleteIdentityIsUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/auth/me", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uuid.New())
		c.Next()
	}, NewAuthHandler(authServiceStub{}).GetMe)

	w, body := doJSON(r, http.MethodGet, "/api/v1/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, domainerrors.CodeUnauthorized, body["code"])
}
