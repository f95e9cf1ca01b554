package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coachdesk/coachdesk-api/internal/models"
	"github.com/coachdesk/coachdesk-api/internal/service"
)

type stubUserStore struct {
	user *models.User
}

func (s *stubUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *stubUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *stubUserStore) Create(ctx context.Context, user *models.User) error {
	return nil
}

func (s *stubUserStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (s *stubUserStore) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return nil
}

func (s *stubUserStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

func newAuthRouter(store *stubUserStore, expiration time.Duration) (*gin.Engine, *service.AuthService) {
	gin.SetMode(gin.TestMode)
	authService := service.NewAuthService(store, nil, nil, service.AuthConfig{
		Secret:     "middleware-secret",
		Expiration: expiration,
		Issuer:     "coachdesk-test",
	})
	router := gin.New()
	router.GET("/protected", Auth(authService), func(c *gin.Context) {
		user := c.MustGet(ContextUserKey).(*models.User)
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	return router, authService
}

func issueTestToken(t *testing.T, store *stubUserStore, authService *service.AuthService, password string) string {
	t.Helper()
	resp, err := authService.Login(context.Background(), models.LoginRequest{Email: store.user.Email, Password: password})
	require.NoError(t, err)
	return resp.Token
}

func hashTestPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func activeTestUser(t *testing.T) *models.User {
	t.Helper()
	return &models.User{
		ID:           "user-1",
		Email:        "coach@example.com",
		PasswordHash: hashTestPassword(t, "secret1"),
		FullName:     "Coach",
		Role:         models.RoleAdmin,
		Active:       true,
	}
}

func TestAuthMissingToken(t *testing.T) {
	router, _ := newAuthRouter(&stubUserStore{}, time.Hour)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "MISSING_TOKEN")
}

func TestAuthMalformedHeader(t *testing.T) {
	router, _ := newAuthRouter(&stubUserStore{}, time.Hour)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "INVALID_TOKEN")
}

func TestAuthInvalidToken(t *testing.T) {
	router, _ := newAuthRouter(&stubUserStore{}, time.Hour)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "INVALID_TOKEN")
}

func TestAuthExpiredToken(t *testing.T) {
	store := &stubUserStore{user: activeTestUser(t)}
	router, authService := newAuthRouter(store, -time.Minute)
	token := issueTestToken(t, store, authService, "secret1")

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "TOKEN_EXPIRED")
}

func TestAuthValidToken(t *testing.T) {
	store := &stubUserStore{user: activeTestUser(t)}
	router, authService := newAuthRouter(store, time.Hour)
	token := issueTestToken(t, store, authService, "secret1")

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "user-1")
}

func TestAuthDeletedUserToken(t *testing.T) {
	store := &stubUserStore{user: activeTestUser(t)}
	router, authService := newAuthRouter(store, time.Hour)
	token := issueTestToken(t, store, authService, "secret1")

	// Token is still cryptographically valid after the account disappears.
	store.user = nil

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "UNAUTHORIZED")
}

func TestAuthInactiveUserToken(t *testing.T) {
	store := &stubUserStore{user: activeTestUser(t)}
	router, authService := newAuthRouter(store, time.Hour)
	token := issueTestToken(t, store, authService, "secret1")

	store.user.Active = false

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}
