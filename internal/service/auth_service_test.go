package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	findByEmailErr   error
	findByIDErr      error
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil || m.userByEmail.Email != email {
		return nil, appErrors.ErrNotFound
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByEmail == nil || m.userByEmail.ID != id {
		return nil, appErrors.ErrNotFound
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func newTestAuthService(t *testing.T, active bool) (*AuthService, *mockAuthRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID:           "user-1",
		Email:        "staff@example.com",
		PasswordHash: string(hash),
		FullName:     "Sam Staff",
		Role:         models.RoleStaff,
		Active:       active,
	}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "projecthub-test",
	})
	return svc, repo
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	svc, repo := newTestAuthService(t, true)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: " Staff@Example.com ", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleStaff, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	current := svc.CurrentUser(claims)
	require.NotNil(t, current)
	assert.Equal(t, models.CurrentUser{ID: "user-1", Role: models.RoleStaff, Name: "Sam Staff"}, *current)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc, _ := newTestAuthService(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	inactive, _ := newTestAuthService(t, false)
	_, err = inactive.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "password123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceLoginRepositoryError(t *testing.T) {
	svc, repo := newTestAuthService(t, true)
	repo.findByEmailErr = errors.New("db down")

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "password123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestAuthServiceValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	svc, _ := newTestAuthService(t, true)
	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "password123"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(res.AccessToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "other", Issuer: "projecthub-test"})
	_, err = other.ValidateToken(res.AccessToken)
	assert.Error(t, err)
}

func TestAuthServiceMe(t *testing.T) {
	svc, _ := newTestAuthService(t, true)

	info, err := svc.Me(context.Background(), &models.JWTClaims{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "staff@example.com", info.Email)

	_, err = svc.Me(context.Background(), &models.JWTClaims{UserID: "ghost"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	assert.Nil(t, svc.CurrentUser(nil))
}
