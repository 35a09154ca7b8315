package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type mockAuthRepo struct {
	usersByLogin     map[string]*models.User
	refreshTokens    map[string]*models.RefreshToken
	created          []*models.User
	lastLoginUpdated bool
	revokedAllFor    []string
}

func (m *mockAuthRepo) FindByLoginID(ctx context.Context, loginID string) (*models.User, error) {
	if user, ok := m.usersByLogin[loginID]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, user := range m.usersByLogin {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.usersByLogin == nil {
		m.usersByLogin = map[string]*models.User{}
	}
	m.usersByLogin[user.LoginID] = user
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	for _, user := range m.usersByLogin {
		if user.ID == id {
			user.PasswordHash = passwordHash
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = map[string]*models.RefreshToken{}
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := m.refreshTokens[token]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func newAuthFixture(users ...*models.User) (*AuthService, *mockAuthRepo) {
	repo := &mockAuthRepo{usersByLogin: map[string]*models.User{}}
	for _, user := range users {
		repo.usersByLogin[user.LoginID] = user
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour * 24,
	})
	return svc, repo
}

func approvedInstructor(t *testing.T) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "inst-1",
		LoginID:      "teach01",
		PasswordHash: string(hash),
		Name:         "Prof. Lee",
		Role:         models.RoleInstructor,
		Approved:     true,
		Active:       true,
	}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	svc, repo := newAuthFixture(approvedInstructor(t))

	res, err := svc.Login(context.Background(), models.LoginRequest{LoginID: "teach01", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "teach01", res.User.LoginID)
	assert.Equal(t, models.RoleInstructor, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "inst-1", claims.UserID)
	assert.Equal(t, models.RoleInstructor, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(approvedInstructor(t))

	_, err := svc.Login(context.Background(), models.LoginRequest{LoginID: "teach01", Password: "nope"})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginUnknownLoginID(t *testing.T) {
	svc, _ := newAuthFixture()

	_, err := svc.Login(context.Background(), models.LoginRequest{LoginID: "ghost", Password: "password"})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginPendingApproval(t *testing.T) {
	user := approvedInstructor(t)
	user.Approved = false
	svc, _ := newAuthFixture(user)

	_, err := svc.Login(context.Background(), models.LoginRequest{LoginID: "teach01", Password: "password"})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPendingApproval.Code, appErr.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := approvedInstructor(t)
	user.Active = false
	svc, _ := newAuthFixture(user)

	_, err := svc.Login(context.Background(), models.LoginRequest{LoginID: "teach01", Password: "password"})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceRegisterCreatesPendingAccount(t *testing.T) {
	svc, repo := newAuthFixture()

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		LoginID:  "stud01",
		Password: "password",
		Name:     "Kim",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)
	assert.False(t, user.Approved)
	assert.True(t, user.Active)
	assert.NotEmpty(t, user.ID)
	require.Len(t, repo.created, 1)
	assert.NotEqual(t, "password", repo.created[0].PasswordHash)
}

func TestAuthServiceRegisterRejectsDuplicateLoginID(t *testing.T) {
	svc, _ := newAuthFixture(approvedInstructor(t))

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		LoginID:  "teach01",
		Password: "password",
		Name:     "Impostor",
		Role:     models.RoleInstructor,
	})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthServiceRegisterRejectsSuperAdminRole(t *testing.T) {
	svc, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		LoginID:  "boss",
		Password: "password",
		Name:     "Boss",
		Role:     models.RoleSuperAdmin,
	})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	svc, repo := newAuthFixture(approvedInstructor(t))

	login, err := svc.Login(context.Background(), models.LoginRequest{LoginID: "teach01", Password: "password"})
	require.NoError(t, err)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, res.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceLogoutRevokesToken(t *testing.T) {
	svc, repo := newAuthFixture(approvedInstructor(t))

	login, err := svc.Login(context.Background(), models.LoginRequest{LoginID: "teach01", Password: "password"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, "inst-1"))
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	svc, _ := newAuthFixture(approvedInstructor(t))

	login, err := svc.Login(context.Background(), models.LoginRequest{LoginID: "teach01", Password: "password"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "someone-else")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	svc, repo := newAuthFixture(approvedInstructor(t))

	err := svc.ChangePassword(context.Background(), "inst-1", models.ChangePasswordRequest{
		CurrentPassword: "password",
		NewPassword:     "stronger-secret",
	})
	require.NoError(t, err)
	assert.Contains(t, repo.revokedAllFor, "inst-1")

	_, err = svc.Login(context.Background(), models.LoginRequest{LoginID: "teach01", Password: "stronger-secret"})
	require.NoError(t, err)
}

func TestAuthServiceChangePasswordWrongCurrent(t *testing.T) {
	svc, _ := newAuthFixture(approvedInstructor(t))

	err := svc.ChangePassword(context.Background(), "inst-1", models.ChangePasswordRequest{
		CurrentPassword: "nope",
		NewPassword:     "stronger-secret",
	})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture()

	_, err := svc.ValidateToken("not-a-jwt")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
