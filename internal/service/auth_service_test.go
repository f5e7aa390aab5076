package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alx-report/report-api/internal/models"
	appErrors "github.com/alx-report/report-api/pkg/errors"
)

type tokenRepoStub struct {
	tokens map[string]*models.APIToken
}

func (s *tokenRepoStub) FindByHash(ctx context.Context, tokenHash string) (*models.APIToken, error) {
	return s.tokens[tokenHash], nil
}

type adminRepoStub struct {
	users      map[string]*models.AdminUser
	lastLogins []string
}

func (s *adminRepoStub) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	return s.users[email], nil
}

func (s *adminRepoStub) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	s.lastLogins = append(s.lastLogins, id)
	return nil
}

func newAuthService(tokens *tokenRepoStub, admins *adminRepoStub) *AuthService {
	return NewAuthService(tokens, admins, validator.New(), nil, AuthConfig{
		JWTSecret:     "test-secret",
		JWTExpiration: time.Hour,
		Issuer:        "alx-report-api",
	})
}

func TestAuthenticateTokenHappyPath(t *testing.T) {
	hash := HashToken("opaque-token")
	tokens := &tokenRepoStub{tokens: map[string]*models.APIToken{
		hash: {TokenHash: hash, UserID: 7, CompanyID: 42, Active: true},
	}}
	svc := newAuthService(tokens, &adminRepoStub{})

	principal, err := svc.AuthenticateToken(context.Background(), "opaque-token", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(7), principal.UserID)
	assert.Equal(t, int64(42), principal.CompanyID)
	assert.Equal(t, hash, principal.TokenHash)
}

func TestAuthenticateTokenRejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	expiredHash := HashToken("expired")
	inactiveHash := HashToken("inactive")
	orphanHash := HashToken("orphan")
	tokens := &tokenRepoStub{tokens: map[string]*models.APIToken{
		expiredHash:  {TokenHash: expiredHash, UserID: 1, CompanyID: 42, Active: true, ValidUntil: now.Unix() - 1},
		inactiveHash: {TokenHash: inactiveHash, UserID: 1, CompanyID: 42, Active: false},
		orphanHash:   {TokenHash: orphanHash, UserID: 1, CompanyID: 0, Active: true},
	}}
	svc := newAuthService(tokens, &adminRepoStub{})

	for _, token := range []string{"", "unknown", "expired", "inactive"} {
		_, err := svc.AuthenticateToken(context.Background(), token, now)
		require.Error(t, err, token)
		assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code, token)
	}

	_, err := svc.AuthenticateToken(context.Background(), "orphan", now)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoCompany.Code, appErrors.FromError(err).Code)
}

func TestLoginAndValidateAccessToken(t *testing.T) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	admins := &adminRepoStub{users: map[string]*models.AdminUser{
		"ops@example.com": {ID: "admin-1", Email: "ops@example.com", FullName: "Ops Admin", PasswordHash: string(passwordHash), Active: true},
	}}
	svc := newAuthService(&tokenRepoStub{}, admins)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ops@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, []string{"admin-1"}, admins.lastLogins)

	claims, err := svc.ValidateAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	admins := &adminRepoStub{users: map[string]*models.AdminUser{
		"ops@example.com": {ID: "admin-1", Email: "ops@example.com", PasswordHash: string(passwordHash), Active: true},
	}}
	svc := newAuthService(&tokenRepoStub{}, admins)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ops@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	admins := &adminRepoStub{users: map[string]*models.AdminUser{
		"ops@example.com": {ID: "admin-1", Email: "ops@example.com", PasswordHash: string(passwordHash), Active: false},
	}}
	svc := newAuthService(&tokenRepoStub{}, admins)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ops@example.com", Password: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestValidateAccessTokenRejectsTampering(t *testing.T) {
	svc := newAuthService(&tokenRepoStub{}, &adminRepoStub{})
	_, err := svc.ValidateAccessToken("not.a.jwt")
	require.Error(t, err)

	other := NewAuthService(&tokenRepoStub{}, &adminRepoStub{}, validator.New(), nil, AuthConfig{
		JWTSecret:     "different-secret",
		JWTExpiration: time.Hour,
	})
	passwordHash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	admins := &adminRepoStub{users: map[string]*models.AdminUser{
		"a@b.c": {ID: "x", Email: "a@b.c", PasswordHash: string(passwordHash), Active: true},
	}}
	issuer := newAuthService(&tokenRepoStub{}, admins)
	res, err := issuer.Login(context.Background(), models.LoginRequest{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(res.AccessToken)
	require.Error(t, err)
}
