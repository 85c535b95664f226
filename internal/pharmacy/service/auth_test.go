package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/auth"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/service"
	"github.com/farmatrack/farmatrack-backend/pkg/config"
	apperrors "github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
	"github.com/farmatrack/farmatrack-backend/pkg/testutil"
)

type authHarness struct {
	mockDB   *testutil.MockDB
	manager  *auth.Manager
	fixtures *testutil.FixtureFactory
	service  *service.AuthService
}

func newAuthHarness(t *testing.T) *authHarness {
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", "test")

	manager := auth.NewManager(&config.JWTConfig{
		Secret:       "test-secret",
		AccessExpiry: time.Hour,
		Issuer:       "farmatrack-test",
	})

	svc := service.NewAuthService(repository.NewUserRepository(mockDB.DB), manager, log)

	return &authHarness{
		mockDB:   mockDB,
		manager:  manager,
		fixtures: testutil.NewFixtureFactory(),
		service:  svc,
	}
}

func (h *authHarness) expectUserLookup(user testutil.UserFixture) {
	h.mockDB.ExpectQuery("FROM users WHERE email").
		WithArgs(user.Email).
		WillReturnRows(testutil.MockRows("id", "name", "email", "password_hash", "created_at").
			AddRow(user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt))
}

func TestAuthService_Login(t *testing.T) {
	h := newAuthHarness(t)
	defer h.mockDB.Close()

	user := h.fixtures.User(
		testutil.WithEmail("ana@farmatrack.local"),
		testutil.WithPassword("correct-horse"),
	)
	h.expectUserLookup(user)

	result, err := h.service.Login(context.Background(), service.LoginInput{
		Email:    user.Email,
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Token)
	assert.Equal(t, user.ID, result.User.ID)

	// The issued token must round-trip through our own validator.
	claims, err := h.manager.Validate(result.Token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)

	h.mockDB.ExpectationsWereMet(t)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	h := newAuthHarness(t)
	defer h.mockDB.Close()

	user := h.fixtures.User(testutil.WithPassword("right-password"))
	h.expectUserLookup(user)

	_, err := h.service.Login(context.Background(), service.LoginInput{
		Email:    user.Email,
		Password: "wrong-password",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))

	h.mockDB.ExpectationsWereMet(t)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	h := newAuthHarness(t)
	defer h.mockDB.Close()

	h.mockDB.ExpectQuery("FROM users WHERE email").
		WithArgs("nobody@farmatrack.local").
		WillReturnRows(testutil.MockRows("id", "name", "email", "password_hash", "created_at"))

	_, err := h.service.Login(context.Background(), service.LoginInput{
		Email:    "nobody@farmatrack.local",
		Password: "whatever",
	})
	require.Error(t, err)

	// An unknown email reads exactly like a wrong password.
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))

	h.mockDB.ExpectationsWereMet(t)
}

func TestAuthService_Register(t *testing.T) {
	h := newAuthHarness(t)
	defer h.mockDB.Close()

	h.mockDB.ExpectQuery("INSERT INTO users").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	user, err := h.service.Register(context.Background(), "Ana Lima", "ana@farmatrack.local", "s3cure-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cure-pass")))

	h.mockDB.ExpectationsWereMet(t)
}

func TestAuthService_Register_ShortPassword(t *testing.T) {
	h := newAuthHarness(t)
	defer h.mockDB.Close()

	_, err := h.service.Register(context.Background(), "Ana Lima", "ana@farmatrack.local", "short")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}
