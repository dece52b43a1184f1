package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/framefind/framefind/internal/apperrors"
	"github.com/framefind/framefind/internal/config"
	"github.com/framefind/framefind/internal/models"
	"github.com/framefind/framefind/internal/repository"
)

func newTestAuthService(t *testing.T, users *mockUserRepository, sessions *mockSessionRepository, folders *mockFolderService) AuthService {
	t.Helper()
	return NewAuthService(AuthServiceConfig{
		UserRepo:    users,
		SessionRepo: sessions,
		Folders:     folders,
		Session: config.SessionConfig{
			TTL:           24 * time.Hour,
			SweepInterval: time.Hour,
		},
		BcryptCost: bcrypt.MinCost, // keep the tests fast
		DataRoot:   t.TempDir(),
		Logger:     zerolog.Nop(),
	})
}

func TestAuthService_RegisterHashesPassword(t *testing.T) {
	users := new(mockUserRepository)
	sessions := new(mockSessionRepository)
	svc := newTestAuthService(t, users, sessions, new(mockFolderService))

	users.On("GetByUsername", mock.Anything, "alice").Return(nil, repository.ErrNotFound)
	users.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) {
			user := args.Get(1).(*models.User)
			user.ID = 1
			assert.NotEqual(t, "pw123", user.PasswordHash)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw123")))
		}).Return(nil)

	user, err := svc.Register(context.Background(), "alice", "pw123")

	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "alice", user.Username)
}

func TestAuthService_RegisterDuplicateUsernameConflicts(t *testing.T) {
	users := new(mockUserRepository)
	sessions := new(mockSessionRepository)
	svc := newTestAuthService(t, users, sessions, new(mockFolderService))

	users.On("GetByUsername", mock.Anything, "alice").Return(&models.User{ID: 1, Username: "alice"}, nil)

	_, err := svc.Register(context.Background(), "alice", "pw123")

	require.Error(t, err)
	assert.Equal(t, 409, apperrors.Status(err))
	users.AssertNotCalled(t, "Create")
}

func TestAuthService_LoginIssuesOpaqueToken(t *testing.T) {
	users := new(mockUserRepository)
	sessions := new(mockSessionRepository)
	svc := newTestAuthService(t, users, sessions, new(mockFolderService))

	hash, err := bcrypt.GenerateFromPassword([]byte("pw123"), bcrypt.MinCost)
	require.NoError(t, err)
	users.On("GetByUsername", mock.Anything, "alice").
		Return(&models.User{ID: 1, Username: "alice", PasswordHash: string(hash)}, nil)

	var created *models.Session
	sessions.On("Create", mock.Anything, mock.AnythingOfType("*models.Session")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*models.Session)
		}).Return(nil)

	session, err := svc.Login(context.Background(), "alice", "pw123")

	require.NoError(t, err)
	assert.Equal(t, int64(1), session.UserID)
	// 32 random bytes base64url-encoded: 43 characters, no padding.
	assert.Len(t, session.Token, 43)
	assert.True(t, created.ExpiresAt.After(time.Now().Add(23*time.Hour)))
}

func TestAuthService_LoginRejectsBadCredentials(t *testing.T) {
	users := new(mockUserRepository)
	sessions := new(mockSessionRepository)
	svc := newTestAuthService(t, users, sessions, new(mockFolderService))

	hash, _ := bcrypt.GenerateFromPassword([]byte("pw123"), bcrypt.MinCost)
	users.On("GetByUsername", mock.Anything, "alice").
		Return(&models.User{ID: 1, Username: "alice", PasswordHash: string(hash)}, nil)
	users.On("GetByUsername", mock.Anything, "nobody").Return(nil, repository.ErrNotFound)

	_, err := svc.Login(context.Background(), "alice", "wrong")
	assert.Equal(t, 401, apperrors.Status(err))

	_, err = svc.Login(context.Background(), "nobody", "pw123")
	assert.Equal(t, 401, apperrors.Status(err))
}

func TestAuthService_ValidateExtendsSlidingWindow(t *testing.T) {
	users := new(mockUserRepository)
	sessions := new(mockSessionRepository)
	svc := newTestAuthService(t, users, sessions, new(mockFolderService))

	now := time.Now()
	sessions.On("GetByToken", mock.Anything, "tok").Return(&models.Session{
		Token:     "tok",
		UserID:    7,
		ExpiresAt: now.Add(time.Hour),
		LastSeen:  now.Add(-time.Hour),
	}, nil)
	sessions.On("Touch", mock.Anything, "tok",
		mock.MatchedBy(func(expiresAt time.Time) bool {
			// Extended to roughly now + TTL.
			return expiresAt.After(now.Add(23 * time.Hour))
		}),
		mock.AnythingOfType("time.Time"),
	).Return(nil)

	userID, err := svc.Validate(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
	sessions.AssertExpectations(t)
}

func TestAuthService_ValidateRejectsExpiredAndUnknown(t *testing.T) {
	users := new(mockUserRepository)
	sessions := new(mockSessionRepository)
	svc := newTestAuthService(t, users, sessions, new(mockFolderService))

	sessions.On("GetByToken", mock.Anything, "expired").Return(&models.Session{
		Token:     "expired",
		UserID:    7,
		ExpiresAt: time.Now().Add(-time.Minute),
	}, nil)
	sessions.On("Delete", mock.Anything, "expired").Return(nil)
	sessions.On("GetByToken", mock.Anything, "unknown").Return(nil, repository.ErrNotFound)

	_, err := svc.Validate(context.Background(), "expired")
	assert.Equal(t, 401, apperrors.Status(err))
	// Expired rows are deleted eagerly.
	sessions.AssertCalled(t, "Delete", mock.Anything, "expired")

	_, err = svc.Validate(context.Background(), "unknown")
	assert.Equal(t, 401, apperrors.Status(err))

	_, err = svc.Validate(context.Background(), "")
	assert.Equal(t, 401, apperrors.Status(err))
}

func TestAuthService_DeleteAccountCascades(t *testing.T) {
	users := new(mockUserRepository)
	sessions := new(mockSessionRepository)
	folders := new(mockFolderService)
	svc := newTestAuthService(t, users, sessions, folders)

	now := time.Now()
	sessions.On("GetByToken", mock.Anything, "tok").Return(&models.Session{
		Token: "tok", UserID: 7, ExpiresAt: now.Add(time.Hour),
	}, nil)
	folders.On("DeleteAllOwned", mock.Anything, int64(7)).Return(nil)
	folders.On("DeleteSharesForUser", mock.Anything, int64(7)).Return(nil)
	sessions.On("DeleteByUser", mock.Anything, int64(7)).Return(nil)
	users.On("Delete", mock.Anything, int64(7)).Return(nil)

	err := svc.DeleteAccount(context.Background(), "tok")

	require.NoError(t, err)
	folders.AssertExpectations(t)
	sessions.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestAuthService_DeleteAccountClearsReceivedSharesBeforeUserRow(t *testing.T) {
	users := new(mockUserRepository)
	sessions := new(mockSessionRepository)
	folders := new(mockFolderService)
	svc := newTestAuthService(t, users, sessions, folders)

	// User 7 owns nothing but is the recipient of a share on someone else's
	// folder; the share cleanup must run before the user row is deleted.
	sessions.On("GetByToken", mock.Anything, "tok").Return(&models.Session{
		Token: "tok", UserID: 7, ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	folders.On("DeleteAllOwned", mock.Anything, int64(7)).Return(nil)

	sharesCleared := false
	folders.On("DeleteSharesForUser", mock.Anything, int64(7)).Run(func(args mock.Arguments) {
		sharesCleared = true
	}).Return(nil)
	sessions.On("DeleteByUser", mock.Anything, int64(7)).Return(nil)
	users.On("Delete", mock.Anything, int64(7)).Run(func(args mock.Arguments) {
		assert.True(t, sharesCleared, "share cleanup must run before the user row is deleted")
	}).Return(nil)

	err := svc.DeleteAccount(context.Background(), "tok")

	require.NoError(t, err)
	folders.AssertCalled(t, "DeleteSharesForUser", mock.Anything, int64(7))
	users.AssertCalled(t, "Delete", mock.Anything, int64(7))
}

func TestAuthService_LogoutDeletesSession(t *testing.T) {
	users := new(mockUserRepository)
	sessions := new(mockSessionRepository)
	svc := newTestAuthService(t, users, sessions, new(mockFolderService))

	sessions.On("GetByToken", mock.Anything, "tok").Return(&models.Session{
		Token: "tok", UserID: 7, ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	sessions.On("Delete", mock.Anything, "tok").Return(nil)

	require.NoError(t, svc.Logout(context.Background(), "tok"))
	sessions.AssertCalled(t, "Delete", mock.Anything, "tok")
}
