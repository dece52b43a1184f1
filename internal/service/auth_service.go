package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/framefind/framefind/internal/apperrors"
	"github.com/framefind/framefind/internal/config"
	"github.com/framefind/framefind/internal/models"
	"github.com/framefind/framefind/internal/repository"
)

// AuthService manages accounts and opaque-token sessions with sliding expiry.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Logout(ctx context.Context, token string) error

	// Validate checks a session token, extends its expiry window and returns
	// the owning user id.
	Validate(ctx context.Context, token string) (int64, error)

	// DeleteAccount removes the user, their sessions, folders, images,
	// shares and files; remote indexes are dropped best-effort.
	DeleteAccount(ctx context.Context, token string) error

	StartExpirySweeper()
	StopExpirySweeper()
}

// AuthServiceConfig holds dependencies for creating an AuthService
type AuthServiceConfig struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Folders     FolderService
	Session     config.SessionConfig
	BcryptCost  int
	DataRoot    string
	Logger      zerolog.Logger
}

type authService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	folders     FolderService
	cfg         config.SessionConfig
	bcryptCost  int
	dataRoot    string
	logger      zerolog.Logger

	sweepCtx    context.Context
	sweepCancel context.CancelFunc
	sweepWg     sync.WaitGroup
}

// NewAuthService creates a new auth service
func NewAuthService(cfg AuthServiceConfig) AuthService {
	ctx, cancel := context.WithCancel(context.Background())

	return &authService{
		userRepo:    cfg.UserRepo,
		sessionRepo: cfg.SessionRepo,
		folders:     cfg.Folders,
		cfg:         cfg.Session,
		bcryptCost:  cfg.BcryptCost,
		dataRoot:    cfg.DataRoot,
		logger:      cfg.Logger.With().Str("component", "auth_service").Logger(),
		sweepCtx:    ctx,
		sweepCancel: cancel,
	}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *authService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, apperrors.Conflict("username %q is already taken", username)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(fmt.Errorf("failed to check username: %w", err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create user: %w", err))
	}

	s.logger.Info().Int64("user_id", user.ID).Str("username", username).Msg("User registered")
	return user, nil
}

// Login verifies credentials and opens a session.
func (s *authService) Login(ctx context.Context, username, password string) (*models.Session, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid username or password")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to load user: %w", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("invalid username or password")
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to generate session token: %w", err))
	}

	now := time.Now()
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.TTL),
		LastSeen:  now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create session: %w", err))
	}

	session.User = *user
	s.logger.Info().Int64("user_id", user.ID).Msg("User logged in")
	return session, nil
}

// Logout deletes the session row.
func (s *authService) Logout(ctx context.Context, token string) error {
	if _, err := s.lookup(ctx, token); err != nil {
		return err
	}
	if err := s.sessionRepo.Delete(ctx, token); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to delete session: %w", err))
	}
	return nil
}

// Validate checks the token and slides the expiry window forward.
func (s *authService) Validate(ctx context.Context, token string) (int64, error) {
	session, err := s.lookup(ctx, token)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	if err := s.sessionRepo.Touch(ctx, token, now.Add(s.cfg.TTL), now); err != nil {
		return 0, apperrors.Internal(fmt.Errorf("failed to extend session: %w", err))
	}

	return session.UserID, nil
}

// lookup loads a session, rejecting unknown and expired tokens. Expired rows
// are deleted eagerly rather than waiting for the sweeper.
func (s *authService) lookup(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}

	session, err := s.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid or expired session")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to load session: %w", err))
	}

	if session.Expired(time.Now()) {
		if err := s.sessionRepo.Delete(ctx, token); err != nil {
			s.logger.Error().Err(err).Msg("Failed to delete expired session")
		}
		return nil, apperrors.Unauthorized("invalid or expired session")
	}

	return session, nil
}

// DeleteAccount removes the authenticated user and everything they own.
func (s *authService) DeleteAccount(ctx context.Context, token string) error {
	session, err := s.lookup(ctx, token)
	if err != nil {
		return err
	}
	userID := session.UserID

	if err := s.folders.DeleteAllOwned(ctx, userID); err != nil {
		return err
	}

	// Shares granted *to* this user by other owners are not covered by the
	// per-folder deletes above; remove them before the user row goes.
	if err := s.folders.DeleteSharesForUser(ctx, userID); err != nil {
		return err
	}

	if err := s.sessionRepo.DeleteByUser(ctx, userID); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to delete sessions: %w", err))
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to delete user: %w", err))
	}

	// The per-folder deletes already removed folder subtrees; this clears the
	// user's now-empty directory.
	dir := filepath.Join(s.dataRoot, "uploads", "images", strconv.FormatInt(userID, 10))
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Error().Err(err).Str("dir", dir).Msg("Failed to remove user files")
	}

	s.logger.Info().Int64("user_id", userID).Msg("Account deleted")
	return nil
}

// StartExpirySweeper launches the periodic expired-session purge.
func (s *authService) StartExpirySweeper() {
	s.sweepWg.Add(1)

	go func() {
		defer s.sweepWg.Done()

		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.sweepCtx.Done():
				return
			case <-ticker.C:
				deleted, err := s.sessionRepo.DeleteExpired(s.sweepCtx, time.Now())
				if err != nil {
					s.logger.Error().Err(err).Msg("Session sweep failed")
					continue
				}
				if deleted > 0 {
					s.logger.Info().Int64("deleted", deleted).Msg("Expired sessions purged")
				}
			}
		}
	}()
}

// StopExpirySweeper stops the sweeper and waits for it to exit.
func (s *authService) StopExpirySweeper() {
	s.sweepCancel()
	s.sweepWg.Wait()
}

// generateSessionToken returns a 256-bit random token, base64url-encoded.
func generateSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
