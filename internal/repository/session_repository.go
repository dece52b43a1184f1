package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/framefind/framefind/internal/models"
)

// SessionRepository handles database operations for login sessions
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	Touch(ctx context.Context, token string, expiresAt, lastSeen time.Time) error
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) SessionRepository {
	repo := &sessionRepository{db: db}

	// Ensure tables exist
	if err := db.AutoMigrate(&models.Session{}); err != nil {
		log.Printf("Warning: Failed to auto-migrate sessions table: %v", err)
	}

	return repo
}

// Create inserts a new session row
func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetByToken retrieves a session by its token
func (r *sessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	result := r.db.WithContext(ctx).Where("token = ?", token).First(&session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &session, nil
}

// Touch extends the session's sliding expiry window
func (r *sessionRepository) Touch(ctx context.Context, token string, expiresAt, lastSeen time.Time) error {
	updates := map[string]interface{}{
		"expires_at": expiresAt,
		"last_seen":  lastSeen,
	}
	return r.db.WithContext(ctx).Model(&models.Session{}).Where("token = ?", token).Updates(updates).Error
}

// Delete removes a session row
func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error
}

// DeleteByUser removes all sessions belonging to a user
func (r *sessionRepository) DeleteByUser(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{}).Error
}

// DeleteExpired removes sessions past their expiry and returns the count
func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}
