package repository

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/framefind/framefind/internal/models"
)

// RetryQueueRepository handles database operations for the durable retry
// queue backing failed embed and index-deletion requests. Status transitions
// are single-statement updates predicated on the current status so that
// concurrent retry loops cannot double-process a row.
type RetryQueueRepository interface {
	// Embed requests
	CreateEmbed(ctx context.Context, req *models.FailedEmbedRequest) error
	PendingEmbeds(ctx context.Context, maxRetries, limit int) ([]models.FailedEmbedRequest, error)
	ClaimEmbed(ctx context.Context, id int64) (bool, error)
	MarkEmbedSucceeded(ctx context.Context, id int64) error
	MarkEmbedFailedAttempt(ctx context.Context, id int64, maxRetries int, errMsg string) error

	// Index deletions
	CreateDeletion(ctx context.Context, req *models.FailedIndexDeletion) error
	PendingDeletions(ctx context.Context, maxRetries, limit int) ([]models.FailedIndexDeletion, error)
	ClaimDeletion(ctx context.Context, id int64) (bool, error)
	MarkDeletionSucceeded(ctx context.Context, id int64) error
	MarkDeletionFailedAttempt(ctx context.Context, id int64, maxRetries int, errMsg string) error

	// Maintenance
	Stats(ctx context.Context) (*models.RetryQueueStats, error)
	CleanupSucceeded(ctx context.Context, olderThan time.Duration) error
}

type retryQueueRepository struct {
	db *gorm.DB
}

// NewRetryQueueRepository creates a new retry queue repository
func NewRetryQueueRepository(db *gorm.DB) RetryQueueRepository {
	repo := &retryQueueRepository{db: db}

	// Ensure tables exist
	if err := db.AutoMigrate(&models.FailedEmbedRequest{}, &models.FailedIndexDeletion{}); err != nil {
		log.Printf("Warning: Failed to auto-migrate retry queue tables: %v", err)
	}

	return repo
}

// CreateEmbed inserts a pending failed embed request
func (r *retryQueueRepository) CreateEmbed(ctx context.Context, req *models.FailedEmbedRequest) error {
	req.Status = models.StatusPending
	req.RetryCount = 0
	return r.db.WithContext(ctx).Create(req).Error
}

// PendingEmbeds loads pending embed rows with retries left, oldest first
func (r *retryQueueRepository) PendingEmbeds(ctx context.Context, maxRetries, limit int) ([]models.FailedEmbedRequest, error) {
	var rows []models.FailedEmbedRequest
	result := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", models.StatusPending, maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return rows, nil
}

// ClaimEmbed transitions a pending row to in_progress. Returns false when
// another loop claimed it first.
func (r *retryQueueRepository) ClaimEmbed(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.FailedEmbedRequest{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Update("status", models.StatusInProgress)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkEmbedSucceeded moves a claimed row to its terminal succeeded status
func (r *retryQueueRepository) MarkEmbedSucceeded(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&models.FailedEmbedRequest{}).
		Where("id = ? AND status = ?", id, models.StatusInProgress).
		Update("status", models.StatusSucceeded).Error
}

// MarkEmbedFailedAttempt records a failed attempt on a claimed row: the retry
// counter is incremented and the row goes back to pending, or to failed once
// the counter reaches maxRetries.
func (r *retryQueueRepository) MarkEmbedFailedAttempt(ctx context.Context, id int64, maxRetries int, errMsg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.FailedEmbedRequest{}).
		Where("id = ? AND status = ?", id, models.StatusInProgress).
		Updates(map[string]interface{}{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_retry_at": now,
			"error_message": errMsg,
			"status": gorm.Expr(
				"CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END",
				maxRetries, string(models.StatusFailed), string(models.StatusPending),
			),
		}).Error
}

// CreateDeletion inserts a pending failed index deletion
func (r *retryQueueRepository) CreateDeletion(ctx context.Context, req *models.FailedIndexDeletion) error {
	req.Status = models.StatusPending
	req.RetryCount = 0
	return r.db.WithContext(ctx).Create(req).Error
}

// PendingDeletions loads pending deletion rows with retries left, oldest first
func (r *retryQueueRepository) PendingDeletions(ctx context.Context, maxRetries, limit int) ([]models.FailedIndexDeletion, error) {
	var rows []models.FailedIndexDeletion
	result := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", models.StatusPending, maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return rows, nil
}

// ClaimDeletion transitions a pending row to in_progress
func (r *retryQueueRepository) ClaimDeletion(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.FailedIndexDeletion{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Update("status", models.StatusInProgress)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkDeletionSucceeded moves a claimed row to its terminal succeeded status
func (r *retryQueueRepository) MarkDeletionSucceeded(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&models.FailedIndexDeletion{}).
		Where("id = ? AND status = ?", id, models.StatusInProgress).
		Update("status", models.StatusSucceeded).Error
}

// MarkDeletionFailedAttempt records a failed attempt on a claimed row
func (r *retryQueueRepository) MarkDeletionFailedAttempt(ctx context.Context, id int64, maxRetries int, errMsg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.FailedIndexDeletion{}).
		Where("id = ? AND status = ?", id, models.StatusInProgress).
		Updates(map[string]interface{}{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_retry_at": now,
			"error_message": errMsg,
			"status": gorm.Expr(
				"CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END",
				maxRetries, string(models.StatusFailed), string(models.StatusPending),
			),
		}).Error
}

// Stats counts queue rows by kind and status
func (r *retryQueueRepository) Stats(ctx context.Context) (*models.RetryQueueStats, error) {
	stats := &models.RetryQueueStats{}

	type kindCount struct {
		Status models.RequestStatus
		Count  int64
	}

	var embedCounts []kindCount
	result := r.db.WithContext(ctx).
		Model(&models.FailedEmbedRequest{}).
		Select("status", "count(*) as count").
		Group("status").
		Scan(&embedCounts)
	if result.Error != nil {
		return nil, result.Error
	}
	for _, row := range embedCounts {
		switch row.Status {
		case models.StatusPending, models.StatusInProgress:
			stats.PendingEmbeds += row.Count
		case models.StatusFailed:
			stats.FailedEmbeds += row.Count
		}
	}

	var deletionCounts []kindCount
	result = r.db.WithContext(ctx).
		Model(&models.FailedIndexDeletion{}).
		Select("status", "count(*) as count").
		Group("status").
		Scan(&deletionCounts)
	if result.Error != nil {
		return nil, result.Error
	}
	for _, row := range deletionCounts {
		switch row.Status {
		case models.StatusPending, models.StatusInProgress:
			stats.PendingIndexDeletions += row.Count
		case models.StatusFailed:
			stats.FailedIndexDeletions += row.Count
		}
	}

	return stats, nil
}

// CleanupSucceeded deletes succeeded rows older than the retention window to
// keep both tables bounded
func (r *retryQueueRepository) CleanupSucceeded(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)

	result := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.StatusSucceeded, cutoff).
		Delete(&models.FailedEmbedRequest{})
	if result.Error != nil {
		return result.Error
	}

	return r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.StatusSucceeded, cutoff).
		Delete(&models.FailedIndexDeletion{}).Error
}
