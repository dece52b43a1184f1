package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/framefind/framefind/internal/models"
	"github.com/framefind/framefind/internal/repository"
	"github.com/framefind/framefind/internal/searchclient"
)

// FailedRequestService is the write path from circuit breaker fallbacks into
// the durable retry queue, and the read path for the retry scheduler and the
// admin endpoints. It satisfies searchclient.FailureStore.
type FailedRequestService interface {
	RecordFailedEmbed(ctx context.Context, userID, folderID int64, images []searchclient.EmbedImage, cause error) error
	RecordFailedDeletion(ctx context.Context, userID, folderID int64, cause error) error
	PendingEmbeds(ctx context.Context, limit int) ([]models.FailedEmbedRequest, error)
	PendingDeletions(ctx context.Context, limit int) ([]models.FailedIndexDeletion, error)
	Stats(ctx context.Context) (*models.RetryQueueStats, error)
}

type failedRequestService struct {
	repo       repository.RetryQueueRepository
	maxRetries int
	logger     zerolog.Logger
}

// NewFailedRequestService creates a new failed request service
func NewFailedRequestService(repo repository.RetryQueueRepository, maxRetries int, logger zerolog.Logger) FailedRequestService {
	return &failedRequestService{
		repo:       repo,
		maxRetries: maxRetries,
		logger:     logger.With().Str("component", "failed_request_service").Logger(),
	}
}

// RecordFailedEmbed persists a pending embed request with its image list
// serialized into the payload column.
func (s *failedRequestService) RecordFailedEmbed(ctx context.Context, userID, folderID int64, images []searchclient.EmbedImage, cause error) error {
	refs := make([]models.FailedImageRef, len(images))
	for i, img := range images {
		refs[i] = models.FailedImageRef{ImageID: img.ImageID, FilePath: img.FilePath}
	}

	payload, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("failed to serialize embed payload: %w", err)
	}

	errMsg := cause.Error()
	row := &models.FailedEmbedRequest{
		UserID:        userID,
		FolderID:      folderID,
		ImagesPayload: string(payload),
		ImageCount:    len(images),
		ErrorMessage:  &errMsg,
	}

	if err := s.repo.CreateEmbed(ctx, row); err != nil {
		return fmt.Errorf("failed to record embed request: %w", err)
	}

	s.logger.Info().
		Int64("request_id", row.ID).
		Int64("user_id", userID).
		Int64("folder_id", folderID).
		Int("image_count", len(images)).
		Msg("Recorded failed embed request")

	return nil
}

// RecordFailedDeletion persists a pending index deletion.
func (s *failedRequestService) RecordFailedDeletion(ctx context.Context, userID, folderID int64, cause error) error {
	errMsg := cause.Error()
	row := &models.FailedIndexDeletion{
		UserID:       userID,
		FolderID:     folderID,
		ErrorMessage: &errMsg,
	}

	if err := s.repo.CreateDeletion(ctx, row); err != nil {
		return fmt.Errorf("failed to record index deletion: %w", err)
	}

	s.logger.Info().
		Int64("request_id", row.ID).
		Int64("user_id", userID).
		Int64("folder_id", folderID).
		Msg("Recorded failed index deletion")

	return nil
}

// PendingEmbeds returns retryable embed rows, oldest first.
func (s *failedRequestService) PendingEmbeds(ctx context.Context, limit int) ([]models.FailedEmbedRequest, error) {
	return s.repo.PendingEmbeds(ctx, s.maxRetries, limit)
}

// PendingDeletions returns retryable deletion rows, oldest first.
func (s *failedRequestService) PendingDeletions(ctx context.Context, limit int) ([]models.FailedIndexDeletion, error) {
	return s.repo.PendingDeletions(ctx, s.maxRetries, limit)
}

// Stats returns queue depth by kind and status.
func (s *failedRequestService) Stats(ctx context.Context) (*models.RetryQueueStats, error) {
	return s.repo.Stats(ctx)
}
