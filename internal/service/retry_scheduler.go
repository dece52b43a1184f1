package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/framefind/framefind/internal/config"
	"github.com/framefind/framefind/internal/models"
	"github.com/framefind/framefind/internal/repository"
	"github.com/framefind/framefind/internal/searchclient"
)

// RetryScheduler periodically drains the durable retry queue, replaying
// failed embed and index-deletion requests against the search backend.
//
// It calls the backend client directly, not through the breaker-wrapped
// decorator: a replay that fails must increment the row's retry counter, not
// re-enter the fallback path and enqueue a duplicate.
type RetryScheduler interface {
	StartWorkers()
	StopWorkers()

	// RunEmbedRetries processes one batch of pending embed rows now. Exposed
	// for the admin trigger endpoint.
	RunEmbedRetries(ctx context.Context) (int, error)
	// RunDeletionRetries processes one batch of pending deletion rows now.
	RunDeletionRetries(ctx context.Context) (int, error)
}

type retryScheduler struct {
	repo        repository.RetryQueueRepository
	client      searchclient.Client
	cfg         config.RetryConfig
	callTimeout time.Duration
	logger      zerolog.Logger

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerWg     sync.WaitGroup
}

// NewRetryScheduler creates a new retry scheduler. callTimeout is the
// per-replay deadline against the backend.
func NewRetryScheduler(repo repository.RetryQueueRepository, client searchclient.Client, cfg config.RetryConfig, callTimeout time.Duration, logger zerolog.Logger) RetryScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &retryScheduler{
		repo:         repo,
		client:       client,
		cfg:          cfg,
		callTimeout:  callTimeout,
		logger:       logger.With().Str("component", "retry_scheduler").Logger(),
		workerCtx:    ctx,
		workerCancel: cancel,
	}
}

// graceContext derives a call context with the per-call deadline that, when
// the parent is cancelled (shutdown), still allows the in-flight call the
// configured grace period to finish.
func graceContext(parent context.Context, timeout, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	stop := context.AfterFunc(parent, func() {
		time.AfterFunc(grace, cancel)
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

// StartWorkers launches the two independent retry loops.
func (s *retryScheduler) StartWorkers() {
	s.workerWg.Add(2)

	go func() {
		defer s.workerWg.Done()
		s.logger.Info().Dur("interval", s.cfg.EmbedInterval).Msg("Embed retry worker started")

		ticker := time.NewTicker(s.cfg.EmbedInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.workerCtx.Done():
				s.logger.Info().Msg("Embed retry worker stopped")
				return
			case <-ticker.C:
				if _, err := s.RunEmbedRetries(s.workerCtx); err != nil {
					s.logger.Error().Err(err).Msg("Embed retry pass failed")
				}
				// Cleanup rides on the embed tick; it only prunes old
				// succeeded rows.
				if err := s.repo.CleanupSucceeded(s.workerCtx, s.cfg.Retention); err != nil {
					s.logger.Error().Err(err).Msg("Retry queue cleanup failed")
				}
			}
		}
	}()

	go func() {
		defer s.workerWg.Done()
		s.logger.Info().Dur("interval", s.cfg.DeleteInterval).Msg("Index deletion retry worker started")

		ticker := time.NewTicker(s.cfg.DeleteInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.workerCtx.Done():
				s.logger.Info().Msg("Index deletion retry worker stopped")
				return
			case <-ticker.C:
				if _, err := s.RunDeletionRetries(s.workerCtx); err != nil {
					s.logger.Error().Err(err).Msg("Index deletion retry pass failed")
				}
			}
		}
	}()
}

// StopWorkers stops both loops and waits for them to exit.
func (s *retryScheduler) StopWorkers() {
	s.workerCancel()
	s.workerWg.Wait()
}

// RunEmbedRetries drains up to one batch of pending embed rows in insertion
// order, checking for shutdown between rows.
func (s *retryScheduler) RunEmbedRetries(ctx context.Context) (int, error) {
	rows, err := s.repo.PendingEmbeds(ctx, s.cfg.MaxAttempts, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending embed requests: %w", err)
	}

	processed := 0
	for _, row := range rows {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		s.processEmbed(ctx, row)
		processed++
	}

	if processed > 0 {
		s.logger.Info().Int("processed", processed).Msg("Embed retry pass completed")
	}
	return processed, nil
}

// RunDeletionRetries drains up to one batch of pending deletion rows.
func (s *retryScheduler) RunDeletionRetries(ctx context.Context) (int, error) {
	rows, err := s.repo.PendingDeletions(ctx, s.cfg.MaxAttempts, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending index deletions: %w", err)
	}

	processed := 0
	for _, row := range rows {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		s.processDeletion(ctx, row)
		processed++
	}

	if processed > 0 {
		s.logger.Info().Int("processed", processed).Msg("Index deletion retry pass completed")
	}
	return processed, nil
}

// processEmbed claims and replays one embed row. Rows another loop claimed
// first are skipped silently.
func (s *retryScheduler) processEmbed(ctx context.Context, row models.FailedEmbedRequest) {
	claimed, err := s.repo.ClaimEmbed(ctx, row.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("request_id", row.ID).Msg("Failed to claim embed request")
		return
	}
	if !claimed {
		return
	}

	var refs []models.FailedImageRef
	if err := json.Unmarshal([]byte(row.ImagesPayload), &refs); err != nil {
		// Unreadable payloads can never succeed; record the failed attempt so
		// the row moves towards failed like any other replay failure.
		s.logger.Error().Err(err).Int64("request_id", row.ID).Msg("Corrupt embed payload")
		s.markEmbedFailure(ctx, row.ID, fmt.Errorf("corrupt payload: %w", err))
		return
	}

	images := make([]searchclient.EmbedImage, len(refs))
	for i, ref := range refs {
		images[i] = searchclient.EmbedImage{ImageID: ref.ImageID, FilePath: ref.FilePath}
	}

	callCtx, cancel := graceContext(ctx, s.callTimeout, s.cfg.ShutdownGrace)
	err = s.client.EmbedImages(callCtx, &searchclient.EmbedRequest{
		UserID:   row.UserID,
		FolderID: row.FolderID,
		Images:   images,
	})
	cancel()

	// Status updates must land even when shutdown cancelled the worker
	// context mid-call, or the row would be stranded in_progress.
	updCtx := context.WithoutCancel(ctx)

	if err != nil {
		s.logger.Warn().Err(err).
			Int64("request_id", row.ID).
			Int("retry_count", row.RetryCount+1).
			Msg("Embed retry attempt failed")
		s.markEmbedFailure(updCtx, row.ID, err)
		return
	}

	if err := s.repo.MarkEmbedSucceeded(updCtx, row.ID); err != nil {
		s.logger.Error().Err(err).Int64("request_id", row.ID).Msg("Failed to mark embed request succeeded")
		return
	}

	s.logger.Info().
		Int64("request_id", row.ID).
		Int64("folder_id", row.FolderID).
		Int("image_count", row.ImageCount).
		Msg("Embed request replayed successfully")
}

// processDeletion claims and replays one deletion row.
func (s *retryScheduler) processDeletion(ctx context.Context, row models.FailedIndexDeletion) {
	claimed, err := s.repo.ClaimDeletion(ctx, row.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("request_id", row.ID).Msg("Failed to claim index deletion")
		return
	}
	if !claimed {
		return
	}

	callCtx, cancel := graceContext(ctx, s.callTimeout, s.cfg.ShutdownGrace)
	err = s.client.DeleteIndex(callCtx, row.UserID, row.FolderID)
	cancel()

	updCtx := context.WithoutCancel(ctx)

	if err != nil {
		s.logger.Warn().Err(err).
			Int64("request_id", row.ID).
			Int("retry_count", row.RetryCount+1).
			Msg("Index deletion retry attempt failed")
		if markErr := s.repo.MarkDeletionFailedAttempt(updCtx, row.ID, s.cfg.MaxAttempts, err.Error()); markErr != nil {
			s.logger.Error().Err(markErr).Int64("request_id", row.ID).Msg("Failed to record deletion attempt")
		}
		return
	}

	if err := s.repo.MarkDeletionSucceeded(updCtx, row.ID); err != nil {
		s.logger.Error().Err(err).Int64("request_id", row.ID).Msg("Failed to mark index deletion succeeded")
		return
	}

	s.logger.Info().
		Int64("request_id", row.ID).
		Int64("folder_id", row.FolderID).
		Msg("Index deletion replayed successfully")
}

func (s *retryScheduler) markEmbedFailure(ctx context.Context, id int64, cause error) {
	if err := s.repo.MarkEmbedFailedAttempt(ctx, id, s.cfg.MaxAttempts, cause.Error()); err != nil {
		s.logger.Error().Err(err).Int64("request_id", id).Msg("Failed to record embed attempt")
	}
}
