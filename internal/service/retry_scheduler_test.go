package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/framefind/framefind/internal/config"
	"github.com/framefind/framefind/internal/models"
	"github.com/framefind/framefind/internal/searchclient"
)

func testRetryConfig() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:    5,
		EmbedInterval:  time.Minute,
		DeleteInterval: 5 * time.Minute,
		BatchSize:      50,
		Retention:      7 * 24 * time.Hour,
		ShutdownGrace:  time.Second,
	}
}

func newTestScheduler(repo *mockRetryQueueRepository, client *mockSearchClient) RetryScheduler {
	return NewRetryScheduler(repo, client, testRetryConfig(), time.Second, zerolog.Nop())
}

func pendingEmbedRow(id int64, retries int) models.FailedEmbedRequest {
	return models.FailedEmbedRequest{
		ID:            id,
		UserID:        1,
		FolderID:      2,
		ImagesPayload: `[{"image_id":10,"file_path":"images/1/2/a.jpg"}]`,
		ImageCount:    1,
		Status:        models.StatusPending,
		RetryCount:    retries,
	}
}

func TestRetryScheduler_EmbedReplaySucceeds(t *testing.T) {
	repo := new(mockRetryQueueRepository)
	client := new(mockSearchClient)

	repo.On("PendingEmbeds", mock.Anything, 5, 50).
		Return([]models.FailedEmbedRequest{pendingEmbedRow(1, 0)}, nil)
	repo.On("ClaimEmbed", mock.Anything, int64(1)).Return(true, nil)
	client.On("EmbedImages", mock.Anything, mock.MatchedBy(func(req *searchclient.EmbedRequest) bool {
		return req.UserID == 1 && req.FolderID == 2 &&
			len(req.Images) == 1 && req.Images[0].ImageID == 10
	})).Return(nil)
	repo.On("MarkEmbedSucceeded", mock.Anything, int64(1)).Return(nil)

	processed, err := newTestScheduler(repo, client).RunEmbedRetries(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	repo.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestRetryScheduler_EmbedReplayFailureCountsAttempt(t *testing.T) {
	repo := new(mockRetryQueueRepository)
	client := new(mockSearchClient)

	repo.On("PendingEmbeds", mock.Anything, 5, 50).
		Return([]models.FailedEmbedRequest{pendingEmbedRow(1, 2)}, nil)
	repo.On("ClaimEmbed", mock.Anything, int64(1)).Return(true, nil)
	client.On("EmbedImages", mock.Anything, mock.Anything).Return(errors.New("still down"))
	repo.On("MarkEmbedFailedAttempt", mock.Anything, int64(1), 5, "still down").Return(nil)

	_, err := newTestScheduler(repo, client).RunEmbedRetries(context.Background())

	require.NoError(t, err)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "MarkEmbedSucceeded", mock.Anything, mock.Anything)
}

func TestRetryScheduler_SkipsRowsClaimedElsewhere(t *testing.T) {
	repo := new(mockRetryQueueRepository)
	client := new(mockSearchClient)

	repo.On("PendingEmbeds", mock.Anything, 5, 50).
		Return([]models.FailedEmbedRequest{pendingEmbedRow(1, 0)}, nil)
	repo.On("ClaimEmbed", mock.Anything, int64(1)).Return(false, nil)

	_, err := newTestScheduler(repo, client).RunEmbedRetries(context.Background())

	require.NoError(t, err)
	client.AssertNotCalled(t, "EmbedImages")
}

func TestRetryScheduler_CorruptPayloadBurnsAttempt(t *testing.T) {
	repo := new(mockRetryQueueRepository)
	client := new(mockSearchClient)

	row := pendingEmbedRow(1, 0)
	row.ImagesPayload = "{not json"

	repo.On("PendingEmbeds", mock.Anything, 5, 50).Return([]models.FailedEmbedRequest{row}, nil)
	repo.On("ClaimEmbed", mock.Anything, int64(1)).Return(true, nil)
	repo.On("MarkEmbedFailedAttempt", mock.Anything, int64(1), 5, mock.Anything).Return(nil)

	_, err := newTestScheduler(repo, client).RunEmbedRetries(context.Background())

	require.NoError(t, err)
	client.AssertNotCalled(t, "EmbedImages")
	repo.AssertCalled(t, "MarkEmbedFailedAttempt", mock.Anything, int64(1), 5, mock.Anything)
}

func TestRetryScheduler_ProcessesRowsInOrder(t *testing.T) {
	repo := new(mockRetryQueueRepository)
	client := new(mockSearchClient)

	repo.On("PendingEmbeds", mock.Anything, 5, 50).Return([]models.FailedEmbedRequest{
		pendingEmbedRow(1, 0),
		pendingEmbedRow(2, 0),
		pendingEmbedRow(3, 0),
	}, nil)

	var order []int64
	for _, id := range []int64{1, 2, 3} {
		id := id
		repo.On("ClaimEmbed", mock.Anything, id).Run(func(args mock.Arguments) {
			order = append(order, id)
		}).Return(true, nil)
		repo.On("MarkEmbedSucceeded", mock.Anything, id).Return(nil)
	}
	client.On("EmbedImages", mock.Anything, mock.Anything).Return(nil)

	processed, err := newTestScheduler(repo, client).RunEmbedRetries(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, processed)
	assert.Equal(t, []int64{1, 2, 3}, order)
}

func TestRetryScheduler_StopsBetweenRowsOnShutdown(t *testing.T) {
	repo := new(mockRetryQueueRepository)
	client := new(mockSearchClient)

	repo.On("PendingEmbeds", mock.Anything, 5, 50).Return([]models.FailedEmbedRequest{
		pendingEmbedRow(1, 0),
		pendingEmbedRow(2, 0),
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())

	repo.On("ClaimEmbed", mock.Anything, int64(1)).Run(func(args mock.Arguments) {
		cancel() // shutdown arrives while the first row is in flight
	}).Return(true, nil)
	client.On("EmbedImages", mock.Anything, mock.Anything).Return(nil)
	repo.On("MarkEmbedSucceeded", mock.Anything, int64(1)).Return(nil)

	processed, err := newTestScheduler(repo, client).RunEmbedRetries(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, processed)
	repo.AssertNotCalled(t, "ClaimEmbed", mock.Anything, int64(2))
}

func TestRetryScheduler_DeletionReplay(t *testing.T) {
	tests := []struct {
		name       string
		callErr    error
		setupMocks func(*mockRetryQueueRepository)
	}{
		{
			name: "success marks succeeded",
			setupMocks: func(repo *mockRetryQueueRepository) {
				repo.On("MarkDeletionSucceeded", mock.Anything, int64(9)).Return(nil)
			},
		},
		{
			name:    "failure counts attempt",
			callErr: errors.New("connection refused"),
			setupMocks: func(repo *mockRetryQueueRepository) {
				repo.On("MarkDeletionFailedAttempt", mock.Anything, int64(9), 5, "connection refused").Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockRetryQueueRepository)
			client := new(mockSearchClient)

			repo.On("PendingDeletions", mock.Anything, 5, 50).Return([]models.FailedIndexDeletion{
				{ID: 9, UserID: 1, FolderID: 4, Status: models.StatusPending},
			}, nil)
			repo.On("ClaimDeletion", mock.Anything, int64(9)).Return(true, nil)
			client.On("DeleteIndex", mock.Anything, int64(1), int64(4)).Return(tt.callErr)
			tt.setupMocks(repo)

			processed, err := newTestScheduler(repo, client).RunDeletionRetries(context.Background())

			require.NoError(t, err)
			assert.Equal(t, 1, processed)
			repo.AssertExpectations(t)
		})
	}
}

func TestRetryScheduler_WorkersTickAndStop(t *testing.T) {
	repo := new(mockRetryQueueRepository)
	client := new(mockSearchClient)

	cfg := testRetryConfig()
	cfg.EmbedInterval = 10 * time.Millisecond
	cfg.DeleteInterval = 10 * time.Millisecond

	ticked := make(chan struct{}, 16)
	repo.On("PendingEmbeds", mock.Anything, 5, 50).Run(func(args mock.Arguments) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	}).Return([]models.FailedEmbedRequest{}, nil)
	repo.On("PendingDeletions", mock.Anything, 5, 50).Return([]models.FailedIndexDeletion{}, nil)
	repo.On("CleanupSucceeded", mock.Anything, cfg.Retention).Return(nil)

	scheduler := NewRetryScheduler(repo, client, cfg, time.Second, zerolog.Nop())
	scheduler.StartWorkers()

	select {
	case <-ticked:
	case <-time.After(time.Second):
		t.Fatal("embed retry worker never ticked")
	}

	scheduler.StopWorkers()
}
