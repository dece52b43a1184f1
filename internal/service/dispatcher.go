package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/framefind/framefind/internal/config"
	"github.com/framefind/framefind/internal/searchclient"
)

// EmbeddingTask is one upload's worth of images awaiting embedding.
type EmbeddingTask struct {
	UserID   int64
	FolderID int64
	Images   []searchclient.EmbedImage
}

// EmbeddingDispatcher is the bounded asynchronous pipeline between the upload
// path and the search backend. Submitting to a full queue blocks the caller,
// which is the backpressure signal to uploads.
type EmbeddingDispatcher interface {
	Submit(ctx context.Context, task EmbeddingTask) error
	StartWorkers()
	StopWorkers()
}

type embeddingDispatcher struct {
	tasks  chan EmbeddingTask
	client searchclient.Client
	cfg    config.AsyncConfig
	logger zerolog.Logger
	wg     sync.WaitGroup
	once   sync.Once
}

// NewEmbeddingDispatcher creates a new embedding dispatcher. The client is
// expected to be the breaker-protected one: transient backend failures then
// degrade into the durable retry queue instead of dropping images.
func NewEmbeddingDispatcher(client searchclient.Client, cfg config.AsyncConfig, logger zerolog.Logger) EmbeddingDispatcher {
	return &embeddingDispatcher{
		tasks:  make(chan EmbeddingTask, cfg.QueueCapacity),
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "embedding_dispatcher").Logger(),
	}
}

// Submit enqueues a task, blocking while the queue is full. The image rows
// referenced by the task must already be committed.
func (d *embeddingDispatcher) Submit(ctx context.Context, task EmbeddingTask) error {
	select {
	case d.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartWorkers launches the worker pool.
func (d *embeddingDispatcher) StartWorkers() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info().
		Int("workers", d.cfg.Workers).
		Int("queue_capacity", d.cfg.QueueCapacity).
		Msg("Embedding dispatcher started")
}

// StopWorkers closes the queue and waits for the workers to drain it.
func (d *embeddingDispatcher) StopWorkers() {
	d.once.Do(func() {
		close(d.tasks)
	})
	d.wg.Wait()
	d.logger.Info().Msg("Embedding dispatcher stopped")
}

// worker drains the queue, splitting each task into bounded batches and
// pausing between batches to throttle the backend.
func (d *embeddingDispatcher) worker(id int) {
	defer d.wg.Done()

	for task := range d.tasks {
		d.process(id, task)
	}
}

func (d *embeddingDispatcher) process(workerID int, task EmbeddingTask) {
	batchSize := d.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	for start := 0; start < len(task.Images); start += batchSize {
		end := start + batchSize
		if end > len(task.Images) {
			end = len(task.Images)
		}

		req := &searchclient.EmbedRequest{
			UserID:   task.UserID,
			FolderID: task.FolderID,
			Images:   task.Images[start:end],
		}

		// Detached from the upload request: the client disconnecting must not
		// cancel indexing of rows that already exist.
		if err := d.client.EmbedImages(context.Background(), req); err != nil {
			d.logger.Error().Err(err).
				Int("worker", workerID).
				Int64("folder_id", task.FolderID).
				Int("batch_size", len(req.Images)).
				Msg("Embed batch failed")
		}

		if end < len(task.Images) {
			time.Sleep(d.cfg.BatchPause)
		}
	}
}
