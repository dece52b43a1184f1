package searchclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/framefind/framefind/internal/breaker"
	"github.com/framefind/framefind/internal/config"
)

// Breaker method names; also used as metric labels.
const (
	MethodSearch      = "search"
	MethodEmbedImages = "embed_images"
	MethodCreateIndex = "create_index"
	MethodDeleteIndex = "delete_index"
)

// FailureStore persists embed and delete-index requests that could not reach
// the backend, for later replay by the retry scheduler.
type FailureStore interface {
	RecordFailedEmbed(ctx context.Context, userID, folderID int64, images []EmbedImage, cause error) error
	RecordFailedDeletion(ctx context.Context, userID, folderID int64, cause error) error
}

// fallback is the degradation behavior for one client method. onOpen runs
// when the breaker rejects the call outright; onFailure runs when the call
// itself failed. This table is the single place the degradation policy lives.
type fallback struct {
	onOpen    func(ctx context.Context, req any, cause error) error
	onFailure func(ctx context.Context, req any, cause error) error
}

// Resilient wraps a backend client with one named circuit breaker per method
// and a per-method fallback table. Searches fail fast, embeds and index
// deletions degrade into the durable retry queue, and index creation is
// absorbed because backends auto-create on first embedding.
type Resilient struct {
	inner     Client
	store     FailureStore
	timeout   time.Duration
	logger    zerolog.Logger
	breakers  map[string]*breaker.Breaker
	fallbacks map[string]fallback
}

// ResilientConfig configures the resilient decorator.
type ResilientConfig struct {
	Inner   Client
	Store   FailureStore
	Breaker config.BreakerConfig
	// Timeout is the per-call deadline applied to every backend call.
	Timeout time.Duration
	Logger  zerolog.Logger
	// OnStateChange receives breaker transitions, keyed by method name.
	OnStateChange func(name string, from, to breaker.State)
}

// NewResilient builds the breaker-protected client.
func NewResilient(cfg ResilientConfig) *Resilient {
	r := &Resilient{
		inner:   cfg.Inner,
		store:   cfg.Store,
		timeout: cfg.Timeout,
		logger:  cfg.Logger.With().Str("component", "resilient_search_client").Str("backend", cfg.Inner.Name()).Logger(),
	}
	if r.timeout <= 0 {
		r.timeout = 30 * time.Second
	}

	stateChange := func(name string, from, to breaker.State) {
		r.logger.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(name, from, to)
		}
	}

	r.breakers = make(map[string]*breaker.Breaker, 4)
	for _, method := range []string{MethodSearch, MethodEmbedImages, MethodCreateIndex, MethodDeleteIndex} {
		r.breakers[method] = breaker.New(breaker.Config{
			Name:                  method,
			WindowSize:            cfg.Breaker.WindowSize,
			MinimumCalls:          cfg.Breaker.MinimumCalls,
			FailureRateThreshold:  cfg.Breaker.FailureRateThreshold,
			SlowCallRateThreshold: cfg.Breaker.SlowCallRateThreshold,
			SlowCallDuration:      cfg.Breaker.SlowCallDuration,
			OpenDuration:          cfg.Breaker.OpenDuration,
			HalfOpenMaxCalls:      cfg.Breaker.HalfOpenProbes,
			OnStateChange:         stateChange,
		})
	}

	failSearch := func(ctx context.Context, req any, cause error) error {
		return fmt.Errorf("%w: %v", ErrUnavailable, cause)
	}
	enqueueEmbed := func(ctx context.Context, req any, cause error) error {
		embed := req.(*EmbedRequest)
		if err := r.store.RecordFailedEmbed(ctx, embed.UserID, embed.FolderID, embed.Images, cause); err != nil {
			return fmt.Errorf("failed to queue embed request for retry: %w", err)
		}
		r.logger.Info().
			Int64("user_id", embed.UserID).
			Int64("folder_id", embed.FolderID).
			Int("image_count", len(embed.Images)).
			Msg("Embed request queued for retry")
		return nil
	}
	absorbCreate := func(ctx context.Context, req any, cause error) error {
		idx := req.(indexRef)
		r.logger.Warn().
			Err(cause).
			Int64("user_id", idx.userID).
			Int64("folder_id", idx.folderID).
			Msg("Index creation skipped; backend will auto-create on first embedding")
		return nil
	}
	enqueueDelete := func(ctx context.Context, req any, cause error) error {
		idx := req.(indexRef)
		if err := r.store.RecordFailedDeletion(ctx, idx.userID, idx.folderID, cause); err != nil {
			return fmt.Errorf("failed to queue index deletion for retry: %w", err)
		}
		r.logger.Info().
			Int64("user_id", idx.userID).
			Int64("folder_id", idx.folderID).
			Msg("Index deletion queued for retry")
		return nil
	}

	r.fallbacks = map[string]fallback{
		MethodSearch:      {onOpen: failSearch, onFailure: failSearch},
		MethodEmbedImages: {onOpen: enqueueEmbed, onFailure: enqueueEmbed},
		MethodCreateIndex: {onOpen: absorbCreate, onFailure: absorbCreate},
		MethodDeleteIndex: {onOpen: enqueueDelete, onFailure: enqueueDelete},
	}

	return r
}

type indexRef struct {
	userID   int64
	folderID int64
}

// Name identifies the wrapped backend.
func (r *Resilient) Name() string {
	return r.inner.Name()
}

// BreakerState returns the current state of the named method breaker.
func (r *Resilient) BreakerState(method string) breaker.State {
	b, ok := r.breakers[method]
	if !ok {
		return breaker.StateClosed
	}
	return b.State()
}

// Search runs a similarity query; when the breaker is open or the backend
// fails, it fails fast with ErrUnavailable instead of queueing.
func (r *Resilient) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	var resp *SearchResponse
	err := r.execute(ctx, MethodSearch, req, func(cctx context.Context) error {
		inner, callErr := r.inner.Search(cctx, req)
		if callErr != nil {
			return callErr
		}
		resp = inner
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// EmbedImages submits images for embedding; failures degrade into the retry
// queue and the call reports success so uploads are not rejected.
func (r *Resilient) EmbedImages(ctx context.Context, req *EmbedRequest) error {
	return r.execute(ctx, MethodEmbedImages, req, func(cctx context.Context) error {
		return r.inner.EmbedImages(cctx, req)
	})
}

// CreateIndex provisions the folder index; failures are logged and absorbed.
func (r *Resilient) CreateIndex(ctx context.Context, userID, folderID int64) error {
	return r.execute(ctx, MethodCreateIndex, indexRef{userID: userID, folderID: folderID}, func(cctx context.Context) error {
		return r.inner.CreateIndex(cctx, userID, folderID)
	})
}

// DeleteIndex drops the folder index; failures degrade into the retry queue.
func (r *Resilient) DeleteIndex(ctx context.Context, userID, folderID int64) error {
	return r.execute(ctx, MethodDeleteIndex, indexRef{userID: userID, folderID: folderID}, func(cctx context.Context) error {
		return r.inner.DeleteIndex(cctx, userID, folderID)
	})
}

// execute runs call under the method's breaker and per-call deadline, then
// dispatches to the fallback table on rejection or failure. Fallback
// persistence uses the parent context so a timed-out remote call does not
// also time out the local queue write.
func (r *Resilient) execute(ctx context.Context, method string, req any, call func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.breakers[method].Execute(cctx, func() error {
		return call(cctx)
	})
	if err == nil {
		return nil
	}

	fb := r.fallbacks[method]
	if errors.Is(err, breaker.ErrOpen) {
		return fb.onOpen(ctx, req, err)
	}
	return fb.onFailure(ctx, req, err)
}
