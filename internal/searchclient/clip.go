package searchclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ClipClient talks to the CLIP-based search service, the default backend.
// It keeps one vector index per (user, folder) pair and auto-creates indexes
// on first embedding.
type ClipClient struct {
	transport
}

// NewClipClient creates a client for the CLIP search service.
func NewClipClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *ClipClient {
	return &ClipClient{
		transport: transport{
			baseURL:    baseURL,
			httpClient: &http.Client{Timeout: timeout},
			logger:     logger.With().Str("component", "clip_search_client").Logger(),
		},
	}
}

// Name identifies the backend implementation.
func (c *ClipClient) Name() string {
	return "clip"
}

// Search runs a similarity query against the CLIP service.
func (c *ClipClient) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/search", req, &resp); err != nil {
		return nil, fmt.Errorf("clip search failed: %w", err)
	}

	c.logger.Debug().
		Int64("user_id", req.UserID).
		Int("folder_count", len(req.FolderIDs)).
		Int("result_count", len(resp.Results)).
		Msg("Search completed")

	return &resp, nil
}

// EmbedImages submits a batch of images for embedding.
func (c *ClipClient) EmbedImages(ctx context.Context, req *EmbedRequest) error {
	if err := c.doJSON(ctx, http.MethodPost, "/api/embed-images", req, nil); err != nil {
		return fmt.Errorf("clip embed failed: %w", err)
	}

	c.logger.Debug().
		Int64("user_id", req.UserID).
		Int64("folder_id", req.FolderID).
		Int("image_count", len(req.Images)).
		Msg("Embed batch accepted")

	return nil
}

// CreateIndex provisions the per-folder index. The service treats repeat
// creation as a no-op.
func (c *ClipClient) CreateIndex(ctx context.Context, userID, folderID int64) error {
	body := map[string]int64{"user_id": userID, "folder_id": folderID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/create-index", body, nil); err != nil {
		return fmt.Errorf("clip create-index failed: %w", err)
	}
	return nil
}

// DeleteIndex drops the per-folder index.
func (c *ClipClient) DeleteIndex(ctx context.Context, userID, folderID int64) error {
	path := fmt.Sprintf("/api/delete-index/%d/%d", userID, folderID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("clip delete-index failed: %w", err)
	}
	return nil
}
