package searchclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// FaissClient talks to the FAISS-based backup search service. It speaks the
// same wire contract as the CLIP service but manages flat on-disk indexes,
// so index creation is cheap and deletions may lag behind acknowledgement.
type FaissClient struct {
	transport
}

// NewFaissClient creates a client for the FAISS search service.
func NewFaissClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *FaissClient {
	return &FaissClient{
		transport: transport{
			baseURL:    baseURL,
			httpClient: &http.Client{Timeout: timeout},
			logger:     logger.With().Str("component", "faiss_search_client").Logger(),
		},
	}
}

// Name identifies the backend implementation.
func (c *FaissClient) Name() string {
	return "faiss"
}

// Search runs a similarity query against the FAISS service.
func (c *FaissClient) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/search", req, &resp); err != nil {
		return nil, fmt.Errorf("faiss search failed: %w", err)
	}

	c.logger.Debug().
		Int64("user_id", req.UserID).
		Int("result_count", len(resp.Results)).
		Msg("Search completed")

	return &resp, nil
}

// EmbedImages submits a batch of images for embedding.
func (c *FaissClient) EmbedImages(ctx context.Context, req *EmbedRequest) error {
	if err := c.doJSON(ctx, http.MethodPost, "/api/embed-images", req, nil); err != nil {
		return fmt.Errorf("faiss embed failed: %w", err)
	}
	return nil
}

// CreateIndex provisions the per-folder index. FAISS indexes are created
// lazily on first embedding, so this only registers the folder.
func (c *FaissClient) CreateIndex(ctx context.Context, userID, folderID int64) error {
	body := map[string]int64{"user_id": userID, "folder_id": folderID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/create-index", body, nil); err != nil {
		return fmt.Errorf("faiss create-index failed: %w", err)
	}
	return nil
}

// DeleteIndex drops the per-folder index.
func (c *FaissClient) DeleteIndex(ctx context.Context, userID, folderID int64) error {
	path := fmt.Sprintf("/api/delete-index/%d/%d", userID, folderID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("faiss delete-index failed: %w", err)
	}
	return nil
}
