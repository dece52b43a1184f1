package searchclient

import (
	"context"
	"errors"
	"strconv"
)

// ErrUnavailable is returned by the resilient client when a search cannot be
// served because the backend is down or its breaker is open. The API layer
// translates it to 503.
var ErrUnavailable = errors.New("search service unavailable")

// SearchRequest is the outbound payload for a similarity search.
// FolderOwnerMap lets the backend locate per-owner index partitions without a
// round trip per result; JSON object keys are the folder ids in decimal.
type SearchRequest struct {
	UserID         int64            `json:"user_id"`
	Query          string           `json:"query"`
	FolderIDs      []int64          `json:"folder_ids"`
	FolderOwnerMap map[string]int64 `json:"folder_owner_map"`
	TopK           int              `json:"top_k"`
}

// SetFolderOwners fills FolderOwnerMap from an id-keyed map.
func (r *SearchRequest) SetFolderOwners(owners map[int64]int64) {
	r.FolderOwnerMap = make(map[string]int64, len(owners))
	for folderID, ownerID := range owners {
		r.FolderOwnerMap[strconv.FormatInt(folderID, 10)] = ownerID
	}
}

// SearchResult is one vector hit returned by the backend.
type SearchResult struct {
	ImageID  int64   `json:"image_id"`
	Score    float64 `json:"score"`
	FolderID int64   `json:"folder_id"`
}

// SearchResponse is the backend's answer to a search call.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// EmbedImage identifies one image to embed.
type EmbedImage struct {
	ImageID  int64  `json:"image_id"`
	FilePath string `json:"file_path"`
}

// EmbedRequest asks the backend to embed and index a batch of images.
type EmbedRequest struct {
	UserID   int64        `json:"user_id"`
	FolderID int64        `json:"folder_id"`
	Images   []EmbedImage `json:"images"`
}

// Client is the contract against a remote search backend. Exactly one
// concrete implementation is live at a time, selected at startup.
type Client interface {
	// Search runs a similarity query; synchronous to the caller.
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)

	// EmbedImages submits images for embedding. The backend may finish the
	// work after returning; delivery is at-least-once together with the
	// retry queue.
	EmbedImages(ctx context.Context, req *EmbedRequest) error

	// CreateIndex provisions the per-folder index. Idempotent.
	CreateIndex(ctx context.Context, userID, folderID int64) error

	// DeleteIndex drops the per-folder index. Idempotent, best-effort.
	DeleteIndex(ctx context.Context, userID, folderID int64) error

	// Name identifies the backend implementation.
	Name() string
}
