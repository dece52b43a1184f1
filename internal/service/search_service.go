package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/framefind/framefind/internal/apperrors"
	"github.com/framefind/framefind/internal/dto"
	"github.com/framefind/framefind/internal/repository"
	"github.com/framefind/framefind/internal/searchclient"
)

// defaultTopK bounds result counts when the client does not ask for one.
const defaultTopK = 5

// maxTopK caps how many results a single query may request.
const maxTopK = 100

// SearchService is the search pipeline: resolve accessible folders, query
// the backend with a folder-owner map, and join the vector hits back onto
// image rows in a single batch.
type SearchService interface {
	Search(ctx context.Context, userID int64, query *dto.SearchQuery) (*dto.SearchResponse, error)
}

// SearchServiceConfig holds dependencies for creating a SearchService
type SearchServiceConfig struct {
	Folders       FolderService
	ImageRepo     repository.ImageRepository
	Search        searchclient.Client
	PublicBaseURL string
	Logger        zerolog.Logger
}

type searchService struct {
	folders   FolderService
	imageRepo repository.ImageRepository
	search    searchclient.Client
	baseURL   string
	logger    zerolog.Logger
}

// NewSearchService creates a new search service
func NewSearchService(cfg SearchServiceConfig) SearchService {
	return &searchService{
		folders:   cfg.Folders,
		imageRepo: cfg.ImageRepo,
		search:    cfg.Search,
		baseURL:   cfg.PublicBaseURL,
		logger:    cfg.Logger.With().Str("component", "search_service").Logger(),
	}
}

// Search runs one query end to end. Inaccessible folder ids are silently
// dropped; an empty resolved set returns an empty result without touching
// the backend.
func (s *searchService) Search(ctx context.Context, userID int64, query *dto.SearchQuery) (*dto.SearchResponse, error) {
	if query.Query == "" {
		return nil, apperrors.Validation("query is required")
	}
	topK := query.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		return nil, apperrors.Validation("top_k cannot exceed %d", maxTopK)
	}

	folderIDs, err := s.resolveFolders(ctx, userID, query.FolderIDs)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to resolve folders: %w", err))
	}
	if len(folderIDs) == 0 {
		return &dto.SearchResponse{Results: []dto.SearchResultItem{}}, nil
	}

	owners, err := s.folders.OwnerMap(ctx, folderIDs)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to load folder owners: %w", err))
	}

	req := &searchclient.SearchRequest{
		UserID:    userID,
		Query:     query.Query,
		FolderIDs: folderIDs,
		TopK:      topK,
	}
	req.SetFolderOwners(owners)

	resp, err := s.search.Search(ctx, req)
	if err != nil {
		if errors.Is(err, searchclient.ErrUnavailable) {
			return nil, apperrors.Unavailable("image search is temporarily unavailable, please try again later", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("search failed: %w", err))
	}

	return s.enrich(ctx, resp.Results)
}

// resolveFolders produces the accessible folder set for the query: all
// accessible folders when none were named, otherwise the accessible subset
// of the named ones.
func (s *searchService) resolveFolders(ctx context.Context, userID int64, requested []int64) ([]int64, error) {
	if len(requested) == 0 {
		return s.folders.AccessibleFolderIDs(ctx, userID)
	}
	return s.folders.FilterAccessible(ctx, userID, requested)
}

// enrich joins the backend hits onto image rows with one IN query and emits
// results in the backend's order. Hits the database no longer knows are
// dropped; the backend index may be stale after deletions.
func (s *searchService) enrich(ctx context.Context, hits []searchclient.SearchResult) (*dto.SearchResponse, error) {
	ids := make([]int64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ImageID
	}

	images, err := s.imageRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to load images: %w", err))
	}

	paths := make(map[int64]string, len(images))
	for _, image := range images {
		paths[image.ID] = image.RelativePath
	}

	results := make([]dto.SearchResultItem, 0, len(hits))
	dropped := 0
	for _, hit := range hits {
		relPath, ok := paths[hit.ImageID]
		if !ok {
			dropped++
			continue
		}
		results = append(results, dto.SearchResultItem{
			Image:      s.baseURL + "/" + relPath,
			Similarity: hit.Score,
		})
	}

	if dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Msg("Search hits referenced unknown images; index may be stale")
	}

	return &dto.SearchResponse{Results: results}, nil
}
