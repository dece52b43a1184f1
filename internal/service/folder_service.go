package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/framefind/framefind/internal/apperrors"
	"github.com/framefind/framefind/internal/dto"
	"github.com/framefind/framefind/internal/models"
	"github.com/framefind/framefind/internal/repository"
	"github.com/framefind/framefind/internal/searchclient"
)

// FolderService manages folders, shares and the owner-or-shared access rule
// applied to every operation that takes a folder id.
type FolderService interface {
	ListAccessible(ctx context.Context, userID int64) ([]dto.FolderInfo, error)
	ResolveOrCreate(ctx context.Context, ownerID int64, name string) (*models.Folder, error)
	Delete(ctx context.Context, userID int64, folderIDs []int64) error
	DeleteAllOwned(ctx context.Context, ownerID int64) error
	DeleteSharesForUser(ctx context.Context, userID int64) error
	Share(ctx context.Context, ownerID, folderID int64, targetUsername, permission string) error

	// Access control
	MayRead(ctx context.Context, userID, folderID int64) (bool, error)
	AccessibleFolderIDs(ctx context.Context, userID int64) ([]int64, error)
	FilterAccessible(ctx context.Context, userID int64, folderIDs []int64) ([]int64, error)
	OwnerMap(ctx context.Context, folderIDs []int64) (map[int64]int64, error)
}

// FolderServiceConfig holds dependencies for creating a FolderService
type FolderServiceConfig struct {
	FolderRepo repository.FolderRepository
	ImageRepo  repository.ImageRepository
	UserRepo   repository.UserRepository
	Search     searchclient.Client
	DataRoot   string
	Logger     zerolog.Logger
}

type folderService struct {
	folderRepo repository.FolderRepository
	imageRepo  repository.ImageRepository
	userRepo   repository.UserRepository
	search     searchclient.Client
	dataRoot   string
	logger     zerolog.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(cfg FolderServiceConfig) FolderService {
	return &folderService{
		folderRepo: cfg.FolderRepo,
		imageRepo:  cfg.ImageRepo,
		userRepo:   cfg.UserRepo,
		search:     cfg.Search,
		dataRoot:   cfg.DataRoot,
		logger:     cfg.Logger.With().Str("component", "folder_service").Logger(),
	}
}

// ListAccessible returns the folders the user owns plus the folders shared
// with them, each annotated with ownership and image counts.
func (s *folderService) ListAccessible(ctx context.Context, userID int64) ([]dto.FolderInfo, error) {
	owned, err := s.folderRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list folders: %w", err))
	}

	shares, err := s.folderRepo.ListSharesForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list shares: %w", err))
	}

	owner, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to load user: %w", err))
	}

	folderIDs := make([]int64, 0, len(owned)+len(shares))
	for _, folder := range owned {
		folderIDs = append(folderIDs, folder.ID)
	}
	for _, share := range shares {
		folderIDs = append(folderIDs, share.FolderID)
	}

	counts, err := s.imageRepo.CountByFolders(ctx, folderIDs)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to count images: %w", err))
	}

	infos := make([]dto.FolderInfo, 0, len(owned)+len(shares))
	for _, folder := range owned {
		infos = append(infos, dto.FolderInfo{
			ID:            folder.ID,
			Name:          folder.Name,
			IsOwner:       true,
			OwnerID:       userID,
			OwnerUsername: owner.Username,
			ImageCount:    counts[folder.ID],
			CreatedAt:     folder.CreatedAt,
		})
	}
	for _, share := range shares {
		infos = append(infos, dto.FolderInfo{
			ID:            share.FolderID,
			Name:          share.Folder.Name,
			IsShared:      true,
			OwnerID:       share.OwnerID,
			OwnerUsername: share.Owner.Username,
			Permission:    string(share.Permission),
			ImageCount:    counts[share.FolderID],
			CreatedAt:     share.Folder.CreatedAt,
		})
	}

	return infos, nil
}

// ResolveOrCreate finds the owner's folder by name, creating it when absent.
// New folders get a best-effort remote index; backends auto-create on first
// embedding, so a failure here is absorbed by the client's fallback.
func (s *folderService) ResolveOrCreate(ctx context.Context, ownerID int64, name string) (*models.Folder, error) {
	folder, err := s.folderRepo.GetByOwnerAndName(ctx, ownerID, name)
	if err == nil {
		return folder, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(fmt.Errorf("failed to resolve folder: %w", err))
	}

	folder = &models.Folder{OwnerID: ownerID, Name: name}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create folder: %w", err))
	}

	s.logger.Info().
		Int64("folder_id", folder.ID).
		Int64("owner_id", ownerID).
		Str("name", name).
		Msg("Folder created")

	if err := s.search.CreateIndex(ctx, ownerID, folder.ID); err != nil {
		s.logger.Warn().Err(err).Int64("folder_id", folder.ID).Msg("Index creation deferred")
	}

	return folder, nil
}

// Delete removes the given folders. Only the owner may delete a folder; a
// share grants read access, not deletion. DB rows go first, then files, then
// the best-effort remote index drop.
func (s *folderService) Delete(ctx context.Context, userID int64, folderIDs []int64) error {
	for _, folderID := range folderIDs {
		folder, err := s.folderRepo.GetByID(ctx, folderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("folder %d not found", folderID)
			}
			return apperrors.Internal(fmt.Errorf("failed to load folder: %w", err))
		}
		if folder.OwnerID != userID {
			return apperrors.Denied("only the folder owner can delete it")
		}

		if err := s.deleteFolder(ctx, folder); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAllOwned removes every folder the user owns, used by account deletion.
func (s *folderService) DeleteAllOwned(ctx context.Context, ownerID int64) error {
	folders, err := s.folderRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to list folders: %w", err))
	}
	for i := range folders {
		if err := s.deleteFolder(ctx, &folders[i]); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSharesForUser removes every share the user is party to: shares they
// granted and shares granted to them by other owners. Used by account
// deletion so no share row keeps referencing the deleted user.
func (s *folderService) DeleteSharesForUser(ctx context.Context, userID int64) error {
	if err := s.folderRepo.DeleteSharesByUser(ctx, userID); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to delete user shares: %w", err))
	}
	return nil
}

// deleteFolder removes one folder's rows, files and remote index.
func (s *folderService) deleteFolder(ctx context.Context, folder *models.Folder) error {
	if err := s.imageRepo.DeleteByFolder(ctx, folder.ID); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to delete image rows: %w", err))
	}
	if err := s.folderRepo.DeleteSharesByFolder(ctx, folder.ID); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to delete shares: %w", err))
	}
	if err := s.folderRepo.Delete(ctx, folder.ID); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to delete folder: %w", err))
	}

	// Files go after the rows so no live request can resolve a dangling path.
	dir := filepath.Join(s.dataRoot, "uploads", "images",
		strconv.FormatInt(folder.OwnerID, 10), strconv.FormatInt(folder.ID, 10))
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Error().Err(err).Str("dir", dir).Msg("Failed to remove folder files")
	}

	// Best effort: the breaker fallback queues the deletion when the backend
	// is down, and the retry scheduler finishes the job later.
	if err := s.search.DeleteIndex(ctx, folder.OwnerID, folder.ID); err != nil {
		s.logger.Warn().Err(err).Int64("folder_id", folder.ID).Msg("Index deletion deferred")
	}

	s.logger.Info().
		Int64("folder_id", folder.ID).
		Int64("owner_id", folder.OwnerID).
		Msg("Folder deleted")

	return nil
}

// Share grants targetUsername read access to one of the caller's folders.
func (s *folderService) Share(ctx context.Context, ownerID, folderID int64, targetUsername, permission string) error {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("folder %d not found", folderID)
		}
		return apperrors.Internal(fmt.Errorf("failed to load folder: %w", err))
	}
	if folder.OwnerID != ownerID {
		return apperrors.Denied("only the folder owner can share it")
	}

	target, err := s.userRepo.GetByUsername(ctx, targetUsername)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("user %q not found", targetUsername)
		}
		return apperrors.Internal(fmt.Errorf("failed to load target user: %w", err))
	}
	if target.ID == ownerID {
		return apperrors.Unprocessable("cannot share a folder with yourself")
	}

	if _, err := s.folderRepo.GetShare(ctx, folderID, target.ID); err == nil {
		return apperrors.Conflict("folder is already shared with %q", targetUsername)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return apperrors.Internal(fmt.Errorf("failed to check existing share: %w", err))
	}

	if permission == "" {
		permission = string(models.SharePermissionView)
	}

	share := &models.FolderShare{
		FolderID:         folderID,
		OwnerID:          ownerID,
		SharedWithUserID: target.ID,
		Permission:       models.SharePermission(permission),
	}
	if err := s.folderRepo.CreateShare(ctx, share); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to create share: %w", err))
	}

	s.logger.Info().
		Int64("folder_id", folderID).
		Int64("owner_id", ownerID).
		Int64("shared_with", target.ID).
		Msg("Folder shared")

	return nil
}

// MayRead reports whether the user owns the folder or has a share for it.
func (s *folderService) MayRead(ctx context.Context, userID, folderID int64) (bool, error) {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if folder.OwnerID == userID {
		return true, nil
	}

	if _, err := s.folderRepo.GetShare(ctx, folderID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AccessibleFolderIDs enumerates all folders the user may read.
func (s *folderService) AccessibleFolderIDs(ctx context.Context, userID int64) ([]int64, error) {
	owned, err := s.folderRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	shares, err := s.folderRepo.ListSharesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(owned)+len(shares))
	for _, folder := range owned {
		ids = append(ids, folder.ID)
	}
	for _, share := range shares {
		ids = append(ids, share.FolderID)
	}
	return ids, nil
}

// FilterAccessible keeps only the folder ids the user may read, silently
// dropping the rest.
func (s *folderService) FilterAccessible(ctx context.Context, userID int64, folderIDs []int64) ([]int64, error) {
	accessible := make([]int64, 0, len(folderIDs))
	for _, folderID := range folderIDs {
		ok, err := s.MayRead(ctx, userID, folderID)
		if err != nil {
			return nil, err
		}
		if ok {
			accessible = append(accessible, folderID)
		}
	}
	return accessible, nil
}

// OwnerMap builds folder-id -> owner-id for the given folders in one query.
func (s *folderService) OwnerMap(ctx context.Context, folderIDs []int64) (map[int64]int64, error) {
	return s.folderRepo.OwnerMap(ctx, folderIDs)
}
