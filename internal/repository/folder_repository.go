package repository

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/framefind/framefind/internal/models"
)

// FolderRepository handles database operations for folders and folder shares
type FolderRepository interface {
	Create(ctx context.Context, folder *models.Folder) error
	GetByID(ctx context.Context, id int64) (*models.Folder, error)
	GetByOwnerAndName(ctx context.Context, ownerID int64, name string) (*models.Folder, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Folder, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.Folder, error)
	OwnerMap(ctx context.Context, folderIDs []int64) (map[int64]int64, error)
	Delete(ctx context.Context, id int64) error

	// Share management
	CreateShare(ctx context.Context, share *models.FolderShare) error
	GetShare(ctx context.Context, folderID, userID int64) (*models.FolderShare, error)
	ListSharesForUser(ctx context.Context, userID int64) ([]models.FolderShare, error)
	DeleteSharesByFolder(ctx context.Context, folderID int64) error
	DeleteSharesByUser(ctx context.Context, userID int64) error
}

type folderRepository struct {
	db *gorm.DB
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(db *gorm.DB) FolderRepository {
	repo := &folderRepository{db: db}

	// Ensure tables exist
	if err := db.AutoMigrate(&models.Folder{}, &models.FolderShare{}); err != nil {
		log.Printf("Warning: Failed to auto-migrate folder tables: %v", err)
	}

	return repo
}

// Create inserts a new folder row
func (r *folderRepository) Create(ctx context.Context, folder *models.Folder) error {
	return r.db.WithContext(ctx).Create(folder).Error
}

// GetByID retrieves a folder by primary key
func (r *folderRepository) GetByID(ctx context.Context, id int64) (*models.Folder, error) {
	var folder models.Folder
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&folder)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &folder, nil
}

// GetByOwnerAndName retrieves a folder by its per-owner unique name
func (r *folderRepository) GetByOwnerAndName(ctx context.Context, ownerID int64, name string) (*models.Folder, error) {
	var folder models.Folder
	result := r.db.WithContext(ctx).Where("owner_id = ? AND name = ?", ownerID, name).First(&folder)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &folder, nil
}

// ListByOwner retrieves all folders owned by a user, oldest first
func (r *folderRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.Folder, error) {
	var folders []models.Folder
	result := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&folders)
	if result.Error != nil {
		return nil, result.Error
	}
	return folders, nil
}

// ListByIDs retrieves the folders with the given ids
func (r *folderRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Folder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var folders []models.Folder
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&folders)
	if result.Error != nil {
		return nil, result.Error
	}
	return folders, nil
}

// OwnerMap loads folder-id -> owner-id for the given folders in one query
func (r *folderRepository) OwnerMap(ctx context.Context, folderIDs []int64) (map[int64]int64, error) {
	owners := make(map[int64]int64, len(folderIDs))
	if len(folderIDs) == 0 {
		return owners, nil
	}

	var rows []struct {
		ID      int64
		OwnerID int64
	}
	result := r.db.WithContext(ctx).
		Model(&models.Folder{}).
		Select("id", "owner_id").
		Where("id IN ?", folderIDs).
		Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	for _, row := range rows {
		owners[row.ID] = row.OwnerID
	}
	return owners, nil
}

// Delete removes a folder row
func (r *folderRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Folder{}).Error
}

// CreateShare inserts a new folder share row
func (r *folderRepository) CreateShare(ctx context.Context, share *models.FolderShare) error {
	return r.db.WithContext(ctx).Create(share).Error
}

// GetShare retrieves the share granting userID access to folderID
func (r *folderRepository) GetShare(ctx context.Context, folderID, userID int64) (*models.FolderShare, error) {
	var share models.FolderShare
	result := r.db.WithContext(ctx).
		Where("folder_id = ? AND shared_with_user_id = ?", folderID, userID).
		First(&share)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &share, nil
}

// ListSharesForUser retrieves all shares granted to a user with folder and
// owner preloaded for listing
func (r *folderRepository) ListSharesForUser(ctx context.Context, userID int64) ([]models.FolderShare, error) {
	var shares []models.FolderShare
	result := r.db.WithContext(ctx).
		Preload("Folder").
		Preload("Owner").
		Where("shared_with_user_id = ?", userID).
		Order("created_at ASC").
		Find(&shares)
	if result.Error != nil {
		return nil, result.Error
	}
	return shares, nil
}

// DeleteSharesByFolder removes all shares of a folder
func (r *folderRepository) DeleteSharesByFolder(ctx context.Context, folderID int64) error {
	return r.db.WithContext(ctx).Where("folder_id = ?", folderID).Delete(&models.FolderShare{}).Error
}

// DeleteSharesByUser removes shares granted to or by a user
func (r *folderRepository) DeleteSharesByUser(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Where("shared_with_user_id = ? OR owner_id = ?", userID, userID).
		Delete(&models.FolderShare{}).Error
}
