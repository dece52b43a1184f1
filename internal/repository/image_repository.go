package repository

import (
	"context"
	"log"

	"gorm.io/gorm"

	"github.com/framefind/framefind/internal/models"
)

// ImageRepository handles database operations for image metadata
type ImageRepository interface {
	Create(ctx context.Context, image *models.Image) error
	ListByIDs(ctx context.Context, ids []int64) ([]models.Image, error)
	ListByFolder(ctx context.Context, folderID int64) ([]models.Image, error)
	CountByFolders(ctx context.Context, folderIDs []int64) (map[int64]int64, error)
	DeleteByFolder(ctx context.Context, folderID int64) error
	DeleteByOwner(ctx context.Context, ownerID int64) error
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new image repository
func NewImageRepository(db *gorm.DB) ImageRepository {
	repo := &imageRepository{db: db}

	// Ensure tables exist
	if err := db.AutoMigrate(&models.Image{}); err != nil {
		log.Printf("Warning: Failed to auto-migrate images table: %v", err)
	}

	return repo
}

// Create inserts a new image row
func (r *imageRepository) Create(ctx context.Context, image *models.Image) error {
	return r.db.WithContext(ctx).Create(image).Error
}

// ListByIDs loads the image rows for the given ids in one query. Unknown ids
// are simply absent from the result.
func (r *imageRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Image, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var images []models.Image
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&images)
	if result.Error != nil {
		return nil, result.Error
	}
	return images, nil
}

// ListByFolder retrieves all images in a folder
func (r *imageRepository) ListByFolder(ctx context.Context, folderID int64) ([]models.Image, error) {
	var images []models.Image
	result := r.db.WithContext(ctx).Where("folder_id = ?", folderID).Find(&images)
	if result.Error != nil {
		return nil, result.Error
	}
	return images, nil
}

// CountByFolders returns image counts grouped by folder in one query
func (r *imageRepository) CountByFolders(ctx context.Context, folderIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(folderIDs))
	if len(folderIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		FolderID int64
		Count    int64
	}
	result := r.db.WithContext(ctx).
		Model(&models.Image{}).
		Select("folder_id", "count(*) as count").
		Where("folder_id IN ?", folderIDs).
		Group("folder_id").
		Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	for _, row := range rows {
		counts[row.FolderID] = row.Count
	}
	return counts, nil
}

// DeleteByFolder removes all image rows in a folder
func (r *imageRepository) DeleteByFolder(ctx context.Context, folderID int64) error {
	return r.db.WithContext(ctx).Where("folder_id = ?", folderID).Delete(&models.Image{}).Error
}

// DeleteByOwner removes all image rows owned by a user
func (r *imageRepository) DeleteByOwner(ctx context.Context, ownerID int64) error {
	return r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&models.Image{}).Error
}
