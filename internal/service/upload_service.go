package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/framefind/framefind/internal/apperrors"
	"github.com/framefind/framefind/internal/config"
	"github.com/framefind/framefind/internal/dto"
	"github.com/framefind/framefind/internal/models"
	"github.com/framefind/framefind/internal/repository"
	"github.com/framefind/framefind/internal/searchclient"
)

// UploadService is the upload pipeline: validate, persist bytes, record
// metadata, then hand the batch to the embedding dispatcher. An image row is
// always committed before its embedding task is enqueued.
type UploadService interface {
	Upload(ctx context.Context, userID int64, folderName string, files []*multipart.FileHeader) (*dto.UploadResponse, error)
}

// UploadServiceConfig holds dependencies for creating an UploadService
type UploadServiceConfig struct {
	Folders    FolderService
	ImageRepo  repository.ImageRepository
	Dispatcher EmbeddingDispatcher
	Upload     config.UploadConfig
	DataRoot   string
	Logger     zerolog.Logger
}

type uploadService struct {
	folders    FolderService
	imageRepo  repository.ImageRepository
	dispatcher EmbeddingDispatcher
	cfg        config.UploadConfig
	dataRoot   string
	logger     zerolog.Logger
}

// NewUploadService creates a new upload service
func NewUploadService(cfg UploadServiceConfig) UploadService {
	return &uploadService{
		folders:    cfg.Folders,
		imageRepo:  cfg.ImageRepo,
		dispatcher: cfg.Dispatcher,
		cfg:        cfg.Upload,
		dataRoot:   cfg.DataRoot,
		logger:     cfg.Logger.With().Str("component", "upload_service").Logger(),
	}
}

// Upload runs the pipeline for one request. The whole request is rejected on
// the first invalid extension, before any file is written.
func (s *uploadService) Upload(ctx context.Context, userID int64, folderName string, files []*multipart.FileHeader) (*dto.UploadResponse, error) {
	if strings.TrimSpace(folderName) == "" {
		return nil, apperrors.Validation("folder name is required")
	}
	if len(files) == 0 {
		return nil, apperrors.Validation("no files provided")
	}

	for _, file := range files {
		if !s.extensionAllowed(file.Filename) {
			return nil, apperrors.Validation("file %q has an unsupported extension (allowed: %s)",
				file.Filename, strings.Join(s.cfg.AllowedExtensions, ", "))
		}
	}

	folder, err := s.folders.ResolveOrCreate(ctx, userID, strings.TrimSpace(folderName))
	if err != nil {
		return nil, err
	}

	embedImages := make([]searchclient.EmbedImage, 0, len(files))
	for _, file := range files {
		image, err := s.saveFile(ctx, userID, folder.ID, file)
		if err != nil {
			return nil, err
		}
		embedImages = append(embedImages, searchclient.EmbedImage{
			ImageID:  image.ID,
			FilePath: image.RelativePath,
		})
	}

	// Every row above is committed; enqueue one task for the whole upload.
	// Submit blocks when the queue is full, pushing backpressure onto the
	// client.
	task := EmbeddingTask{UserID: userID, FolderID: folder.ID, Images: embedImages}
	if err := s.dispatcher.Submit(ctx, task); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to enqueue embedding task: %w", err))
	}

	s.logger.Info().
		Int64("user_id", userID).
		Int64("folder_id", folder.ID).
		Int("uploaded", len(embedImages)).
		Msg("Upload completed")

	return &dto.UploadResponse{
		Message:       "images uploaded; they will become searchable once processed",
		FolderID:      folder.ID,
		UploadedCount: len(embedImages),
	}, nil
}

// saveFile writes one file under the data root and inserts its image row.
// Overwriting an existing file with the same name is permitted.
func (s *uploadService) saveFile(ctx context.Context, userID, folderID int64, file *multipart.FileHeader) (*models.Image, error) {
	filename := filepath.Base(file.Filename)

	dir := filepath.Join(s.dataRoot, "uploads", "images",
		strconv.FormatInt(userID, 10), strconv.FormatInt(folderID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create upload directory: %w", err))
	}

	src, err := file.Open()
	if err != nil {
		return nil, apperrors.Validation("failed to read uploaded file %q", filename)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create file: %w", err))
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return nil, apperrors.Internal(fmt.Errorf("failed to write file: %w", err))
	}
	if err := dst.Close(); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to flush file: %w", err))
	}

	image := &models.Image{
		OwnerID:  userID,
		FolderID: folderID,
		RelativePath: path.Join("images",
			strconv.FormatInt(userID, 10), strconv.FormatInt(folderID, 10), filename),
	}
	if err := s.imageRepo.Create(ctx, image); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to insert image row: %w", err))
	}

	return image, nil
}

// extensionAllowed checks the filename against the configured allow-list.
func (s *uploadService) extensionAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	for _, allowed := range s.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
