package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/framefind/framefind/internal/dto"
	"github.com/framefind/framefind/internal/models"
	"github.com/framefind/framefind/internal/searchclient"
)

// Mock search client

type mockSearchClient struct {
	mock.Mock
}

func (m *mockSearchClient) Search(ctx context.Context, req *searchclient.SearchRequest) (*searchclient.SearchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*searchclient.SearchResponse), args.Error(1)
}

func (m *mockSearchClient) EmbedImages(ctx context.Context, req *searchclient.EmbedRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockSearchClient) CreateIndex(ctx context.Context, userID, folderID int64) error {
	args := m.Called(ctx, userID, folderID)
	return args.Error(0)
}

func (m *mockSearchClient) DeleteIndex(ctx context.Context, userID, folderID int64) error {
	args := m.Called(ctx, userID, folderID)
	return args.Error(0)
}

func (m *mockSearchClient) Name() string {
	return "mock"
}

// Mock folder service

type mockFolderService struct {
	mock.Mock
}

func (m *mockFolderService) ListAccessible(ctx context.Context, userID int64) ([]dto.FolderInfo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.FolderInfo), args.Error(1)
}

func (m *mockFolderService) ResolveOrCreate(ctx context.Context, ownerID int64, name string) (*models.Folder, error) {
	args := m.Called(ctx, ownerID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Folder), args.Error(1)
}

func (m *mockFolderService) Delete(ctx context.Context, userID int64, folderIDs []int64) error {
	args := m.Called(ctx, userID, folderIDs)
	return args.Error(0)
}

func (m *mockFolderService) DeleteAllOwned(ctx context.Context, ownerID int64) error {
	args := m.Called(ctx, ownerID)
	return args.Error(0)
}

func (m *mockFolderService) DeleteSharesForUser(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockFolderService) Share(ctx context.Context, ownerID, folderID int64, targetUsername, permission string) error {
	args := m.Called(ctx, ownerID, folderID, targetUsername, permission)
	return args.Error(0)
}

func (m *mockFolderService) MayRead(ctx context.Context, userID, folderID int64) (bool, error) {
	args := m.Called(ctx, userID, folderID)
	return args.Bool(0), args.Error(1)
}

func (m *mockFolderService) AccessibleFolderIDs(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockFolderService) FilterAccessible(ctx context.Context, userID int64, folderIDs []int64) ([]int64, error) {
	args := m.Called(ctx, userID, folderIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockFolderService) OwnerMap(ctx context.Context, folderIDs []int64) (map[int64]int64, error) {
	args := m.Called(ctx, folderIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]int64), args.Error(1)
}

// Mock image repository

type mockImageRepository struct {
	mock.Mock
}

func (m *mockImageRepository) Create(ctx context.Context, image *models.Image) error {
	args := m.Called(ctx, image)
	return args.Error(0)
}

func (m *mockImageRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Image, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Image), args.Error(1)
}

func (m *mockImageRepository) ListByFolder(ctx context.Context, folderID int64) ([]models.Image, error) {
	args := m.Called(ctx, folderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Image), args.Error(1)
}

func (m *mockImageRepository) CountByFolders(ctx context.Context, folderIDs []int64) (map[int64]int64, error) {
	args := m.Called(ctx, folderIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]int64), args.Error(1)
}

func (m *mockImageRepository) DeleteByFolder(ctx context.Context, folderID int64) error {
	args := m.Called(ctx, folderID)
	return args.Error(0)
}

func (m *mockImageRepository) DeleteByOwner(ctx context.Context, ownerID int64) error {
	args := m.Called(ctx, ownerID)
	return args.Error(0)
}

// Mock folder repository

type mockFolderRepository struct {
	mock.Mock
}

func (m *mockFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	args := m.Called(ctx, folder)
	return args.Error(0)
}

func (m *mockFolderRepository) GetByID(ctx context.Context, id int64) (*models.Folder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Folder), args.Error(1)
}

func (m *mockFolderRepository) GetByOwnerAndName(ctx context.Context, ownerID int64, name string) (*models.Folder, error) {
	args := m.Called(ctx, ownerID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Folder), args.Error(1)
}

func (m *mockFolderRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.Folder, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Folder), args.Error(1)
}

func (m *mockFolderRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Folder, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Folder), args.Error(1)
}

func (m *mockFolderRepository) OwnerMap(ctx context.Context, folderIDs []int64) (map[int64]int64, error) {
	args := m.Called(ctx, folderIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]int64), args.Error(1)
}

func (m *mockFolderRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockFolderRepository) CreateShare(ctx context.Context, share *models.FolderShare) error {
	args := m.Called(ctx, share)
	return args.Error(0)
}

func (m *mockFolderRepository) GetShare(ctx context.Context, folderID, userID int64) (*models.FolderShare, error) {
	args := m.Called(ctx, folderID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FolderShare), args.Error(1)
}

func (m *mockFolderRepository) ListSharesForUser(ctx context.Context, userID int64) ([]models.FolderShare, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FolderShare), args.Error(1)
}

func (m *mockFolderRepository) DeleteSharesByFolder(ctx context.Context, folderID int64) error {
	args := m.Called(ctx, folderID)
	return args.Error(0)
}

func (m *mockFolderRepository) DeleteSharesByUser(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// Mock user repository

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock session repository

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockSessionRepository) Touch(ctx context.Context, token string, expiresAt, lastSeen time.Time) error {
	args := m.Called(ctx, token, expiresAt, lastSeen)
	return args.Error(0)
}

func (m *mockSessionRepository) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockSessionRepository) DeleteByUser(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// Mock retry queue repository

type mockRetryQueueRepository struct {
	mock.Mock
}

func (m *mockRetryQueueRepository) CreateEmbed(ctx context.Context, req *models.FailedEmbedRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockRetryQueueRepository) PendingEmbeds(ctx context.Context, maxRetries, limit int) ([]models.FailedEmbedRequest, error) {
	args := m.Called(ctx, maxRetries, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FailedEmbedRequest), args.Error(1)
}

func (m *mockRetryQueueRepository) ClaimEmbed(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockRetryQueueRepository) MarkEmbedSucceeded(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRetryQueueRepository) MarkEmbedFailedAttempt(ctx context.Context, id int64, maxRetries int, errMsg string) error {
	args := m.Called(ctx, id, maxRetries, errMsg)
	return args.Error(0)
}

func (m *mockRetryQueueRepository) CreateDeletion(ctx context.Context, req *models.FailedIndexDeletion) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockRetryQueueRepository) PendingDeletions(ctx context.Context, maxRetries, limit int) ([]models.FailedIndexDeletion, error) {
	args := m.Called(ctx, maxRetries, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FailedIndexDeletion), args.Error(1)
}

func (m *mockRetryQueueRepository) ClaimDeletion(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockRetryQueueRepository) MarkDeletionSucceeded(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRetryQueueRepository) MarkDeletionFailedAttempt(ctx context.Context, id int64, maxRetries int, errMsg string) error {
	args := m.Called(ctx, id, maxRetries, errMsg)
	return args.Error(0)
}

func (m *mockRetryQueueRepository) Stats(ctx context.Context) (*models.RetryQueueStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RetryQueueStats), args.Error(1)
}

func (m *mockRetryQueueRepository) CleanupSucceeded(ctx context.Context, olderThan time.Duration) error {
	args := m.Called(ctx, olderThan)
	return args.Error(0)
}

// Mock embedding dispatcher

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Submit(ctx context.Context, task EmbeddingTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockDispatcher) StartWorkers() {}

func (m *mockDispatcher) StopWorkers() {}
