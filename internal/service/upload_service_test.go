package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/framefind/framefind/internal/apperrors"
	"github.com/framefind/framefind/internal/config"
	"github.com/framefind/framefind/internal/models"
)

// multipartFiles builds real multipart.FileHeader values the way gin hands
// them to the service.
func multipartFiles(t *testing.T, names ...string) []*multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range names {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/images/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))

	return req.MultipartForm.File["files"]
}

func newUploadService(t *testing.T, folders *mockFolderService, images *mockImageRepository, dispatcher *mockDispatcher) (UploadService, string) {
	t.Helper()
	dataRoot := t.TempDir()

	svc := NewUploadService(UploadServiceConfig{
		Folders:    folders,
		ImageRepo:  images,
		Dispatcher: dispatcher,
		Upload: config.UploadConfig{
			AllowedExtensions: []string{".png", ".jpg", ".jpeg"},
			MaxBodyBytes:      50 << 20,
		},
		DataRoot: dataRoot,
		Logger:   zerolog.Nop(),
	})
	return svc, dataRoot
}

func TestUploadService_HappyPath(t *testing.T) {
	folders := new(mockFolderService)
	images := new(mockImageRepository)
	dispatcher := new(mockDispatcher)
	svc, dataRoot := newUploadService(t, folders, images, dispatcher)

	folders.On("ResolveOrCreate", mock.Anything, int64(1), "cats").
		Return(&models.Folder{ID: 2, OwnerID: 1, Name: "cats"}, nil)

	rowInserted := false
	images.On("Create", mock.Anything, mock.AnythingOfType("*models.Image")).
		Run(func(args mock.Arguments) {
			image := args.Get(1).(*models.Image)
			image.ID = 10
			rowInserted = true

			// The file must already be on disk when the row is inserted.
			assert.FileExists(t, filepath.Join(dataRoot, "uploads", "images", "1", "2", "a.jpg"))
		}).Return(nil)

	dispatcher.On("Submit", mock.Anything, mock.MatchedBy(func(task EmbeddingTask) bool {
		// The row exists before its embedding task is enqueued.
		return rowInserted && task.UserID == 1 && task.FolderID == 2 &&
			len(task.Images) == 1 &&
			task.Images[0].ImageID == 10 &&
			task.Images[0].FilePath == "images/1/2/a.jpg"
	})).Return(nil)

	resp, err := svc.Upload(context.Background(), 1, "cats", multipartFiles(t, "a.jpg"))

	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.FolderID)
	assert.Equal(t, 1, resp.UploadedCount)
	dispatcher.AssertExpectations(t)

	content, err := os.ReadFile(filepath.Join(dataRoot, "uploads", "images", "1", "2", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "fake image bytes", string(content))
}

func TestUploadService_ZeroFilesRejected(t *testing.T) {
	folders := new(mockFolderService)
	images := new(mockImageRepository)
	dispatcher := new(mockDispatcher)
	svc, _ := newUploadService(t, folders, images, dispatcher)

	_, err := svc.Upload(context.Background(), 1, "cats", nil)

	require.Error(t, err)
	assert.Equal(t, 400, apperrors.Status(err))
	folders.AssertNotCalled(t, "ResolveOrCreate")
}

func TestUploadService_MixedExtensionsRejectWholeRequest(t *testing.T) {
	folders := new(mockFolderService)
	images := new(mockImageRepository)
	dispatcher := new(mockDispatcher)
	svc, dataRoot := newUploadService(t, folders, images, dispatcher)

	_, err := svc.Upload(context.Background(), 1, "cats",
		multipartFiles(t, "good.jpg", "evil.exe", "fine.png"))

	require.Error(t, err)
	assert.Equal(t, 400, apperrors.Status(err))

	// Nothing was written, inserted or dispatched.
	folders.AssertNotCalled(t, "ResolveOrCreate")
	images.AssertNotCalled(t, "Create")
	dispatcher.AssertNotCalled(t, "Submit")

	entries, readErr := os.ReadDir(filepath.Join(dataRoot, "uploads"))
	if readErr == nil {
		assert.Empty(t, entries)
	}
}

func TestUploadService_ExtensionCheckIsCaseInsensitive(t *testing.T) {
	folders := new(mockFolderService)
	images := new(mockImageRepository)
	dispatcher := new(mockDispatcher)
	svc, _ := newUploadService(t, folders, images, dispatcher)

	folders.On("ResolveOrCreate", mock.Anything, int64(1), "cats").
		Return(&models.Folder{ID: 2, OwnerID: 1, Name: "cats"}, nil)
	images.On("Create", mock.Anything, mock.Anything).Return(nil)
	dispatcher.On("Submit", mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.Upload(context.Background(), 1, "cats", multipartFiles(t, "SHOUTY.JPG"))

	require.NoError(t, err)
	assert.Equal(t, 1, resp.UploadedCount)
}

func TestUploadService_EmptyFolderNameRejected(t *testing.T) {
	folders := new(mockFolderService)
	images := new(mockImageRepository)
	dispatcher := new(mockDispatcher)
	svc, _ := newUploadService(t, folders, images, dispatcher)

	_, err := svc.Upload(context.Background(), 1, "   ", multipartFiles(t, "a.jpg"))

	require.Error(t, err)
	assert.Equal(t, 400, apperrors.Status(err))
}

func TestUploadService_MultipleFilesOneTask(t *testing.T) {
	folders := new(mockFolderService)
	images := new(mockImageRepository)
	dispatcher := new(mockDispatcher)
	svc, _ := newUploadService(t, folders, images, dispatcher)

	folders.On("ResolveOrCreate", mock.Anything, int64(1), "cats").
		Return(&models.Folder{ID: 2, OwnerID: 1, Name: "cats"}, nil)

	var nextID int64
	images.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		nextID++
		args.Get(1).(*models.Image).ID = nextID
	}).Return(nil)

	dispatcher.On("Submit", mock.Anything, mock.MatchedBy(func(task EmbeddingTask) bool {
		return len(task.Images) == 3
	})).Return(nil)

	resp, err := svc.Upload(context.Background(), 1, "cats",
		multipartFiles(t, "a.jpg", "b.png", "c.jpeg"))

	require.NoError(t, err)
	assert.Equal(t, 3, resp.UploadedCount)
	dispatcher.AssertNumberOfCalls(t, "Submit", 1)
}
