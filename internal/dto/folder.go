package dto

import (
	"time"
)

// FolderInfo is one entry of the accessible-folders listing. Owned folders
// carry is_owner=true; folders shared with the caller also name their owner.
type FolderInfo struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	IsOwner       bool      `json:"is_owner"`
	IsShared      bool      `json:"is_shared"`
	OwnerID       int64     `json:"owner_id"`
	OwnerUsername string    `json:"owner_username"`
	Permission    string    `json:"permission,omitempty"`
	ImageCount    int64     `json:"image_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListFoldersResponse wraps the accessible-folders listing
type ListFoldersResponse struct {
	Folders []FolderInfo `json:"folders"`
}

// DeleteFoldersRequest asks to delete a set of owned folders
type DeleteFoldersRequest struct {
	Token     string  `json:"token" binding:"required"`
	FolderIDs []int64 `json:"folder_ids" binding:"required,min=1"`
}

// ShareFolderRequest grants another user access to a folder
type ShareFolderRequest struct {
	Token          string `json:"token" binding:"required"`
	FolderID       int64  `json:"folder_id" binding:"required"`
	TargetUsername string `json:"target_username" binding:"required"`
	Permission     string `json:"permission" binding:"omitempty,oneof=view"`
}
