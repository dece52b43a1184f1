package models

import (
	"time"
)

// Folder groups a user's images; folder names are unique per owner.
type Folder struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID   int64     `json:"owner_id" gorm:"not null;uniqueIndex:idx_folders_owner_name"`
	Name      string    `json:"name" gorm:"not null;size:255;uniqueIndex:idx_folders_owner_name"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	// Relationships
	Owner  User          `json:"-" gorm:"foreignKey:OwnerID"`
	Images []Image       `json:"-" gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE"`
	Shares []FolderShare `json:"-" gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for Folder
func (Folder) TableName() string {
	return "folders"
}

// SharePermission is the access level granted by a folder share.
type SharePermission string

const (
	SharePermissionView SharePermission = "view"
)

// FolderShare grants another user read access to a folder.
// Unique on (folder_id, shared_with_user_id); removed with the folder.
type FolderShare struct {
	ID               int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	FolderID         int64           `json:"folder_id" gorm:"not null;uniqueIndex:idx_shares_folder_user"`
	OwnerID          int64           `json:"owner_id" gorm:"not null;index"`
	SharedWithUserID int64           `json:"shared_with_user_id" gorm:"not null;uniqueIndex:idx_shares_folder_user"`
	Permission       SharePermission `json:"permission" gorm:"type:varchar(20);not null;default:'view'"`
	CreatedAt        time.Time       `json:"created_at" gorm:"autoCreateTime"`

	// Relationships
	Folder         Folder `json:"-" gorm:"foreignKey:FolderID"`
	Owner          User   `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	SharedWithUser User   `json:"-" gorm:"foreignKey:SharedWithUserID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for FolderShare
func (FolderShare) TableName() string {
	return "folder_shares"
}
