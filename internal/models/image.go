package models

import (
	"time"
)

// Image is the metadata row for one uploaded file. RelativePath is
// deterministic from (owner, folder, filename): images/{owner}/{folder}/{name}.
// The bytes themselves live on disk under the data root.
type Image struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID      int64     `json:"owner_id" gorm:"not null;index"`
	FolderID     int64     `json:"folder_id" gorm:"not null;index"`
	RelativePath string    `json:"relative_path" gorm:"not null;type:text"`
	UploadedAt   time.Time `json:"uploaded_at" gorm:"autoCreateTime"`

	// Relationships
	Owner  User   `json:"-" gorm:"foreignKey:OwnerID"`
	Folder Folder `json:"-" gorm:"foreignKey:FolderID"`
}

// TableName returns the table name for Image
func (Image) TableName() string {
	return "images"
}
