package models

import (
	"time"
)

// RequestStatus is the lifecycle state of a queued retry row.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusInProgress RequestStatus = "in_progress"
	StatusSucceeded  RequestStatus = "succeeded"
	StatusFailed     RequestStatus = "failed"
)

// FailedImageRef is one image inside a failed embed request payload.
type FailedImageRef struct {
	ImageID  int64  `json:"image_id"`
	FilePath string `json:"file_path"`
}

// FailedEmbedRequest is a durable record of an embed call that could not
// reach the search backend. Rows stay until they reach a terminal status.
type FailedEmbedRequest struct {
	ID            int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID        int64         `json:"user_id" gorm:"not null;index"`
	FolderID      int64         `json:"folder_id" gorm:"not null;index"`
	ImagesPayload string        `json:"images_payload" gorm:"type:text;not null"` // JSON list of FailedImageRef
	ImageCount    int           `json:"image_count" gorm:"not null;default:0"`
	Status        RequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	RetryCount    int           `json:"retry_count" gorm:"not null;default:0"`
	ErrorMessage  *string       `json:"error_message" gorm:"type:text"`
	CreatedAt     time.Time     `json:"created_at" gorm:"autoCreateTime"`
	LastRetryAt   *time.Time    `json:"last_retry_at"`
}

// TableName returns the table name for FailedEmbedRequest
func (FailedEmbedRequest) TableName() string {
	return "failed_embed_requests"
}

// FailedIndexDeletion is a durable record of a delete-index call that could
// not reach the search backend.
type FailedIndexDeletion struct {
	ID           int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       int64         `json:"user_id" gorm:"not null;index"`
	FolderID     int64         `json:"folder_id" gorm:"not null;index"`
	Status       RequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	RetryCount   int           `json:"retry_count" gorm:"not null;default:0"`
	ErrorMessage *string       `json:"error_message" gorm:"type:text"`
	CreatedAt    time.Time     `json:"created_at" gorm:"autoCreateTime"`
	LastRetryAt  *time.Time    `json:"last_retry_at"`
}

// TableName returns the table name for FailedIndexDeletion
func (FailedIndexDeletion) TableName() string {
	return "failed_index_deletions"
}

// RetryQueueStats summarizes queue depth by kind and status for the admin API.
type RetryQueueStats struct {
	PendingEmbeds         int64 `json:"pending_embeds"`
	PendingIndexDeletions int64 `json:"pending_index_deletions"`
	FailedEmbeds          int64 `json:"failed_embeds"`
	FailedIndexDeletions  int64 `json:"failed_index_deletions"`
}
