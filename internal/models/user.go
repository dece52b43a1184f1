package models

import (
	"time"
)

// User represents a registered account.
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null;size:50"`
	PasswordHash string    `json:"-" gorm:"not null"` // Never expose password hash
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`

	// Relationships
	Folders  []Folder  `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Images   []Image   `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Sessions []Session `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// Session represents an opaque-token login session with sliding expiry.
type Session struct {
	Token     string    `json:"-" gorm:"primaryKey;type:text"`
	UserID    int64     `json:"user_id" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	LastSeen  time.Time `json:"last_seen" gorm:"not null"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// TableName returns the table name for Session
func (Session) TableName() string {
	return "sessions"
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
