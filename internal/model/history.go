package model

import (
	"time"

	"gorm.io/gorm"
)

type SyncStatus string

const (
	StatusSuccess SyncStatus = "SUCCESS"
	StatusFailed  SyncStatus = "FAILED"
)

// History is one executed sync action.
type History struct {
	gorm.Model
	RunID    string     `gorm:"index;not null"`
	Project  string     `gorm:"index;not null"`
	Action   string     `gorm:"not null"`
	Path     string     `gorm:"not null"`
	Status   SyncStatus `gorm:"not null"`
	ErrMsg   string
	SyncedAt time.Time `gorm:"not null"`
}
