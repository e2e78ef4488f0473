package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attachment is a media object ingested from a remote image URL. The source
// URL is kept as a durable tag so repeated ingests of the same URL reuse the
// stored attachment instead of re-downloading.
type Attachment struct {
	ID          string    `json:"id" gorm:"type:uuid;primary_key"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
