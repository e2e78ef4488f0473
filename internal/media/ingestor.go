// Package media ingests remote product images into the local store.
// Dedup is by source URL: every stored attachment carries its origin URL as
// a durable tag, so a repeat ingest is a single tag lookup.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"poslink/internal/logger"
	"poslink/internal/models"

	"gorm.io/gorm"
)

type Ingestor struct {
	db         *gorm.DB
	httpClient *http.Client
	logger     *logger.Logger
}

func NewIngestor(db *gorm.DB, log *logger.Logger) *Ingestor {
	return &Ingestor{
		db: db,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: log,
	}
}

// Ingest downloads url into an attachment and returns its id. A previously
// ingested URL returns the existing attachment without any network traffic.
func (i *Ingestor) Ingest(ctx context.Context, url string) (string, error) {
	existingID, found, err := models.FindEntityByTag(i.db, models.EntityKindAttachment, models.TagSourceURL, url)
	if err != nil {
		return "", err
	}
	if found {
		var attachment models.Attachment
		err := i.db.Select("id").First(&attachment, "id = ?", existingID).Error
		if err == nil {
			return existingID, nil
		}
		if err != gorm.ErrRecordNotFound {
			return "", err
		}
		// Tag points at a deleted attachment; re-download below.
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download failed: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}

	attachment := models.Attachment{
		Filename:    path.Base(req.URL.Path),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		Data:        data,
	}
	if err := i.db.Create(&attachment).Error; err != nil {
		return "", fmt.Errorf("failed to store attachment: %w", err)
	}
	if err := models.SetTag(i.db, models.EntityKindAttachment, attachment.ID, models.TagSourceURL, url); err != nil {
		return "", err
	}
	return attachment.ID, nil
}
