package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Product struct {
	ID               string    `json:"id" gorm:"type:uuid;primary_key"`
	SKU              string    `json:"sku" gorm:"uniqueIndex;not null"`
	Name             string    `json:"name" gorm:"not null"`
	Description      string    `json:"description"`
	Price            float64   `json:"price" gorm:"type:decimal(10,2)"`
	Weight           *float64  `json:"weight"`
	Length           *float64  `json:"length"`
	Width            *float64  `json:"width"`
	Height           *float64  `json:"height"`
	RequiresShipping bool      `json:"requires_shipping"`
	Brand            *string   `json:"brand"`
	Provider         *string   `json:"provider"`
	StockQuantity    int       `json:"stock_quantity"`
	StockStatus      string    `json:"stock_status" gorm:"default:OUT_OF_STOCK"`
	CategoryIDs      []string  `json:"category_ids" gorm:"serializer:json"`
	ImageID          *string   `json:"image_id"`
	GalleryIDs       string    `json:"gallery_ids"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

const (
	StockStatusInStock    = "IN_STOCK"
	StockStatusOutOfStock = "OUT_OF_STOCK"
)

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
