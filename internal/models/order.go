package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Order struct {
	ID        string      `json:"id" gorm:"type:uuid;primary_key"`
	Number    string      `json:"number" gorm:"uniqueIndex;not null"`
	Status    OrderStatus `json:"status" gorm:"default:PENDING"`
	Items     []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type OrderItem struct {
	ID        string  `json:"id" gorm:"type:uuid;primary_key"`
	OrderID   string  `json:"order_id" gorm:"index;not null"`
	ProductID string  `json:"product_id" gorm:"not null"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price" gorm:"type:decimal(10,2)"`
}

// OrderNote is a visible annotation on an order, rendered in the operator
// timeline. Inventory sync outcomes are recorded here.
type OrderNote struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key"`
	OrderID   string    `json:"order_id" gorm:"index;not null"`
	Kind      string    `json:"kind" gorm:"default:info"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

func (n *OrderNote) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}
