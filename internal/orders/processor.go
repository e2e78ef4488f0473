// Package orders pushes local sales back to the POS service: when an order
// is paid, each line item's remote stock is decremented exactly once.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"poslink/internal/logger"
	"poslink/internal/models"
	"poslink/internal/services/catalog"

	"gorm.io/gorm"
)

type Processor struct {
	db     *gorm.DB
	client *catalog.Client
	logger *logger.Logger
}

func NewProcessor(db *gorm.DB, client *catalog.Client, log *logger.Logger) *Processor {
	return &Processor{db: db, client: client, logger: log}
}

type ItemResult struct {
	ProductID      string `json:"product_id"`
	POSProductID   string `json:"pos_product_id,omitempty"`
	POSVariationID string `json:"pos_variation_id,omitempty"`
	Quantity       int    `json:"quantity"`
	NewStock       int    `json:"new_stock,omitempty"`
	Error          string `json:"error,omitempty"`
}

type Result struct {
	Success       bool         `json:"success"`
	AlreadySynced bool         `json:"already_synced"`
	Items         []ItemResult `json:"items"`
	Message       string       `json:"message"`
}

// ProcessOrderInventory decrements remote stock for every resolvable line
// item of the order. A durable "already synced" tag on the order guarantees
// at most one decrement per order even when both trigger paths (local event
// and inbound webhook) fire for it.
func (p *Processor) ProcessOrderInventory(ctx context.Context, orderID string) (*Result, error) {
	var order models.Order
	err := p.db.Preload("Items").First(&order, "id = ?", orderID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	synced, found, err := models.GetTag(p.db, models.EntityKindOrder, order.ID, models.TagInventorySynced)
	if err != nil {
		return nil, err
	}
	if found && synced == "true" {
		p.logger.Info("Order %s inventory already synced, skipping", order.Number)
		return &Result{Success: true, AlreadySynced: true, Message: "Inventory already synced"}, nil
	}

	result := &Result{}
	remoteFailed := false
	for _, item := range order.Items {
		itemResult := p.processItem(ctx, &order, item)
		if itemResult.Error != "" && itemResult.POSProductID != "" {
			// A mapped item whose remote call failed blocks the synced flag
			// so the order stays retryable.
			remoteFailed = true
		}
		result.Items = append(result.Items, itemResult)
	}

	if remoteFailed {
		result.Message = fmt.Sprintf("Inventory sync failed for order %s", order.Number)
		p.note(order.ID, "error", result.Message)
		return result, nil
	}

	if err := models.SetTag(p.db, models.EntityKindOrder, order.ID, models.TagInventorySynced, "true"); err != nil {
		return nil, err
	}
	if err := models.SetTag(p.db, models.EntityKindOrder, order.ID, models.TagInventorySyncedAt, time.Now().Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if itemsJSON, err := json.Marshal(result.Items); err == nil {
		if err := models.SetTag(p.db, models.EntityKindOrder, order.ID, models.TagInventorySyncItems, string(itemsJSON)); err != nil {
			p.logger.Error("Failed to store sync items for order %s: %v", order.ID, err)
		}
	}

	result.Success = true
	result.Message = fmt.Sprintf("Inventory synced with POS for order %s: %d items", order.Number, len(order.Items))
	p.note(order.ID, "info", result.Message)
	return result, nil
}

func (p *Processor) processItem(ctx context.Context, order *models.Order, item models.OrderItem) ItemResult {
	itemResult := ItemResult{ProductID: item.ProductID, Quantity: item.Quantity}

	posProductID, foundProduct, err := models.GetTag(p.db, models.EntityKindProduct, item.ProductID, models.TagPOSProductID)
	if err != nil {
		itemResult.Error = err.Error()
		return itemResult
	}
	posVariationID, foundVariation, err := models.GetTag(p.db, models.EntityKindProduct, item.ProductID, models.TagPOSVariationID)
	if err != nil {
		itemResult.Error = err.Error()
		return itemResult
	}
	if !foundProduct || !foundVariation {
		// No mapping means no remote update; not fatal for the order.
		itemResult.Error = "product has no POS mapping"
		return itemResult
	}
	itemResult.POSProductID = posProductID
	itemResult.POSVariationID = posVariationID

	productID, err := strconv.ParseInt(posProductID, 10, 64)
	if err != nil {
		itemResult.Error = fmt.Sprintf("invalid POS product id %q", posProductID)
		return itemResult
	}
	variationID, err := strconv.ParseInt(posVariationID, 10, 64)
	if err != nil {
		itemResult.Error = fmt.Sprintf("invalid POS variation id %q", posVariationID)
		return itemResult
	}

	note := fmt.Sprintf("Order %s", order.Number)
	newStock, err := p.client.PostInventoryDelta(ctx, productID, variationID, -item.Quantity, note)
	if err != nil {
		itemResult.Error = err.Error()
		return itemResult
	}
	itemResult.NewStock = newStock
	return itemResult
}

func (p *Processor) note(orderID, kind, message string) {
	note := models.OrderNote{OrderID: orderID, Kind: kind, Message: message}
	if err := p.db.Create(&note).Error; err != nil {
		p.logger.Error("Failed to annotate order %s: %v", orderID, err)
	}
}
