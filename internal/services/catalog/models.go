package catalog

import "fmt"

type RemoteCategory struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
}

type RemoteProduct struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Status           string            `json:"status"`
	Brand            *string           `json:"brand"`
	Provider         *string           `json:"provider"`
	RequiresShipping bool              `json:"requires_shipping"`
	Categories       []int64           `json:"categories"`
	Images           []string          `json:"images"`
	Variations       []RemoteVariation `json:"variations"`
}

type RemoteVariation struct {
	ID     int64    `json:"id"`
	SKU    string   `json:"sku"`
	Price  float64  `json:"price"`
	Weight *float64 `json:"weight"`
	Length *float64 `json:"length"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Validate rejects malformed category records at the decode boundary.
func (c *RemoteCategory) Validate() error {
	if c.ID == 0 {
		return fmt.Errorf("category missing id")
	}
	if c.Name == "" {
		return fmt.Errorf("category %d missing name", c.ID)
	}
	return nil
}

// Validate rejects malformed product records at the decode boundary.
// Variation shape is checked here; business rules (variation count, SKU
// presence) are sync policy, not decode errors.
func (p *RemoteProduct) Validate() error {
	if p.ID == 0 {
		return fmt.Errorf("product missing id")
	}
	if p.Name == "" {
		return fmt.Errorf("product %d missing name", p.ID)
	}
	if p.Status != StatusActive && p.Status != StatusInactive {
		return fmt.Errorf("product %d has invalid status %q", p.ID, p.Status)
	}
	for _, v := range p.Variations {
		if v.ID == 0 {
			return fmt.Errorf("product %d has variation without id", p.ID)
		}
	}
	return nil
}

type stockCheckRequest struct {
	ProductID      int64  `json:"ProductID"`
	VariationID    int64  `json:"VariationID"`
	LocationID     string `json:"LocationID"`
	SalesChannelID string `json:"SalesChannelID"`
}

type stockCheckResponse struct {
	Quantity int `json:"quantity"`
}

type stockMovementRequest struct {
	ProductID   int64  `json:"ProductID"`
	VariationID int64  `json:"VariationID"`
	LocationID  string `json:"LocationID"`
	Quantity    int    `json:"Quantity"`
	Notes       string `json:"Notes"`
	Type        string `json:"Type"`
}

type stockMovementResponse struct {
	NewStock int `json:"new_stock"`
}
