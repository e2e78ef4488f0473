package orders_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"poslink/internal/cache"
	"poslink/internal/config"
	"poslink/internal/database"
	"poslink/internal/logger"
	"poslink/internal/models"
	"poslink/internal/orders"
	"poslink/internal/services/catalog"

	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	processor *orders.Processor
	movements *int
	failNext  *bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	movements := 0
	failNext := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock/movements" {
			http.NotFound(w, r)
			return
		}
		if failNext {
			http.Error(w, "pos unavailable", http.StatusBadGateway)
			return
		}
		movements++
		var req struct {
			Quantity int    `json:"Quantity"`
			Type     string `json:"Type"`
			Notes    string `json:"Notes"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Quantity >= 0 {
			t.Errorf("order decrement must be negative, got %d", req.Quantity)
		}
		if req.Type != "OUT" {
			t.Errorf("want movement type OUT, got %q", req.Type)
		}
		if !strings.Contains(req.Notes, "Order ") {
			t.Errorf("movement note must reference the order, got %q", req.Notes)
		}
		json.NewEncoder(w).Encode(map[string]int{"new_stock": 5})
	}))
	t.Cleanup(ts.Close)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.New("sqlite://file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{POSAPIURL: ts.URL, POSAPIToken: "tok", POSLocationID: "loc", CacheTTLHours: 1}
	log := logger.New("error")
	client := catalog.NewClient(cfg, cache.New(db.DB), log)

	return &fixture{
		db:        db.DB,
		processor: orders.NewProcessor(db.DB, client, log),
		movements: &movements,
		failNext:  &failNext,
	}
}

// seedOrder creates a paid order with one mapped line item (qty 2) and,
// when withUnmapped is set, one item whose product has no POS tags.
func seedOrder(t *testing.T, f *fixture, withUnmapped bool) string {
	t.Helper()

	mapped := models.Product{SKU: "RP-2000", Name: "Return Pump 2000"}
	if err := f.db.Create(&mapped).Error; err != nil {
		t.Fatal(err)
	}
	if err := models.SetTag(f.db, models.EntityKindProduct, mapped.ID, models.TagPOSProductID, "42"); err != nil {
		t.Fatal(err)
	}
	if err := models.SetTag(f.db, models.EntityKindProduct, mapped.ID, models.TagPOSVariationID, "420"); err != nil {
		t.Fatal(err)
	}

	order := models.Order{Number: "1001", Status: models.OrderStatusPaid}
	if err := f.db.Create(&order).Error; err != nil {
		t.Fatal(err)
	}
	items := []models.OrderItem{{OrderID: order.ID, ProductID: mapped.ID, Quantity: 2, Price: 19.90}}
	if withUnmapped {
		unmapped := models.Product{SKU: "LOCAL-1", Name: "Local Only"}
		if err := f.db.Create(&unmapped).Error; err != nil {
			t.Fatal(err)
		}
		items = append(items, models.OrderItem{OrderID: order.ID, ProductID: unmapped.ID, Quantity: 1, Price: 5})
	}
	for i := range items {
		if err := f.db.Create(&items[i]).Error; err != nil {
			t.Fatal(err)
		}
	}
	return order.ID
}

func TestProcessOrderInventoryAtMostOnce(t *testing.T) {
	f := newFixture(t)
	orderID := seedOrder(t, f, false)

	first, err := f.processor.ProcessOrderInventory(context.Background(), orderID)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Success || first.AlreadySynced {
		t.Fatalf("first run: %+v", first)
	}
	if *f.movements != 1 {
		t.Fatalf("want 1 movement call, got %d", *f.movements)
	}

	// Second trigger path fires for the same order.
	second, err := f.processor.ProcessOrderInventory(context.Background(), orderID)
	if err != nil {
		t.Fatal(err)
	}
	if !second.AlreadySynced {
		t.Fatalf("second run must short-circuit: %+v", second)
	}
	if *f.movements != 1 {
		t.Fatalf("inventory decremented more than once: %d calls", *f.movements)
	}

	flag, found, err := models.GetTag(f.db, models.EntityKindOrder, orderID, models.TagInventorySynced)
	if err != nil || !found || flag != "true" {
		t.Fatalf("synced flag not set: %q %v %v", flag, found, err)
	}

	var notes []models.OrderNote
	f.db.Where("order_id = ?", orderID).Find(&notes)
	if len(notes) != 1 || notes[0].Kind != "info" {
		t.Fatalf("want one info annotation, got %+v", notes)
	}
}

func TestProcessOrderInventoryUnmappedItem(t *testing.T) {
	f := newFixture(t)
	orderID := seedOrder(t, f, true)

	result, err := f.processor.ProcessOrderInventory(context.Background(), orderID)
	if err != nil {
		t.Fatal(err)
	}
	// Missing mapping is a per-item error, not fatal for the order.
	if !result.Success {
		t.Fatalf("unmapped item must not fail the order: %+v", result)
	}
	if len(result.Items) != 2 {
		t.Fatalf("want 2 item results, got %+v", result.Items)
	}
	var unmappedErrors int
	for _, item := range result.Items {
		if item.Error != "" {
			unmappedErrors++
		}
	}
	if unmappedErrors != 1 {
		t.Fatalf("want 1 per-item error, got %+v", result.Items)
	}
	if *f.movements != 1 {
		t.Fatalf("only the mapped item may move stock, got %d calls", *f.movements)
	}
}

func TestProcessOrderInventoryRemoteFailureRetryable(t *testing.T) {
	f := newFixture(t)
	orderID := seedOrder(t, f, false)

	*f.failNext = true
	result, err := f.processor.ProcessOrderInventory(context.Background(), orderID)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatalf("remote failure must not report success: %+v", result)
	}

	// Flag stays unset so the order remains retryable.
	_, found, err := models.GetTag(f.db, models.EntityKindOrder, orderID, models.TagInventorySynced)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("failed sync must not set the synced flag")
	}

	var notes []models.OrderNote
	f.db.Where("order_id = ? AND kind = ?", orderID, "error").Find(&notes)
	if len(notes) != 1 {
		t.Fatalf("want one error annotation, got %+v", notes)
	}

	// The retry succeeds and decrements exactly once.
	*f.failNext = false
	retry, err := f.processor.ProcessOrderInventory(context.Background(), orderID)
	if err != nil {
		t.Fatal(err)
	}
	if !retry.Success || retry.AlreadySynced {
		t.Fatalf("retry: %+v", retry)
	}
	if *f.movements != 1 {
		t.Fatalf("want 1 successful movement, got %d", *f.movements)
	}
}

func TestProcessOrderInventoryUnknownOrder(t *testing.T) {
	f := newFixture(t)

	if _, err := f.processor.ProcessOrderInventory(context.Background(), "nope"); err == nil {
		t.Fatal("unknown order must error")
	}
}
