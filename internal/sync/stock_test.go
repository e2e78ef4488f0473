package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"poslink/internal/models"
)

// seedMapped creates n locally-mapped products tagged with POS ids. Remote
// product id is i+1, variation id (i+1)*10.
func seedMapped(t *testing.T, env *testEnv, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		product := models.Product{
			SKU:  fmt.Sprintf("SKU-%d", i+1),
			Name: fmt.Sprintf("Item %d", i+1),
		}
		if err := env.db.Create(&product).Error; err != nil {
			t.Fatal(err)
		}
		remoteID := strconv.Itoa(i + 1)
		if err := models.SetTag(env.db, models.EntityKindProduct, product.ID, models.TagPOSProductID, remoteID); err != nil {
			t.Fatal(err)
		}
		if err := models.SetTag(env.db, models.EntityKindProduct, product.ID, models.TagPOSVariationID, remoteID+"0"); err != nil {
			t.Fatal(err)
		}
	}
}

// stockServer answers /stock/check with a quantity derived from the product
// id: odd ids are in stock with id*2 units, even ids are out of stock.
func stockServer(t *testing.T, fail map[int64]bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock/check" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			ProductID int64 `json:"ProductID"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if fail[req.ProductID] {
			http.Error(w, "stock unavailable", http.StatusBadGateway)
			return
		}
		quantity := 0
		if req.ProductID%2 == 1 {
			quantity = int(req.ProductID) * 2
		}
		json.NewEncoder(w).Encode(map[string]int{"quantity": quantity})
	})
}

func TestSyncAllStockWindows(t *testing.T) {
	env := newTestEnv(t, stockServer(t, nil))
	seedMapped(t, env, 5)

	// An unmapped product must stay outside the sweep.
	unmapped := models.Product{SKU: "UNMAPPED", Name: "Local Only"}
	if err := env.db.Create(&unmapped).Error; err != nil {
		t.Fatal(err)
	}

	s := env.stock(t, 2, 30*time.Second)

	var processed, updated int
	offset := 0
	for i := 0; i < 10; i++ {
		result := s.SyncAll(context.Background(), offset)
		if !result.Success {
			t.Fatalf("sync failed at offset %d: %s", offset, result.Message)
		}
		if result.Total != 5 {
			t.Fatalf("want total 5 mapped products, got %d", result.Total)
		}
		if result.Completed {
			if processed != 5 {
				t.Fatalf("want 5 processed before completion, got %d", processed)
			}
			break
		}
		if result.Processed == 0 || result.Processed > 2 {
			t.Fatalf("window size violated: %+v", result)
		}
		processed += result.Processed
		updated += result.Updated
		if result.NextOffset != offset+result.Processed {
			t.Fatalf("offset math broken: %+v", result)
		}
		offset = result.NextOffset
	}
	if updated != 5 {
		t.Fatalf("want 5 updated, got %d", updated)
	}

	// Quantities and derived statuses follow the remote answers.
	var first models.Product
	if err := env.db.First(&first, "sku = ?", "SKU-1").Error; err != nil {
		t.Fatal(err)
	}
	if first.StockQuantity != 2 || first.StockStatus != models.StockStatusInStock {
		t.Fatalf("odd id must be in stock: %+v", first)
	}
	var second models.Product
	if err := env.db.First(&second, "sku = ?", "SKU-2").Error; err != nil {
		t.Fatal(err)
	}
	if second.StockQuantity != 0 || second.StockStatus != models.StockStatusOutOfStock {
		t.Fatalf("even id must be out of stock: %+v", second)
	}

	var untouched models.Product
	if err := env.db.First(&untouched, "sku = ?", "UNMAPPED").Error; err != nil {
		t.Fatal(err)
	}
	if untouched.StockStatus == models.StockStatusInStock {
		t.Fatal("unmapped product must not be touched")
	}
}

func TestSyncAllStockPerItemFailure(t *testing.T) {
	env := newTestEnv(t, stockServer(t, map[int64]bool{2: true}))
	seedMapped(t, env, 3)

	s := env.stock(t, 10, 30*time.Second)
	result := s.SyncAll(context.Background(), 0)
	if !result.Success {
		t.Fatalf("per-item failure must not abort the batch: %s", result.Message)
	}
	if result.Updated != 2 || result.Failed != 1 {
		t.Fatalf("want 2 updated 1 failed, got %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("want 1 error detail, got %v", result.Errors)
	}
}

func TestSyncAllStockYieldsOnDeadline(t *testing.T) {
	env := newTestEnv(t, stockServer(t, nil))
	seedMapped(t, env, 4)

	s := env.stock(t, 10, 0)
	result := s.SyncAll(context.Background(), 0)
	if !result.Success || result.Completed {
		t.Fatalf("expected a suspended batch: %+v", result)
	}
	if result.Processed != 1 || result.NextOffset != 1 {
		t.Fatalf("want exactly one item before yield, got %+v", result)
	}
}
