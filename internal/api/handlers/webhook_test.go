package handlers_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"poslink/internal/api/handlers"
	"poslink/internal/cache"
	"poslink/internal/config"
	"poslink/internal/database"
	"poslink/internal/logger"
	"poslink/internal/models"
	"poslink/internal/orders"
	"poslink/internal/services/catalog"

	"github.com/gin-gonic/gin"
)

func newWebhookRouter(t *testing.T, secret string) (*gin.Engine, string, *int) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	movements := 0
	pos := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		movements++
		json.NewEncoder(w).Encode(map[string]int{"new_stock": 3})
	}))
	t.Cleanup(pos.Close)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.New("sqlite://file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}

	product := models.Product{SKU: "WH-1", Name: "Wave Pump"}
	if err := db.DB.Create(&product).Error; err != nil {
		t.Fatal(err)
	}
	if err := models.SetTag(db.DB, models.EntityKindProduct, product.ID, models.TagPOSProductID, "7"); err != nil {
		t.Fatal(err)
	}
	if err := models.SetTag(db.DB, models.EntityKindProduct, product.ID, models.TagPOSVariationID, "70"); err != nil {
		t.Fatal(err)
	}
	order := models.Order{Number: "2002", Status: models.OrderStatusPaid}
	if err := db.DB.Create(&order).Error; err != nil {
		t.Fatal(err)
	}
	item := models.OrderItem{OrderID: order.ID, ProductID: product.ID, Quantity: 1, Price: 49}
	if err := db.DB.Create(&item).Error; err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{POSAPIURL: pos.URL, POSAPIToken: "tok", POSLocationID: "loc", CacheTTLHours: 1}
	log := logger.New("error")
	client := catalog.NewClient(cfg, cache.New(db.DB), log)
	processor := orders.NewProcessor(db.DB, client, log)

	router := gin.New()
	handler := handlers.NewWebhookHandler(processor, secret, log)
	router.POST("/webhooks/orders", handler.OrderPaid)
	return router, order.ID, &movements
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(router *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookValidSignature(t *testing.T) {
	router, orderID, movements := newWebhookRouter(t, "s3cret")
	payload := []byte(`{"id":"` + orderID + `"}`)

	w := postWebhook(router, payload, sign(payload, "s3cret"))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", w.Code, w.Body.String())
	}
	var result orders.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.AlreadySynced {
		t.Fatalf("unexpected result: %+v", result)
	}
	if *movements != 1 {
		t.Fatalf("want 1 stock movement, got %d", *movements)
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	router, orderID, movements := newWebhookRouter(t, "s3cret")
	payload := []byte(`{"id":"` + orderID + `"}`)

	w := postWebhook(router, payload, sign(payload, "wrong-secret"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
	if w := postWebhook(router, payload, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing signature: want 401, got %d", w.Code)
	}
	if *movements != 0 {
		t.Fatalf("rejected delivery must not touch stock, got %d calls", *movements)
	}
}

func TestWebhookNoSecretIsPermissive(t *testing.T) {
	router, orderID, _ := newWebhookRouter(t, "")
	payload := []byte(`{"id":"` + orderID + `"}`)

	if w := postWebhook(router, payload, ""); w.Code != http.StatusOK {
		t.Fatalf("want 200 without secret, got %d", w.Code)
	}
}

func TestWebhookBadPayload(t *testing.T) {
	router, _, _ := newWebhookRouter(t, "")

	if w := postWebhook(router, []byte(`{"id":""}`), ""); w.Code != http.StatusBadRequest {
		t.Fatalf("empty id: want 400, got %d", w.Code)
	}
	if w := postWebhook(router, []byte(`not-json`), ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: want 400, got %d", w.Code)
	}
}

func TestWebhookRedeliveryIsAtMostOnce(t *testing.T) {
	router, orderID, movements := newWebhookRouter(t, "s3cret")
	payload := []byte(`{"id":"` + orderID + `"}`)
	signature := sign(payload, "s3cret")

	if w := postWebhook(router, payload, signature); w.Code != http.StatusOK {
		t.Fatalf("first delivery: got %d", w.Code)
	}
	w := postWebhook(router, payload, signature)
	if w.Code != http.StatusOK {
		t.Fatalf("redelivery: got %d", w.Code)
	}
	var result orders.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.AlreadySynced {
		t.Fatalf("redelivery must short-circuit: %+v", result)
	}
	if *movements != 1 {
		t.Fatalf("want exactly 1 stock movement, got %d", *movements)
	}
}

func TestWebhookUnknownOrder(t *testing.T) {
	router, _, _ := newWebhookRouter(t, "")

	if w := postWebhook(router, []byte(`{"id":"missing"}`), ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("unknown order: want 500, got %d", w.Code)
	}
}
