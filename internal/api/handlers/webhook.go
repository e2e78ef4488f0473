package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"poslink/internal/logger"
	"poslink/internal/orders"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	processor *orders.Processor
	secret    string
	logger    *logger.Logger
}

func NewWebhookHandler(processor *orders.Processor, secret string, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, secret: secret, logger: logger}
}

// OrderPaid handles the inbound order-paid delivery. The signature covers
// the raw body; without a configured secret validation is permissive, a
// development-mode escape hatch.
func (h *WebhookHandler) OrderPaid(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}

	if h.secret != "" {
		signature := c.GetHeader("X-Webhook-Signature")
		if !validSignature(payload, signature, h.secret) {
			h.logger.Error("Rejected webhook with invalid signature")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result, err := h.processor.ProcessOrderInventory(c.Request.Context(), body.ID)
	if err != nil {
		h.logger.Error("Failed to process order webhook: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process order"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func validSignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
