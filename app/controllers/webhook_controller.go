package controllers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/auroracademy/backend/internal/pkg/billing"
)

type webhookBody struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// HandleMercadoPagoWebhook ingests gateway notifications. The gateway sends
// the topic and resource id either as query parameters (topic/id or
// type/data.id) or in the JSON body; all shapes are accepted.
//
// Response contract: 2xx acknowledges the notification so the gateway stops
// redelivering. Any ingest error returns non-2xx so the gateway redelivers:
// 502 when the gateway fetch itself failed, 500 when the local write did.
// A redelivery re-fetches the payment and runs the same idempotent write, so
// transient failures heal without losing the charge.
func HandleMercadoPagoWebhook(c *fiber.Ctx) error {
	topic, externalID := extractWebhookParams(c)

	result, err := BillingService().Ingest(c.UserContext(), topic, externalID)
	if err != nil {
		if errors.Is(err, billing.ErrExternalService) {
			log.Printf("[WEBHOOK] gateway fetch failed for %s %s: %v", topic, externalID, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "bad_gateway", "status": string(billing.ResultIgnored)})
		}
		log.Printf("[WEBHOOK] ingest error for %s %s: %v", topic, externalID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal", "status": string(result)})
	}

	return c.JSON(fiber.Map{"status": string(result)})
}

func extractWebhookParams(c *fiber.Ctx) (topic, externalID string) {
	topic = strings.TrimSpace(c.Query("topic"))
	if topic == "" {
		topic = strings.TrimSpace(c.Query("type"))
	}
	externalID = strings.TrimSpace(c.Query("data.id"))
	if externalID == "" {
		externalID = strings.TrimSpace(c.Query("id"))
	}

	if topic != "" && externalID != "" {
		return topic, externalID
	}

	var body webhookBody
	if err := c.BodyParser(&body); err == nil {
		if topic == "" {
			topic = strings.TrimSpace(body.Type)
		}
		if externalID == "" {
			externalID = strings.TrimSpace(body.Data.ID)
		}
	}
	return topic, externalID
}
