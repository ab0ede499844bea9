package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/juntaplay/juntaplay/internal/pkg/env"
	"github.com/juntaplay/juntaplay/internal/pkg/groupbuy"
)

const SignatureHeader = "X-Webhook-Signature"

// WebhookSignatureMiddleware authenticates payment provider deliveries by
// checking the HMAC signature over the raw request body. It fails closed:
// a missing header or an unconfigured secret rejects the delivery.
func WebhookSignatureMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		signature := strings.TrimSpace(c.Get(SignatureHeader))
		secret := env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")

		if !groupbuy.VerifyWebhookSignature(c.BodyRaw(), signature, secret) {
			log.Warnf("[Webhook] rejected delivery with invalid signature from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
		}

		return c.Next()
	}
}
