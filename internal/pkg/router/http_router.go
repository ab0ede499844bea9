package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/juntaplay/juntaplay/app/controllers"
	"github.com/juntaplay/juntaplay/internal/pkg/constants"
	"github.com/juntaplay/juntaplay/internal/pkg/middleware"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Payment provider webhooks (no CSRF, HMAC-signature authenticated)
	app.Post(constants.PaymentWebhookRoute, middleware.WebhookSignatureMiddleware(), controllers.HandlePaymentWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
