package constants

// Static route constants
const (
	PaymentWebhookRoute = "/webhooks/payments"
	APIRoute            = "/api"
	HealthRoute         = "/v1/health"
	StatsRoute          = "/v1/stats"
)
