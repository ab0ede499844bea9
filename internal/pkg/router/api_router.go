package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/juntaplay/juntaplay/internal/pkg/constants"
	"github.com/juntaplay/juntaplay/internal/pkg/jobqueue"
	"github.com/juntaplay/juntaplay/internal/pkg/statistics"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	api.Get(constants.HealthRoute, handleHealth)
	api.Get(constants.StatsRoute, handleStats)
}

// handleHealth reports queue depth so operators can see whether notification
// dispatch is keeping up.
func handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	queue := jobqueue.GetManager().GetQueue()
	pending, err := queue.GetQueueSize(ctx)
	if err != nil {
		pending = -1
	}
	processing, err := queue.GetProcessingSize(ctx)
	if err != nil {
		processing = -1
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":          "ok",
		"jobs_pending":    pending,
		"jobs_processing": processing,
	})
}

func handleStats(c *fiber.Ctx) error {
	stats := statistics.GetStatistics()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"total_users":        stats.TotalUsers,
		"total_groups":       stats.TotalGroups,
		"contemplated_today": stats.TodayContemplated,
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
