package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/juntaplay/juntaplay/internal/pkg/database"
	"github.com/juntaplay/juntaplay/internal/pkg/groupbuy"
	"github.com/juntaplay/juntaplay/internal/pkg/jobqueue"
	"github.com/juntaplay/juntaplay/internal/pkg/metrics/counter"
)

// HandlePaymentWebhook receives payment provider notifications. Signature
// verification happens in the route middleware; a 500 from here tells the
// provider to retry the delivery.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	dispatcher := jobqueue.NewDispatcher(jobqueue.GetManager().GetQueue())
	svc := groupbuy.NewServiceFromDB(database.GetDB(), dispatcher)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := svc.ProcessPaymentEvent(ctx, rawBody)
	if err != nil {
		switch {
		case errors.Is(err, groupbuy.ErrInvalidPayload):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		case errors.Is(err, groupbuy.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
		case errors.Is(err, groupbuy.ErrAmountMismatch):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "amount_mismatch"})
		default:
			log.Errorf("[Webhook] processing failed (event=%s): %v", eventKeyOf(result), err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
		}
	}

	switch {
	case result.Duplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case result.Ignored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	case result.AlreadyPaid:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "already_paid": true})
	default:
		bumpPlanCounters(result)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}

// bumpPlanCounters records per-plan stats in Redis, best effort.
func bumpPlanCounters(result *groupbuy.ProcessResult) {
	if result.PlanID == 0 {
		return
	}
	if err := counter.AddPaidOrder(result.PlanID); err != nil {
		log.Debugf("[Webhook] paid order counter for plan %d: %v", result.PlanID, err)
	}
	if result.Contemplated {
		if err := counter.AddContemplation(result.PlanID); err != nil {
			log.Debugf("[Webhook] contemplation counter for plan %d: %v", result.PlanID, err)
		}
	}
}

func eventKeyOf(result *groupbuy.ProcessResult) string {
	if result == nil {
		return ""
	}
	return result.EventKey
}
