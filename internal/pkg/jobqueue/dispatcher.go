package jobqueue

import (
	"github.com/juntaplay/juntaplay/app/models"
)

// Dispatcher enqueues engine events as background jobs. It implements the
// engine's Dispatcher interface, keeping notification delivery off the
// webhook request path.
type Dispatcher struct {
	queue *Queue
}

// NewDispatcher creates a dispatcher on top of a queue.
func NewDispatcher(queue *Queue) *Dispatcher {
	return &Dispatcher{queue: queue}
}

// GroupContemplated enqueues the group-complete fan-out.
func (d *Dispatcher) GroupContemplated(group *models.Group, winnerUserID uint, memberUserIDs []uint) error {
	payload := GroupContemplatedJobPayload{
		GroupID:       group.ID,
		GroupPublicID: group.PublicID,
		PlanID:        group.PlanID,
		WinnerUserID:  winnerUserID,
		MemberUserIDs: memberUserIDs,
	}
	_, err := d.queue.EnqueueJob(JobTypeGroupContemplated, payload.ToMap())
	return err
}

// AmountMismatchAlert enqueues the manual-review alert for a mispriced order.
func (d *Dispatcher) AmountMismatchAlert(order *models.Order, expectedCents int64) error {
	payload := AmountMismatchJobPayload{
		OrderID:       order.ID,
		OrderPublicID: order.PublicID,
		UserID:        order.UserID,
		AmountCents:   order.AmountCents,
		ExpectedCents: expectedCents,
	}
	_, err := d.queue.EnqueueJob(JobTypeAmountMismatchAlert, payload.ToMap())
	return err
}
