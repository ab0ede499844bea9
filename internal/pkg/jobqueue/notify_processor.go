package jobqueue

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/juntaplay/juntaplay/app/models"
	"github.com/juntaplay/juntaplay/internal/pkg/database"
	"github.com/juntaplay/juntaplay/internal/pkg/mail"
)

// processGroupContemplatedJob fans a contemplated group out to its members:
// one notification row per member, plus a winner notice.
func (q *Queue) processGroupContemplatedJob(job *Job) error {
	payload, err := GroupContemplatedJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid group contemplated payload: %w", err)
	}

	db := database.GetDB()
	content := fmt.Sprintf("Your group %s is complete and has been contemplated.", payload.GroupPublicID)
	for _, userID := range payload.MemberUserIDs {
		if err := models.CreateNotification(db, userID, models.NotificationTypeGroupContemplated, content, payload.GroupID); err != nil {
			return fmt.Errorf("notify member %d: %w", userID, err)
		}
	}

	if payload.WinnerUserID != 0 {
		winnerContent := fmt.Sprintf("You were drawn as the winner of group %s.", payload.GroupPublicID)
		if err := models.CreateNotification(db, payload.WinnerUserID, models.NotificationTypeGroupWinner, winnerContent, payload.GroupID); err != nil {
			return fmt.Errorf("notify winner %d: %w", payload.WinnerUserID, err)
		}
	}

	log.Infof("[JobQueue] Dispatched contemplation of group %d to %d members", payload.GroupID, len(payload.MemberUserIDs))
	return nil
}

// processAmountMismatchJob records an alert notification for every admin and
// mails the operations inbox so the order can be reviewed manually.
func (q *Queue) processAmountMismatchJob(job *Job) error {
	payload, err := AmountMismatchJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid amount mismatch payload: %w", err)
	}

	db := database.GetDB()
	content := fmt.Sprintf(
		"Order %s was paid with %d cents but the plan expects %d cents. The order stays pending until reviewed.",
		payload.OrderPublicID, payload.AmountCents, payload.ExpectedCents,
	)

	var admins []models.User
	if err := db.Where("role = ?", models.ROLE_ADMIN).Find(&admins).Error; err != nil {
		return fmt.Errorf("load admins: %w", err)
	}
	for _, admin := range admins {
		if err := models.CreateNotification(db, admin.ID, models.NotificationTypeAmountMismatch, content, payload.OrderID); err != nil {
			return fmt.Errorf("notify admin %d: %w", admin.ID, err)
		}
		if admin.Email != "" {
			// Mail failures are logged by the mailer; the notification row is
			// the durable record.
			_ = mail.SendMail(admin.Email, "Amount mismatch on order "+payload.OrderPublicID, content)
		}
	}

	log.Warnf("[JobQueue] Amount mismatch alert for order %d dispatched to %d admins", payload.OrderID, len(admins))
	return nil
}
