package groupbuy

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/juntaplay/juntaplay/app/models"
	"github.com/juntaplay/juntaplay/app/repository"
	"github.com/juntaplay/juntaplay/internal/pkg/env"
	"gorm.io/gorm"
)

// DefaultGroupCapacity is used when neither the plan nor the environment
// configures a capacity.
const DefaultGroupCapacity = 10

// Dispatcher delivers engine events to the notification side. Dispatch is
// fire-and-forget: a failed dispatch is logged and never undoes engine state.
type Dispatcher interface {
	GroupContemplated(group *models.Group, winnerUserID uint, memberUserIDs []uint) error
	AmountMismatchAlert(order *models.Order, expectedCents int64) error
}

// Service drives the group formation and contemplation pipeline for payment
// provider webhooks. Each invocation is an independent short-lived request;
// all cross-delivery coordination happens in the repository's atomic
// operations.
type Service struct {
	repo     Repository
	users    repository.UserRepository
	plans    repository.PlanRepository
	dispatch Dispatcher
}

// NewService creates an engine service from injected collaborators.
func NewService(repo Repository, users repository.UserRepository, plans repository.PlanRepository, dispatch Dispatcher) *Service {
	return &Service{repo: repo, users: users, plans: plans, dispatch: dispatch}
}

// NewServiceFromDB creates an engine service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, dispatch Dispatcher) *Service {
	repos := repository.NewRepositories(db)
	return NewService(NewRepository(db), repos.User, repos.Plan, dispatch)
}

// ProcessPaymentEvent runs the full pipeline for one authenticated webhook
// body: parse, idempotency marker, confirmation filter, order validation,
// group resolution, admission, contemplation and commission. The caller has
// already verified the body's signature.
func (s *Service) ProcessPaymentEvent(ctx context.Context, rawBody []byte) (*ProcessResult, error) {
	_ = ctx

	event, err := ParsePaymentWebhook(rawBody)
	if err != nil {
		return nil, err
	}
	result := &ProcessResult{EventKey: event.Key()}

	created, stored, err := s.repo.InsertProcessedEvent(&models.ProcessedEvent{
		EventKey:      event.Key(),
		EventType:     event.Event,
		PaymentID:     event.Payment.ID,
		PaymentStatus: event.Payment.Status,
		PayloadJSON:   string(rawBody),
	})
	if err != nil {
		return nil, err
	}
	if !created && stored.Completed() {
		result.Duplicate = true
		return result, nil
	}
	// A marker without a completed run belongs to a delivery that failed
	// mid-pipeline; the provider retry may run it again. Every downstream
	// step is individually idempotent, so a partial re-run is safe.

	if !event.IsConfirmed() {
		if err := s.repo.MarkEventProcessed(stored.ID, ""); err != nil {
			return nil, err
		}
		result.Ignored = true
		return result, nil
	}

	if err := s.applyConfirmedPayment(event, result); err != nil {
		if merr := s.repo.MarkEventProcessed(stored.ID, err.Error()); merr != nil {
			log.Errorf("[GroupBuy] marking event %s failed: %v", event.Key(), merr)
		}
		return result, err
	}
	if err := s.repo.MarkEventProcessed(stored.ID, ""); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Service) applyConfirmedPayment(event *PaymentEvent, result *ProcessResult) error {
	ref, err := ParseExternalReference(event.Payment.ExternalReference)
	if err != nil {
		return err
	}

	order, err := s.repo.GetOrderByPublicID(ref.OrderPublicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	result.OrderID = order.PublicID
	result.PlanID = order.PlanID

	if order.IsPaid() {
		result.AlreadyPaid = true
		return nil
	}

	plan, err := s.plans.GetByID(order.PlanID)
	if err != nil {
		return fmt.Errorf("load plan %d: %w", order.PlanID, err)
	}
	expected := plan.ExpectedChargeCents()
	if expected != order.AmountCents {
		if derr := s.dispatch.AmountMismatchAlert(order, expected); derr != nil {
			log.Errorf("[GroupBuy] amount mismatch alert for order %s failed: %v", order.PublicID, derr)
		}
		return ErrAmountMismatch
	}

	group, size, err := s.resolveAndAdmit(order, ref, plan)
	if err != nil {
		return err
	}
	result.GroupID = group.ID
	result.GroupSize = size

	// Flip pending -> paid only after admission succeeded, so no order ends
	// up paid without a seat in a group.
	if _, err := s.repo.MarkOrderPaid(order.ID); err != nil {
		return err
	}

	if size >= group.Capacity {
		contemplatedGroup, winner, contemplated, err := s.repo.ContemplateGroup(group.ID, drawWinner)
		if err != nil {
			return err
		}
		if contemplated {
			result.Contemplated = true
			if winner != nil {
				result.WinnerUserID = winner.UserID
			}
			s.notifyContemplated(contemplatedGroup, winner)
		}
	}

	if group.LeaderID != order.UserID {
		credited, err := s.recordCommission(event, order, group.LeaderID)
		if err != nil {
			return err
		}
		result.Commissioned = credited
	}
	return nil
}

// resolveAndAdmit finds or creates the target group and admits the buyer.
// Directed admissions that find no group, a full group, or an unknown leader
// fall back to opening the buyer's own group; that fallback is a normal path.
func (s *Service) resolveAndAdmit(order *models.Order, ref *ExternalReference, plan *models.Plan) (*models.Group, int, error) {
	if ref.LeaderPublicID != "" {
		leader, err := s.users.GetByPublicID(ref.LeaderPublicID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("resolve leader %s: %w", ref.LeaderPublicID, err)
		}
		if err == nil && leader.ID != order.UserID {
			group, size, admitted, err := s.tryDirectedAdmission(leader.ID, order)
			if err != nil {
				return nil, 0, err
			}
			if admitted {
				return group, size, nil
			}
		}
	}

	return s.admitAsOwnLeader(order, plan)
}

func (s *Service) tryDirectedAdmission(leaderID uint, order *models.Order) (*models.Group, int, bool, error) {
	group, err := s.repo.FindOldestActiveGroup(leaderID, order.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}

	size, err := s.repo.AdmitMember(group.ID, order.UserID, order.ID, models.MembershipRoleMember)
	switch {
	case err == nil:
		return group, size, true, nil
	case errors.Is(err, ErrAlreadyMember):
		fresh, gerr := s.repo.GetGroup(group.ID)
		if gerr != nil {
			return nil, 0, false, gerr
		}
		return fresh, fresh.CurrentSize, true, nil
	case errors.Is(err, ErrGroupFull):
		return nil, 0, false, nil
	default:
		return nil, 0, false, err
	}
}

func (s *Service) admitAsOwnLeader(order *models.Order, plan *models.Plan) (*models.Group, int, error) {
	group, err := s.repo.FindOldestActiveGroup(order.UserID, order.PlanID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		group, err = s.repo.CreateGroup(&models.Group{
			PublicID: uuid.New().String(),
			LeaderID: order.UserID,
			PlanID:   order.PlanID,
			Capacity: groupCapacity(plan),
		})
	}
	if err != nil {
		return nil, 0, err
	}

	size, err := s.repo.AdmitMember(group.ID, order.UserID, order.ID, models.MembershipRoleLeader)
	switch {
	case err == nil:
		return group, size, nil
	case errors.Is(err, ErrAlreadyMember):
		fresh, gerr := s.repo.GetGroup(group.ID)
		if gerr != nil {
			return nil, 0, gerr
		}
		return fresh, fresh.CurrentSize, nil
	default:
		// Includes a full own group: the racing delivery that filled it is
		// about to contemplate it, so the provider retry will land after the
		// group left the active state and open a fresh one.
		return nil, 0, err
	}
}

func (s *Service) recordCommission(event *PaymentEvent, order *models.Order, leaderID uint) (bool, error) {
	beneficiary, err := s.users.GetByID(leaderID)
	if err != nil {
		return false, fmt.Errorf("resolve commission beneficiary %d: %w", leaderID, err)
	}

	rate := CommissionRateBps(models.CommissionSourceGroupReferral)
	created, err := s.repo.InsertCommissionEntry(&models.CommissionEntry{
		SourceType:    models.CommissionSourceGroupReferral,
		Reference:     event.Key(),
		BeneficiaryID: beneficiary.ID,
		OrderID:       order.ID,
		AmountCents:   CommissionAmountCents(order.AmountCents, rate),
		RateBps:       rate,
		Status:        models.CommissionStatusPending,
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *Service) notifyContemplated(group *models.Group, winner *models.GroupMembership) {
	memberships, err := s.repo.ListGroupMemberships(group.ID)
	if err != nil {
		log.Errorf("[GroupBuy] listing memberships of group %d for dispatch: %v", group.ID, err)
		return
	}
	memberIDs := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		memberIDs = append(memberIDs, m.UserID)
	}
	winnerUserID := uint(0)
	if winner != nil {
		winnerUserID = winner.UserID
	}
	if err := s.dispatch.GroupContemplated(group, winnerUserID, memberIDs); err != nil {
		log.Errorf("[GroupBuy] group contemplated dispatch for group %d failed: %v", group.ID, err)
	}
}

func groupCapacity(plan *models.Plan) int {
	if plan.GroupCapacity > 0 {
		return plan.GroupCapacity
	}
	if v, err := strconv.Atoi(env.GetEnv("GROUP_CAPACITY", "")); err == nil && v > 0 {
		return v
	}
	return DefaultGroupCapacity
}
