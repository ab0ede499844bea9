package groupbuy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/juntaplay/juntaplay/app/models"
)

// memRepo mirrors the conditional-write semantics of the GORM repository in
// memory: insert-if-absent markers, capacity-guarded admission and a
// status-guarded contemplation transition.
type memRepo struct {
	events           map[string]*models.ProcessedEvent
	orders           map[uint]*models.Order
	groups           map[uint]*models.Group
	memberships      map[uint]*models.GroupMembership
	commissions      map[string]*models.CommissionEntry
	nextEventID      uint
	nextGroupID      uint
	nextMembershipID uint
}

func newMemRepo() *memRepo {
	return &memRepo{
		events:      make(map[string]*models.ProcessedEvent),
		orders:      make(map[uint]*models.Order),
		groups:      make(map[uint]*models.Group),
		memberships: make(map[uint]*models.GroupMembership),
		commissions: make(map[string]*models.CommissionEntry),
	}
}

func (r *memRepo) InsertProcessedEvent(event *models.ProcessedEvent) (bool, *models.ProcessedEvent, error) {
	if stored, ok := r.events[event.EventKey]; ok {
		return false, stored, nil
	}
	r.nextEventID++
	event.ID = r.nextEventID
	event.CreatedAt = time.Now()
	r.events[event.EventKey] = event
	return true, event, nil
}

func (r *memRepo) MarkEventProcessed(id uint, processingError string) error {
	for _, e := range r.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memRepo) GetOrderByPublicID(publicID string) (*models.Order, error) {
	for _, o := range r.orders {
		if o.PublicID == publicID {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) MarkOrderPaid(orderID uint) (bool, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if order.Status != models.OrderStatusPending {
		return false, nil
	}
	now := time.Now()
	order.Status = models.OrderStatusPaid
	order.PaidAt = &now
	return true, nil
}

func (r *memRepo) FindOldestActiveGroup(leaderID, planID uint) (*models.Group, error) {
	var found *models.Group
	for _, g := range r.groups {
		if g.LeaderID != leaderID || g.PlanID != planID || g.Status != models.GroupStatusActive {
			continue
		}
		if found == nil || g.ID < found.ID {
			found = g
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return found, nil
}

func (r *memRepo) CreateGroup(group *models.Group) (*models.Group, error) {
	if existing, err := r.FindOldestActiveGroup(group.LeaderID, group.PlanID); err == nil {
		return existing, nil
	}
	r.nextGroupID++
	group.ID = r.nextGroupID
	active := true
	group.Active = &active
	group.Status = models.GroupStatusActive
	group.CreatedAt = time.Now()
	r.groups[group.ID] = group
	return group, nil
}

func (r *memRepo) GetGroup(groupID uint) (*models.Group, error) {
	group, ok := r.groups[groupID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return group, nil
}

func (r *memRepo) AdmitMember(groupID, userID, orderID uint, role string) (int, error) {
	for _, m := range r.memberships {
		if m.GroupID == groupID && m.UserID == userID {
			return 0, ErrAlreadyMember
		}
	}
	group, ok := r.groups[groupID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	if group.Status != models.GroupStatusActive || group.CurrentSize >= group.Capacity {
		return 0, ErrGroupFull
	}
	r.nextMembershipID++
	r.memberships[r.nextMembershipID] = &models.GroupMembership{
		ID:      r.nextMembershipID,
		GroupID: groupID,
		UserID:  userID,
		OrderID: orderID,
		Role:    role,
		Status:  models.MembershipStatusActive,
	}
	group.CurrentSize++
	return group.CurrentSize, nil
}

func (r *memRepo) ContemplateGroup(groupID uint, draw func(n int) int) (*models.Group, *models.GroupMembership, bool, error) {
	group, ok := r.groups[groupID]
	if !ok {
		return nil, nil, false, gorm.ErrRecordNotFound
	}
	if group.Status != models.GroupStatusActive || group.CurrentSize < group.Capacity {
		return group, nil, false, nil
	}

	now := time.Now()
	group.Status = models.GroupStatusContemplated
	group.Active = nil
	group.ContemplatedAt = &now

	all, err := r.ListGroupMemberships(groupID)
	if err != nil {
		return nil, nil, false, err
	}
	var actives []models.GroupMembership
	for _, m := range all {
		if m.Status == models.MembershipStatusActive {
			actives = append(actives, m)
		}
	}
	if len(actives) == 0 {
		return nil, nil, false, errors.New("contemplated group has no active memberships")
	}
	picked := actives[draw(len(actives))]
	for _, m := range r.memberships {
		if m.GroupID == groupID && m.Status == models.MembershipStatusActive {
			m.Status = models.MembershipStatusCompleted
		}
	}
	r.memberships[picked.ID].Status = models.MembershipStatusWinner
	picked.Status = models.MembershipStatusWinner
	group.WinnerMembershipID = &picked.ID
	return group, &picked, true, nil
}

func (r *memRepo) ListGroupMemberships(groupID uint) ([]models.GroupMembership, error) {
	var out []models.GroupMembership
	for _, m := range r.memberships {
		if m.GroupID == groupID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) InsertCommissionEntry(entry *models.CommissionEntry) (bool, error) {
	key := entry.SourceType + "|" + entry.Reference
	if _, ok := r.commissions[key]; ok {
		return false, nil
	}
	entry.ID = uint(len(r.commissions) + 1)
	r.commissions[key] = entry
	return true, nil
}

type memUsers struct {
	byID map[uint]*models.User
}

func (u *memUsers) Create(user *models.User) error { u.byID[user.ID] = user; return nil }

func (u *memUsers) GetByID(id uint) (*models.User, error) {
	if user, ok := u.byID[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (u *memUsers) GetByPublicID(publicID string) (*models.User, error) {
	for _, user := range u.byID {
		if user.PublicID == publicID {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (u *memUsers) GetByEmail(email string) (*models.User, error) {
	for _, user := range u.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (u *memUsers) ListAdmins() ([]models.User, error) {
	var out []models.User
	for _, user := range u.byID {
		if user.Role == models.ROLE_ADMIN {
			out = append(out, *user)
		}
	}
	return out, nil
}

type memPlans struct {
	byID map[uint]*models.Plan
}

func (p *memPlans) Create(plan *models.Plan) error { p.byID[plan.ID] = plan; return nil }

func (p *memPlans) GetByID(id uint) (*models.Plan, error) {
	if plan, ok := p.byID[id]; ok {
		return plan, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (p *memPlans) GetByPublicID(publicID string) (*models.Plan, error) {
	for _, plan := range p.byID {
		if plan.PublicID == publicID {
			return plan, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (p *memPlans) ListActive() ([]models.Plan, error) {
	var out []models.Plan
	for _, plan := range p.byID {
		if plan.Active {
			out = append(out, *plan)
		}
	}
	return out, nil
}

type contemplatedCall struct {
	groupID      uint
	winnerUserID uint
	memberIDs    []uint
}

type mismatchCall struct {
	orderPublicID string
	expectedCents int64
}

type recordingDispatcher struct {
	contemplations []contemplatedCall
	mismatches     []mismatchCall
}

func (d *recordingDispatcher) GroupContemplated(group *models.Group, winnerUserID uint, memberUserIDs []uint) error {
	d.contemplations = append(d.contemplations, contemplatedCall{
		groupID:      group.ID,
		winnerUserID: winnerUserID,
		memberIDs:    memberUserIDs,
	})
	return nil
}

func (d *recordingDispatcher) AmountMismatchAlert(order *models.Order, expectedCents int64) error {
	d.mismatches = append(d.mismatches, mismatchCall{
		orderPublicID: order.PublicID,
		expectedCents: expectedCents,
	})
	return nil
}

type fixture struct {
	repo  *memRepo
	users *memUsers
	plans *memPlans
	disp  *recordingDispatcher
	svc   *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:  newMemRepo(),
		users: &memUsers{byID: make(map[uint]*models.User)},
		plans: &memPlans{byID: make(map[uint]*models.Plan)},
		disp:  &recordingDispatcher{},
	}
	f.svc = NewService(f.repo, f.users, f.plans, f.disp)
	return f
}

func (f *fixture) addUser(id uint, publicID string) *models.User {
	user := &models.User{ID: id, PublicID: publicID, Name: fmt.Sprintf("user-%d", id)}
	f.users.byID[id] = user
	return user
}

func (f *fixture) addPlan(id uint, entryPriceCents int64, capacity int) *models.Plan {
	plan := &models.Plan{ID: id, PublicID: fmt.Sprintf("plan-%d", id), EntryPriceCents: entryPriceCents, GroupCapacity: capacity, Active: true}
	f.plans.byID[id] = plan
	return plan
}

func (f *fixture) addOrder(id uint, publicID string, userID, planID uint, amountCents int64) *models.Order {
	order := &models.Order{ID: id, PublicID: publicID, UserID: userID, PlanID: planID, AmountCents: amountCents, Status: models.OrderStatusPending}
	f.repo.orders[id] = order
	return order
}

func confirmedPayload(paymentID, orderPublicID, leaderPublicID string) []byte {
	ref := "order=" + orderPublicID
	if leaderPublicID != "" {
		ref += ";leader=" + leaderPublicID
	}
	return []byte(fmt.Sprintf(
		`{"event":"PAYMENT_CONFIRMED","payment":{"id":%q,"status":"CONFIRMED","value":100.00,"externalReference":%q}}`,
		paymentID, ref,
	))
}

const (
	orderUUID  = "0d4dbb1a-6f93-4a29-9b40-c8c446b1f0a1"
	order2UUID = "57f2a9c4-3f1e-4a8b-9c3d-2b1a0f9e8d7c"
	leaderUUID = "7f0457d1-25cb-49bd-86a1-d053bbcdadf7"
	buyerUUID  = "a1b2c3d4-e5f6-47a8-89b0-c1d2e3f4a5b6"
)

func TestProcessPaymentEvent_AdmitsBuyerAsOwnLeader(t *testing.T) {
	f := newFixture()
	f.addUser(1, buyerUUID)
	f.addPlan(1, 10000, 3)
	f.addOrder(1, orderUUID, 1, 1, 10000)

	result, err := f.svc.ProcessPaymentEvent(context.Background(), confirmedPayload("pay_1", orderUUID, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Duplicate || result.Ignored || result.AlreadyPaid {
		t.Fatalf("unexpected short-circuit flags: %+v", result)
	}
	if result.GroupID == 0 || result.GroupSize != 1 {
		t.Fatalf("group id = %d, size = %d, want new group of size 1", result.GroupID, result.GroupSize)
	}
	if result.Contemplated {
		t.Fatalf("group of 1/3 must not be contemplated")
	}

	order := f.repo.orders[1]
	if !order.IsPaid() || order.PaidAt == nil {
		t.Fatalf("order not flipped to paid: %+v", order)
	}

	memberships, _ := f.repo.ListGroupMemberships(result.GroupID)
	if len(memberships) != 1 {
		t.Fatalf("memberships = %d, want 1", len(memberships))
	}
	if memberships[0].Role != models.MembershipRoleLeader {
		t.Fatalf("role = %q, want leader", memberships[0].Role)
	}
	if len(f.repo.commissions) != 0 {
		t.Fatalf("self-led purchase must not create a commission")
	}

	marker := f.repo.events[result.EventKey]
	if marker == nil || !marker.Completed() {
		t.Fatalf("expected completed processed-event marker, got %+v", marker)
	}
}

func TestProcessPaymentEvent_DuplicateDelivery(t *testing.T) {
	f := newFixture()
	f.addUser(1, buyerUUID)
	f.addPlan(1, 10000, 3)
	f.addOrder(1, orderUUID, 1, 1, 10000)

	payload := confirmedPayload("pay_1", orderUUID, "")
	first, err := f.svc.ProcessPaymentEvent(context.Background(), payload)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := f.svc.ProcessPaymentEvent(context.Background(), payload)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("expected second delivery to report duplicate")
	}

	memberships, _ := f.repo.ListGroupMemberships(first.GroupID)
	if len(memberships) != 1 {
		t.Fatalf("memberships after replay = %d, want 1", len(memberships))
	}
	if f.repo.groups[first.GroupID].CurrentSize != 1 {
		t.Fatalf("group size after replay = %d, want 1", f.repo.groups[first.GroupID].CurrentSize)
	}
}

func TestProcessPaymentEvent_NonConfirmationIgnored(t *testing.T) {
	f := newFixture()
	f.addUser(1, buyerUUID)
	f.addPlan(1, 10000, 3)
	f.addOrder(1, orderUUID, 1, 1, 10000)

	payload := []byte(fmt.Sprintf(
		`{"event":"PAYMENT_OVERDUE","payment":{"id":"pay_1","status":"OVERDUE","value":100.00,"externalReference":"order=%s"}}`,
		orderUUID,
	))
	result, err := f.svc.ProcessPaymentEvent(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Ignored {
		t.Fatalf("expected non-confirmation event to be ignored")
	}
	if f.repo.orders[1].IsPaid() {
		t.Fatalf("ignored event must not pay the order")
	}

	// The marker completes, so a replay of the same delivery is a duplicate.
	replay, err := f.svc.ProcessPaymentEvent(context.Background(), payload)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replay.Duplicate {
		t.Fatalf("expected replay of ignored event to report duplicate")
	}
}

func TestProcessPaymentEvent_OrderNotFoundThenRetry(t *testing.T) {
	f := newFixture()
	f.addUser(1, buyerUUID)
	f.addPlan(1, 10000, 3)

	payload := confirmedPayload("pay_1", orderUUID, "")
	_, err := f.svc.ProcessPaymentEvent(context.Background(), payload)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	// The failed delivery leaves an incomplete marker, so the provider's
	// retry runs the pipeline again once the order exists.
	f.addOrder(1, orderUUID, 1, 1, 10000)
	result, err := f.svc.ProcessPaymentEvent(context.Background(), payload)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if result.Duplicate {
		t.Fatalf("retry of a failed delivery must not be treated as duplicate")
	}
	if !f.repo.orders[1].IsPaid() {
		t.Fatalf("retry did not pay the order")
	}
}

func TestProcessPaymentEvent_AmountMismatch(t *testing.T) {
	f := newFixture()
	f.addUser(1, buyerUUID)
	f.addPlan(1, 10000, 3)
	f.addOrder(1, orderUUID, 1, 1, 9999)

	_, err := f.svc.ProcessPaymentEvent(context.Background(), confirmedPayload("pay_1", orderUUID, ""))
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	if f.repo.orders[1].IsPaid() {
		t.Fatalf("mismatched order must stay pending")
	}
	if len(f.repo.groups) != 0 {
		t.Fatalf("mismatched order must not create a group")
	}
	if len(f.disp.mismatches) != 1 {
		t.Fatalf("mismatch alerts = %d, want 1", len(f.disp.mismatches))
	}
	if f.disp.mismatches[0].expectedCents != 10000 {
		t.Fatalf("alert expected cents = %d, want 10000", f.disp.mismatches[0].expectedCents)
	}
}

func TestProcessPaymentEvent_AlreadyPaidOrder(t *testing.T) {
	f := newFixture()
	f.addUser(1, buyerUUID)
	f.addPlan(1, 10000, 3)
	order := f.addOrder(1, orderUUID, 1, 1, 10000)
	order.Status = models.OrderStatusPaid

	result, err := f.svc.ProcessPaymentEvent(context.Background(), confirmedPayload("pay_1", orderUUID, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.AlreadyPaid {
		t.Fatalf("expected already_paid result")
	}
	if len(f.repo.groups) != 0 || len(f.repo.memberships) != 0 {
		t.Fatalf("already paid order must not touch groups")
	}
}

func TestProcessPaymentEvent_DirectedAdmissionPaysCommission(t *testing.T) {
	f := newFixture()
	leader := f.addUser(1, leaderUUID)
	f.addUser(2, buyerUUID)
	f.addPlan(1, 10000, 3)
	f.addOrder(1, orderUUID, 1, 1, 10000)
	f.addOrder(2, order2UUID, 2, 1, 10000)

	// Leader opens their own group first.
	if _, err := f.svc.ProcessPaymentEvent(context.Background(), confirmedPayload("pay_1", orderUUID, "")); err != nil {
		t.Fatalf("leader payment: %v", err)
	}

	result, err := f.svc.ProcessPaymentEvent(context.Background(), confirmedPayload("pay_2", order2UUID, leaderUUID))
	if err != nil {
		t.Fatalf("buyer payment: %v", err)
	}
	if result.GroupSize != 2 {
		t.Fatalf("group size = %d, want 2", result.GroupSize)
	}
	if !result.Commissioned {
		t.Fatalf("expected referral commission to be credited")
	}

	if len(f.repo.commissions) != 1 {
		t.Fatalf("commissions = %d, want 1", len(f.repo.commissions))
	}
	for _, entry := range f.repo.commissions {
		if entry.BeneficiaryID != leader.ID {
			t.Fatalf("beneficiary = %d, want leader %d", entry.BeneficiaryID, leader.ID)
		}
		if entry.AmountCents != 2500 {
			t.Fatalf("commission = %d, want 2500 (25%% of 10000)", entry.AmountCents)
		}
		if entry.RateBps != 2500 {
			t.Fatalf("rate = %d bps, want 2500", entry.RateBps)
		}
		if entry.Status != models.CommissionStatusPending {
			t.Fatalf("status = %q, want pending", entry.Status)
		}
	}
}

func TestProcessPaymentEvent_SelfReferralNoCommission(t *testing.T) {
	f := newFixture()
	f.addUser(1, buyerUUID)
	f.addPlan(1, 10000, 3)
	f.addOrder(1, orderUUID, 1, 1, 10000)

	// Buyer's reference names themselves as leader.
	result, err := f.svc.ProcessPaymentEvent(context.Background(), confirmedPayload("pay_1", orderUUID, buyerUUID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Commissioned {
		t.Fatalf("self referral must not earn a commission")
	}
	if len(f.repo.commissions) != 0 {
		t.Fatalf("commissions = %d, want 0", len(f.repo.commissions))
	}

	memberships, _ := f.repo.ListGroupMemberships(result.GroupID)
	if len(memberships) != 1 || memberships[0].Role != models.MembershipRoleLeader {
		t.Fatalf("expected buyer to lead own group, got %+v", memberships)
	}
}

func TestProcessPaymentEvent_UnknownLeaderFallsBack(t *testing.T) {
	f := newFixture()
	f.addUser(1, buyerUUID)
	f.addPlan(1, 10000, 3)
	f.addOrder(1, orderUUID, 1, 1, 10000)

	result, err := f.svc.ProcessPaymentEvent(context.Background(), confirmedPayload("pay_1", orderUUID, leaderUUID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group := f.repo.groups[result.GroupID]
	if group.LeaderID != 1 {
		t.Fatalf("expected fallback to buyer-led group, leader = %d", group.LeaderID)
	}
}

func TestProcessPaymentEvent_FullLeaderGroupFallsBack(t *testing.T) {
	f := newFixture()
	f.addUser(1, leaderUUID)
	f.addUser(2, buyerUUID)
	f.addPlan(1, 10000, 3)
	f.addOrder(1, orderUUID, 2, 1, 10000)

	active := true
	f.repo.groups[7] = &models.Group{
		ID: 7, PublicID: "g7", LeaderID: 1, PlanID: 1,
		Capacity: 2, CurrentSize: 2,
		Status: models.GroupStatusActive, Active: &active,
	}

	result, err := f.svc.ProcessPaymentEvent(context.Background(), confirmedPayload("pay_1", orderUUID, leaderUUID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.GroupID == 7 {
		t.Fatalf("buyer must not land in the full group")
	}
	if f.repo.groups[result.GroupID].LeaderID != 2 {
		t.Fatalf("expected a buyer-led group, leader = %d", f.repo.groups[result.GroupID].LeaderID)
	}
}

func TestProcessPaymentEvent_ContemplatesFullGroup(t *testing.T) {
	f := newFixture()
	f.addUser(1, leaderUUID)
	f.addUser(2, buyerUUID)
	f.addPlan(1, 10000, 2)
	f.addOrder(1, orderUUID, 1, 1, 10000)
	f.addOrder(2, order2UUID, 2, 1, 10000)

	if _, err := f.svc.ProcessPaymentEvent(context.Background(), confirmedPayload("pay_1", orderUUID, "")); err != nil {
		t.Fatalf("leader payment: %v", err)
	}
	result, err := f.svc.ProcessPaymentEvent(context.Background(), confirmedPayload("pay_2", order2UUID, leaderUUID))
	if err != nil {
		t.Fatalf("filling payment: %v", err)
	}

	if !result.Contemplated {
		t.Fatalf("expected the filling payment to contemplate the group")
	}
	if result.WinnerUserID != 1 && result.WinnerUserID != 2 {
		t.Fatalf("winner = %d, want one of the members", result.WinnerUserID)
	}

	group := f.repo.groups[result.GroupID]
	if group.Status != models.GroupStatusContemplated {
		t.Fatalf("group status = %q, want contemplated", group.Status)
	}
	if group.Active != nil {
		t.Fatalf("contemplated group must clear the active flag")
	}
	if group.ContemplatedAt == nil || group.WinnerMembershipID == nil {
		t.Fatalf("contemplation bookkeeping missing: %+v", group)
	}

	memberships, _ := f.repo.ListGroupMemberships(group.ID)
	winners, completed := 0, 0
	for _, m := range memberships {
		switch m.Status {
		case models.MembershipStatusWinner:
			winners++
		case models.MembershipStatusCompleted:
			completed++
		}
	}
	if winners != 1 || completed != 1 {
		t.Fatalf("winners = %d, completed = %d, want 1 and 1", winners, completed)
	}

	if len(f.disp.contemplations) != 1 {
		t.Fatalf("contemplation dispatches = %d, want 1", len(f.disp.contemplations))
	}
	call := f.disp.contemplations[0]
	if call.winnerUserID != result.WinnerUserID {
		t.Fatalf("dispatched winner = %d, want %d", call.winnerUserID, result.WinnerUserID)
	}
	if len(call.memberIDs) != 2 {
		t.Fatalf("dispatched member ids = %v, want both members", call.memberIDs)
	}

	// The filling buyer was referred, so the leader earns a commission.
	if !result.Commissioned {
		t.Fatalf("expected commission for the referring leader")
	}
}

func TestProcessPaymentEvent_IncompleteMarkerReruns(t *testing.T) {
	f := newFixture()
	f.addUser(1, buyerUUID)
	f.addPlan(1, 10000, 3)
	f.addOrder(1, orderUUID, 1, 1, 10000)

	payload := confirmedPayload("pay_1", orderUUID, "")
	event, err := ParsePaymentWebhook(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Simulate a crash after the marker insert but before completion.
	f.repo.events[event.Key()] = &models.ProcessedEvent{ID: 99, EventKey: event.Key()}
	f.repo.nextEventID = 99

	result, err := f.svc.ProcessPaymentEvent(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Duplicate {
		t.Fatalf("incomplete marker must not short-circuit as duplicate")
	}
	if !f.repo.orders[1].IsPaid() {
		t.Fatalf("re-run did not pay the order")
	}
	if marker := f.repo.events[event.Key()]; !marker.Completed() {
		t.Fatalf("re-run did not complete the marker")
	}
}
