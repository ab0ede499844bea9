package groupbuy

import (
	"errors"
	"time"

	"github.com/juntaplay/juntaplay/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the engine. All coordination
// between concurrent webhook deliveries happens inside these operations;
// callers never read-modify-write shared state themselves.
type Repository interface {
	InsertProcessedEvent(event *models.ProcessedEvent) (bool, *models.ProcessedEvent, error)
	MarkEventProcessed(id uint, processingError string) error

	GetOrderByPublicID(publicID string) (*models.Order, error)
	MarkOrderPaid(orderID uint) (bool, error)

	FindOldestActiveGroup(leaderID, planID uint) (*models.Group, error)
	CreateGroup(group *models.Group) (*models.Group, error)
	GetGroup(groupID uint) (*models.Group, error)

	AdmitMember(groupID, userID, orderID uint, role string) (int, error)
	ContemplateGroup(groupID uint, draw func(n int) int) (*models.Group, *models.GroupMembership, bool, error)
	ListGroupMemberships(groupID uint) ([]models.GroupMembership, error)

	InsertCommissionEntry(entry *models.CommissionEntry) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an engine repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// InsertProcessedEvent attempts an atomic insert-if-absent on the canonical
// event key. It returns whether this call created the marker, plus the stored
// row either way.
func (r *gormRepository) InsertProcessedEvent(event *models.ProcessedEvent) (bool, *models.ProcessedEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_key"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.ProcessedEvent
	if err := r.db.Where("event_key = ?", event.EventKey).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkEventProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.ProcessedEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) GetOrderByPublicID(publicID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("public_id = ?", publicID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkOrderPaid flips the order pending -> paid. The WHERE on status makes
// the flip happen at most once; a second confirmed delivery for the same
// order changes nothing and reports false.
func (r *gormRepository) MarkOrderPaid(orderID uint) (bool, error) {
	now := time.Now()
	tx := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":  models.OrderStatusPaid,
			"paid_at": &now,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// FindOldestActiveGroup returns the earliest-created active group for a
// (leader, plan) pair, so groups fill first come, first served.
func (r *gormRepository) FindOldestActiveGroup(leaderID, planID uint) (*models.Group, error) {
	var group models.Group
	err := r.db.
		Where("leader_id = ? AND plan_id = ? AND status = ?", leaderID, planID, models.GroupStatusActive).
		Order("created_at ASC, id ASC").
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// CreateGroup inserts a new active group. A conflict on the (leader, plan,
// active) unique index means a concurrent delivery created the group first;
// that group is fetched and returned instead of an error.
func (r *gormRepository) CreateGroup(group *models.Group) (*models.Group, error) {
	active := true
	group.Active = &active
	group.Status = models.GroupStatusActive

	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "leader_id"}, {Name: "plan_id"}, {Name: "active"}},
		DoNothing: true,
	}).Create(group)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected > 0 {
		return group, nil
	}
	return r.FindOldestActiveGroup(group.LeaderID, group.PlanID)
}

func (r *gormRepository) GetGroup(groupID uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.First(&group, groupID).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// AdmitMember performs the capacity-checked admission as one transaction:
// an insert-if-absent membership row plus a conditional increment of
// current_size guarded by `current_size < capacity` in a single UPDATE.
// Two deliveries racing for the last slot serialize on the group row; exactly
// one sees RowsAffected == 1, the other rolls back its membership insert and
// gets ErrGroupFull. A repeat admission of the same user yields
// ErrAlreadyMember and changes nothing.
func (r *gormRepository) AdmitMember(groupID, userID, orderID uint, role string) (int, error) {
	var newSize int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		membership := &models.GroupMembership{
			GroupID: groupID,
			UserID:  userID,
			OrderID: orderID,
			Role:    role,
			Status:  models.MembershipStatusActive,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(membership)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyMember
		}

		upd := tx.Model(&models.Group{}).
			Where("id = ? AND status = ? AND current_size < capacity", groupID, models.GroupStatusActive).
			UpdateColumn("current_size", gorm.Expr("current_size + 1"))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return ErrGroupFull
		}

		var group models.Group
		if err := tx.Select("current_size").First(&group, groupID).Error; err != nil {
			return err
		}
		newSize = group.CurrentSize
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newSize, nil
}

// ContemplateGroup transitions a full group active -> contemplated and runs
// the winner draw, all inside one transaction. The conditional UPDATE on
// status is the guard: only the delivery that wins it performs the draw, so
// the draw executes exactly once per group. Re-running after the transition
// is a no-op.
func (r *gormRepository) ContemplateGroup(groupID uint, draw func(n int) int) (*models.Group, *models.GroupMembership, bool, error) {
	var (
		group  models.Group
		winner *models.GroupMembership
	)
	contemplated := false

	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		upd := tx.Model(&models.Group{}).
			Where("id = ? AND status = ? AND current_size >= capacity", groupID, models.GroupStatusActive).
			Updates(map[string]interface{}{
				"status":          models.GroupStatusContemplated,
				"active":          gorm.Expr("NULL"),
				"contemplated_at": &now,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			// Not full yet, or another delivery already contemplated it.
			return nil
		}
		contemplated = true

		var memberships []models.GroupMembership
		if err := tx.
			Where("group_id = ? AND status = ?", groupID, models.MembershipStatusActive).
			Order("id ASC").
			Find(&memberships).Error; err != nil {
			return err
		}
		if len(memberships) == 0 {
			return errors.New("contemplated group has no active memberships")
		}

		picked := memberships[draw(len(memberships))]
		if err := tx.Model(&models.GroupMembership{}).
			Where("group_id = ? AND status = ?", groupID, models.MembershipStatusActive).
			Update("status", models.MembershipStatusCompleted).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.GroupMembership{}).
			Where("id = ?", picked.ID).
			Update("status", models.MembershipStatusWinner).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Group{}).
			Where("id = ?", groupID).
			Update("winner_membership_id", picked.ID).Error; err != nil {
			return err
		}

		picked.Status = models.MembershipStatusWinner
		winner = &picked
		return tx.First(&group, groupID).Error
	})
	if err != nil {
		return nil, nil, false, err
	}
	if !contemplated {
		if err := r.db.First(&group, groupID).Error; err != nil {
			return nil, nil, false, err
		}
		return &group, nil, false, nil
	}
	return &group, winner, true, nil
}

func (r *gormRepository) ListGroupMemberships(groupID uint) ([]models.GroupMembership, error) {
	var memberships []models.GroupMembership
	err := r.db.Where("group_id = ?", groupID).Order("id ASC").Find(&memberships).Error
	return memberships, err
}

// InsertCommissionEntry credits the referring leader at most once per
// (source_type, reference). A duplicate insert reports false with no error.
func (r *gormRepository) InsertCommissionEntry(entry *models.CommissionEntry) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_type"}, {Name: "reference"}},
		DoNothing: true,
	}).Create(entry)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
