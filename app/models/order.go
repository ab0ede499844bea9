package models

import "time"

const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
)

// Order is one purchase intent created by the checkout flow. The engine only
// ever flips its status pending -> paid; a paid order never reverts.
type Order struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	PublicID         string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"public_id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	User             User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	PlanID           uint       `gorm:"not null;index" json:"plan_id"`
	Plan             Plan       `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	AmountCents      int64      `gorm:"not null" json:"amount_cents"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	IntendedLeaderID *uint      `gorm:"default:null;index" json:"intended_leader_id,omitempty"`
	PaidAt           *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPaid reports whether the order already went through the engine.
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}
