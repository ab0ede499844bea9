package models

import "time"

const (
	CommissionSourceGroupReferral = "group_referral"
)

const (
	CommissionStatusPending = "pending"
	CommissionStatusPaid    = "paid"
)

// CommissionEntry is an append-only credit record for a referring leader.
// The composite unique index on (source_type, reference) guarantees at most
// one entry per qualifying payment event; reference carries the canonical
// event key. Settlement to paid happens in an external payout process.
type CommissionEntry struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	SourceType    string     `gorm:"type:varchar(50);not null;index:ux_commission_entries_source_ref,unique,priority:1" json:"source_type"`
	Reference     string     `gorm:"type:varchar(191);not null;index:ux_commission_entries_source_ref,unique,priority:2" json:"reference"`
	BeneficiaryID uint       `gorm:"not null;index" json:"beneficiary_id"`
	Beneficiary   User       `gorm:"foreignKey:BeneficiaryID" json:"beneficiary,omitempty"`
	OrderID       uint       `gorm:"not null;index" json:"order_id"`
	AmountCents   int64      `gorm:"not null" json:"amount_cents"`
	RateBps       int        `gorm:"not null" json:"rate_bps"`
	Status        string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaidAt        *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
