package models

import "time"

// Plan is a service/product definition users buy into. Prices are stored in
// minor units (cents). Plans are owned by the catalog admin flow and are
// immutable from the engine's perspective.
type Plan struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PublicID        string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"public_id"`
	Name            string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=3,max=150"`
	EntryPriceCents int64     `gorm:"not null;default:0" json:"entry_price_cents"`
	FullPriceCents  int64     `gorm:"not null;default:0" json:"full_price_cents"`
	GroupCapacity   int       `gorm:"not null;default:0" json:"group_capacity"`
	Active          bool      `gorm:"default:true;index" json:"active"`
	// denormalized counters, maintained by the Redis counter flush
	PaidOrdersCount     int64 `gorm:"not null;default:0" json:"paid_orders_count"`
	ContemplationsCount int64 `gorm:"not null;default:0" json:"contemplations_count"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ExpectedChargeCents returns the charge the checkout flow should have
// collected for this plan: the entry price when one is configured, the full
// price otherwise.
func (p *Plan) ExpectedChargeCents() int64 {
	if p.EntryPriceCents > 0 {
		return p.EntryPriceCents
	}
	return p.FullPriceCents
}
