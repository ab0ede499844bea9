package models

import "time"

const (
	GroupStatusActive       = "active"
	GroupStatusContemplated = "contemplated"
)

// Group is a fixed-capacity cohort for one (plan, leader) pair. The Active
// column is 1 while the group is filling and NULL once contemplated, so the
// composite unique index enforces at most one active group per (leader, plan)
// while allowing any number of contemplated ones (MySQL unique indexes ignore
// NULL values).
type Group struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	PublicID           string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"public_id"`
	LeaderID           uint       `gorm:"not null;index:ux_groups_leader_plan_active,unique,priority:1" json:"leader_id"`
	PlanID             uint       `gorm:"not null;index:ux_groups_leader_plan_active,unique,priority:2;index" json:"plan_id"`
	Capacity           int        `gorm:"not null" json:"capacity"`
	CurrentSize        int        `gorm:"not null;default:0" json:"current_size"`
	Status             string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Active             *bool      `gorm:"index:ux_groups_leader_plan_active,unique,priority:3" json:"-"`
	WinnerMembershipID *uint      `gorm:"default:null" json:"winner_membership_id,omitempty"`
	ContemplatedAt     *time.Time `gorm:"type:timestamp;default:null" json:"contemplated_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsFull reports whether every slot of the group is taken.
func (g *Group) IsFull() bool {
	return g.CurrentSize >= g.Capacity
}
