package models

import "time"

const (
	MembershipRoleLeader = "leader"
	MembershipRoleMember = "member"
)

const (
	MembershipStatusActive    = "active"
	MembershipStatusWinner    = "winner"
	MembershipStatusCompleted = "completed"
)

// GroupMembership is a user's admission record into a group. The composite
// unique index on (group_id, user_id) makes a repeated admission attempt a
// no-op instead of a duplicate row. Memberships are never deleted.
type GroupMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;index:ux_group_memberships_group_user,unique,priority:1" json:"group_id"`
	Group     Group     `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	UserID    uint      `gorm:"not null;index:ux_group_memberships_group_user,unique,priority:2;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	Role      string    `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	Status    string    `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
