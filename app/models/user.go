package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// User is the local profile directory entry. Authentication and session
// handling live in an external identity service; the engine only reads users
// to resolve buyers and referring leaders to payable accounts.
type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	PublicID      string         `gorm:"type:varchar(36);not null;uniqueIndex" json:"public_id"`
	Name          string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email         string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	PayoutAccount string         `gorm:"type:varchar(191);default:null" json:"-"` // provider-side payable account for commission settlement
	Role          string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status        string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// IsAdmin checks if a user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}
