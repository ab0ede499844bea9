package repository

import (
	"github.com/juntaplay/juntaplay/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations.
// The engine treats it as the profile directory: it resolves buyers and
// referring leaders to local accounts.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByPublicID(publicID string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	ListAdmins() ([]models.User, error)
}

// PlanRepository defines the interface for plan catalog lookups. Plans are
// read-only from the engine's perspective.
type PlanRepository interface {
	Create(plan *models.Plan) error
	GetByID(id uint) (*models.Plan, error)
	GetByPublicID(publicID string) (*models.Plan, error)
	ListActive() ([]models.Plan, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User UserRepository
	Plan PlanRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User: NewUserRepository(db),
		Plan: NewPlanRepository(db),
	}
}
