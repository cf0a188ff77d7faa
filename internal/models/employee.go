package models

import (
	"time"
)

// Employee roles.
const (
	RoleOwner = "owner"
	RoleCrew  = "crew"
)

// Employee represents a selectable crew member.
type Employee struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	Role      string    `gorm:"size:20;not null" json:"role"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Employee model.
func (Employee) TableName() string {
	return "employees"
}

// IsOwner reports whether the employee may use owner mode.
func (e *Employee) IsOwner() bool {
	return e.Role == RoleOwner
}
