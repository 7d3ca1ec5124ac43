package models

import (
	"gorm.io/gorm"

	"pfmt-portal/internal/roles"
)

// User is the durable principal behind every authenticated request.
// Rows are never deleted, only deactivated.
type User struct {
	gorm.Model
	Username     string     `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email        string     `gorm:"size:255" json:"email"`
	DisplayName  string     `gorm:"size:255" json:"display_name"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         roles.Role `gorm:"type:varchar(32);not null" json:"role"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
}
