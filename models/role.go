package models

import "time"

// The two roles the service seeds. Authorization checks compare against
// these names, not IDs.
const (
	RoleAdmin = "administrator"
	RoleUser  = "user"
)

// Role is a named permission level referenced by User.RoleID.
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}
