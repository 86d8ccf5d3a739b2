package models

import "time"

// Collection is a user's card collection (one-to-one with User).
type Collection struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time `gorm:"index"`
	// Active indicates whether the collection is active. Use this for
	// soft-state instead of physically deleting the record.
	Active bool   `gorm:"default:true;not null"`
	UserID uint   `gorm:"uniqueIndex;not null"` // one-to-one relation
	User   User   `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Name   string `gorm:"size:255;not null"`
	// Scans is a one-to-many relation from Collection to Scan
	Scans   []Scan            `gorm:"foreignKey:CollectionID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Entries []CollectionEntry `gorm:"foreignKey:CollectionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
