package models

import "time"

// CollectionEntry is one card held in a collection. A card is unique per
// collection by printing so repeated scans bump Quantity instead of
// creating duplicates.
type CollectionEntry struct {
	ID           uint `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CollectionID uint   `gorm:"index;not null;uniqueIndex:idx_collection_printing"`
	CardName     string `gorm:"size:255;not null"`
	OracleID     string `gorm:"size:64;index;not null"`
	PrintingID   string `gorm:"size:64;not null;uniqueIndex:idx_collection_printing"`
	SetCode      string `gorm:"size:8;index"`
	// CollectorNumber may contain letters and stars, not just digits
	CollectorNumber string `gorm:"size:16"`
	Quantity        int    `gorm:"not null;default:1"`
}
