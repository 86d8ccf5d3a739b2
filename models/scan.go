package models

import "time"

// Scan is one uploaded card photo together with its identification result.
// Unidentified scans stay failed-but-kept so the owner can retry or fix
// them by hand.
type Scan struct {
	ID           uint `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FileName     string     `gorm:"size:255;not null"`
	StorePath    string     `gorm:"column:store_path;size:512"` // public relative path (e.g. public/cards/xxx.jpg)
	ContentType  string     `gorm:"size:128"`
	CollectionID uint       `gorm:"index;not null"` // FK to collections.id
	Collection   Collection `gorm:"foreignKey:CollectionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	// identification outcome
	Matched         bool    `gorm:"default:false;index"`
	Method          string  `gorm:"size:32"`
	CardName        string  `gorm:"size:255"`
	OracleID        string  `gorm:"size:64;index"`
	PrintingID      string  `gorm:"size:64"`
	SetCode         string  `gorm:"size:8"`
	CollectorNumber string  `gorm:"size:16"`
	Confidence      float64 `gorm:"default:0"`
	EntryID         *uint   `gorm:"index"` // FK to collection_entries.id (nullable)

	// Mark scan as failed (do not delete record so the owner can review)
	Failed       bool   `gorm:"default:false;index"`
	FailedReason string `gorm:"size:255"`
}
