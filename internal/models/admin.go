package models

import "time"

// Background theme types served by GET /backgrounds. The grouped payload
// always contains all four keys so the frontend can rely on them.
var BackgroundTypes = []string{"live", "image", "gradient", "solid"}

// Background is one selectable background theme.
type Background struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Type       string    `gorm:"size:32;index" json:"type"`
	Name       string    `gorm:"size:255" json:"name"`
	Background string    `json:"background"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Notification is an admin-authored announcement; only the most recent one
// is ever served.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255" json:"title"`
	Description string    `json:"description"`
	AdminName   string    `gorm:"size:255" json:"admin_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
