package models

import "time"

// User is a registered account. Password holds the Argon2id PHC string,
// never a plaintext value.
type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"size:255" json:"name"`
	Email           string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password        string     `gorm:"size:255" json:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DefaultTags are seeded for every user on first login or verified signup.
var DefaultTags = []string{"Work", "Research", "Education", "AI", "Reading"}

// DefaultTagIcon is used when a client does not provide one.
const DefaultTagIcon = "😊"

// UserTag is a user-defined tag with an optional icon.
// Uniqueness per user is case-insensitive and enforced by the index; the
// NOCASE collation makes the constraint the authoritative race detector.
type UserTag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_tags_user_tag" json:"user_id"`
	Tag       string    `gorm:"type:TEXT COLLATE NOCASE;not null;uniqueIndex:idx_user_tags_user_tag" json:"tag"`
	Icon      string    `gorm:"size:191" json:"icon"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
