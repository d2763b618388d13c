package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// URL statuses. Anything else is rejected at validation time.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

// FavouriteTag is the reserved marker toggled by the favourite endpoint.
// Its presence in a record's tag set means the record is favorited.
const FavouriteTag = "favourite"

// ValidStatus reports whether s is one of the known status values.
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusArchived || s == StatusDeleted
}

// URL represents one saved bookmark.
//
// Exactly one of UserID and SessionID is set at any time: guest records carry
// the session token, records of signed-up users carry the user id. The pair
// is only ever flipped once, by the ownership transfer at signup.
type URL struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      *uint      `gorm:"index" json:"user_id"`
	SessionID   *string    `gorm:"index;size:64" json:"session_id"`
	Title       string     `gorm:"size:255" json:"title"`
	Target      string     `gorm:"column:url;not null" json:"url"`
	Description string     `json:"description"`
	Tags        TagList    `gorm:"type:text" json:"tags"`
	Status      string     `gorm:"size:16;default:active;index" json:"status"`
	URLClicks   uint64     `gorm:"column:url_clicks;default:0" json:"url_clicks"`
	ReminderAt  *time.Time `json:"reminder_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName keeps the table name the frontend-facing API grew up with.
func (URL) TableName() string { return "urls" }

// TagList is a set of tag strings persisted as a JSON array in a text column.
type TagList []string

// Value implements driver.Valuer. A nil list is stored as an empty JSON array
// so reads never see malformed or NULL tag data.
func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	out, err := json.Marshal([]string(t))
	if err != nil {
		return nil, fmt.Errorf("marshaling tags: %w", err)
	}
	return string(out), nil
}

// Scan implements sql.Scanner.
func (t *TagList) Scan(value any) error {
	if value == nil {
		*t = TagList{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported tags column type %T", value)
	}
	if len(raw) == 0 {
		*t = TagList{}
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return fmt.Errorf("unmarshaling tags: %w", err)
	}
	*t = TagList(tags)
	return nil
}

// Contains reports tag membership, exact match.
func (t TagList) Contains(tag string) bool {
	for _, v := range t {
		if v == tag {
			return true
		}
	}
	return false
}

// Without returns a copy of the list with tag removed.
func (t TagList) Without(tag string) TagList {
	out := make(TagList, 0, len(t))
	for _, v := range t {
		if v != tag {
			out = append(out, v)
		}
	}
	return out
}

// ParseTags normalizes the tags field of an incoming request. Clients send
// either a native JSON array of strings, a JSON string containing an encoded
// array, or a plain string (wrapped as a single-element set). The result is
// trimmed, empties dropped, duplicates removed with first occurrence kept.
func ParseTags(raw json.RawMessage) (TagList, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		return normalizeTags(arr), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("tags must be an array of strings or a string")
	}

	// A string value may itself hold an encoded array; otherwise treat it
	// as one tag.
	var inner []string
	if err := json.Unmarshal([]byte(s), &inner); err == nil {
		return normalizeTags(inner), nil
	}
	return normalizeTags([]string{s}), nil
}

func normalizeTags(in []string) TagList {
	seen := make(map[string]struct{}, len(in))
	out := make(TagList, 0, len(in))
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
