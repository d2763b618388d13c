package models

// Session is one browser/device session row. Guest sessions have a nil
// UserID; login attaches the user. The row id doubles as the session token
// carried by clients.
type Session struct {
	ID           string `gorm:"primaryKey;size:64" json:"id"`
	UserID       *uint  `gorm:"index" json:"user_id"`
	IPAddress    string `gorm:"size:50" json:"ip_address"`
	UserAgent    string `gorm:"size:255" json:"user_agent"`
	Payload      string `json:"payload"`
	LastActivity int64  `gorm:"index" json:"last_activity"`
}
