package model

import "time"

// Session is the persisted dashboard session. State holds the JSON encoded
// application state; BackendToken is sealed before it is written.
type Session struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       string `gorm:"size:64;index"`
	Role         Role   `gorm:"size:32"`
	RestaurantID string `gorm:"size:64;index"`
	BackendToken []byte
	State        []byte
	ExpiresAt    time.Time `gorm:"index"`
	LastSeenAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Notifications []SessionNotification `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// SessionNotification keeps a history of alerts raised for a session, beyond
// the capped list held in the live state.
type SessionNotification struct {
	ID        string           `gorm:"primaryKey;size:36"`
	SessionID string           `gorm:"size:36;index"`
	Type      NotificationType `gorm:"size:32"`
	Title     string
	Message   string
	OrderID   string `gorm:"size:64"`
	CreatedAt time.Time
}
