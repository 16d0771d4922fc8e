package model

import "time"

type NotificationType string

const (
	NotificationNewOrder NotificationType = "new_order"
	NotificationError    NotificationType = "error"
	NotificationInfo     NotificationType = "info"
)

type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	OrderID   string           `json:"orderId,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
