package models

import "time"

// Notification types emitted by the messaging core.
const (
	NotificationConnectionRequested = "connection.requested"
	NotificationConnectionResponded = "connection.responded"
	NotificationMessageCreated      = "message.created"
	NotificationMessagesRead        = "messages.read"
)

// Notification represents a persistent user notification (PostgreSQL)
type Notification struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Type        string    `json:"type" gorm:"size:30;index"`
	ActorID     uint      `json:"actor_id" gorm:"index"`
	RecipientID uint      `json:"recipient_id" gorm:"index"`
	TargetID    uint      `json:"target_id"`                  // connection ID or thread ID
	TargetType  string    `json:"target_type" gorm:"size:20"` // connection, thread
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}
