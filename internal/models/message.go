package models

import "time"

type MessageStatus string

const (
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageRead      MessageStatus = "READ"
)

// DirectMessage belongs to one thread. CreatedAt is the ordering key and is
// preserved when a message is copied into the global thread during a merge.
type DirectMessage struct {
	ID               uint          `json:"id" gorm:"primaryKey"`
	ThreadID         uint          `json:"thread_id" gorm:"index"`
	SenderID         uint          `json:"sender_id" gorm:"index"`
	Content          string        `json:"content" gorm:"type:text"`
	EncryptedContent *string       `json:"encrypted_content,omitempty" gorm:"type:text"`
	Status           MessageStatus `json:"status" gorm:"type:varchar(20);default:'SENT'"`
	CreatedAt        time.Time     `json:"created_at" gorm:"index"`
}

// SendMessageRequest defines the request body for posting a message into a thread
type SendMessageRequest struct {
	Content          string  `json:"content" validate:"required,min=1,max=10000"`
	EncryptedContent *string `json:"encrypted_content,omitempty"`
}

// StartThreadRequest defines the request body for opening a conversation with a user
type StartThreadRequest struct {
	RecipientID uint  `json:"recipient_id" validate:"required"`
	EventID     *uint `json:"event_id,omitempty"`
}
