package models

import "time"

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "PENDING"
	ConnectionAccepted ConnectionStatus = "ACCEPTED"
	ConnectionRejected ConnectionStatus = "REJECTED"
	ConnectionRemoved  ConnectionStatus = "REMOVED"
)

// Connection is the single row kept per unordered user pair. A REMOVED row is
// overwritten in place when one of the pair sends a new request, so the table
// never accumulates more than one row per pair.
type Connection struct {
	ID                 uint             `json:"id" gorm:"primaryKey"`
	RequesterID        uint             `json:"requester_id" gorm:"index"`
	RecipientID        uint             `json:"recipient_id" gorm:"index"`
	Status             ConnectionStatus `json:"status" gorm:"type:varchar(20);default:'PENDING'"`
	IcebreakerMessage  string           `json:"icebreaker_message" gorm:"type:text"`
	OriginatingEventID *uint            `json:"originating_event_id,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// IsActive reports whether the row blocks a new request for the pair.
func (c *Connection) IsActive() bool {
	return c.Status == ConnectionPending || c.Status == ConnectionAccepted
}

// OtherParticipant returns the counterpart of userID, or 0 if userID is not a party.
func (c *Connection) OtherParticipant(userID uint) uint {
	switch userID {
	case c.RequesterID:
		return c.RecipientID
	case c.RecipientID:
		return c.RequesterID
	}
	return 0
}

// CreateConnectionRequest defines the request body for sending a connection request
type CreateConnectionRequest struct {
	RecipientID uint   `json:"recipient_id" validate:"required"`
	Icebreaker  string `json:"icebreaker" validate:"required,min=1,max=2000"`
	EventID     *uint  `json:"event_id,omitempty"`
}

// RespondConnectionRequest defines the request body for accepting/rejecting a request
type RespondConnectionRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

// ConnectionView is the fixed response shape for connection operations.
type ConnectionView struct {
	ID                 uint             `json:"id"`
	Requester          UserCompact      `json:"requester"`
	Recipient          UserCompact      `json:"recipient"`
	Status             ConnectionStatus `json:"status"`
	IcebreakerMessage  string           `json:"icebreaker_message"`
	OriginatingEventID *uint            `json:"originating_event_id,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}
