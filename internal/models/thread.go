package models

import "time"

// MessageThread is a direct-message thread between two users. EventScopeID nil
// means the pair's single global thread; otherwise the thread is scoped to one
// event. Participants are stored normalized (User1ID < User2ID) so the
// unordered-pair uniqueness index is a plain column index.
//
// Unique index created in migration:
// CREATE UNIQUE INDEX idx_thread_pair_scope ON message_threads(user1_id, user2_id, COALESCE(event_scope_id, 0));
type MessageThread struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	User1ID       uint       `json:"user1_id" gorm:"index"`
	User2ID       uint       `json:"user2_id" gorm:"index"`
	EventScopeID  *uint      `json:"event_scope_id,omitempty"`
	IsEncrypted   bool       `json:"is_encrypted" gorm:"default:false"`
	User1Cutoff   *time.Time `json:"-"`
	User2Cutoff   *time.Time `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// IsGlobal reports whether the thread is the pair's unscoped thread.
func (t *MessageThread) IsGlobal() bool {
	return t.EventScopeID == nil
}

// HasParticipant reports whether userID is one of the two participants.
func (t *MessageThread) HasParticipant(userID uint) bool {
	return t.User1ID == userID || t.User2ID == userID
}

// OtherParticipant returns the counterpart of userID, or 0 if userID is not a participant.
func (t *MessageThread) OtherParticipant(userID uint) uint {
	switch userID {
	case t.User1ID:
		return t.User2ID
	case t.User2ID:
		return t.User1ID
	}
	return 0
}

// CutoffFor returns the clear-history marker for userID, if any.
func (t *MessageThread) CutoffFor(userID uint) *time.Time {
	switch userID {
	case t.User1ID:
		return t.User1Cutoff
	case t.User2ID:
		return t.User2Cutoff
	}
	return nil
}

// ActivityAt is the sort key for thread listings.
func (t *MessageThread) ActivityAt() time.Time {
	if t.LastMessageAt != nil {
		return *t.LastMessageAt
	}
	return t.CreatedAt
}

// NormalizePair orders two user IDs for thread storage.
func NormalizePair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// ThreadSummary is one entry of a user's visible-thread listing.
type ThreadSummary struct {
	ID                 uint        `json:"id"`
	EventScopeID       *uint       `json:"event_scope_id,omitempty"`
	IsEncrypted        bool        `json:"is_encrypted"`
	OtherParticipant   UserCompact `json:"other_participant"`
	LastMessagePreview string      `json:"last_message_preview,omitempty"`
	LastMessageAt      *time.Time  `json:"last_message_at,omitempty"`
	UnreadCount        int64       `json:"unread_count"`
	SharesEventContext bool        `json:"shares_event_context,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}
