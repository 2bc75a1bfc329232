package models

import "time"

// Event roles relevant to messaging privileges.
const (
	RoleAttendee  = "ATTENDEE"
	RoleOrganizer = "ORGANIZER"
	RoleAdmin     = "ADMIN"
)

type Event struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}

// EventMembership links a user to an event with a role.
type EventMembership struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	EventID   uint      `json:"event_id" gorm:"index:idx_event_member,unique"`
	UserID    uint      `json:"user_id" gorm:"index:idx_event_member,unique"`
	Role      string    `json:"role" gorm:"type:varchar(20);default:'ATTENDEE'"`
	CreatedAt time.Time `json:"created_at"`
}

// HasEventPrivilege reports whether a role may message members without a connection.
func HasEventPrivilege(role string) bool {
	return role == RoleOrganizer || role == RoleAdmin
}
