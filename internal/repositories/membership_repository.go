package repositories

import (
	"context"
	"errors"

	"github.com/attendly/backend/internal/models"
	"gorm.io/gorm"
)

// MembershipRepository answers event-membership questions for the messaging core.
type MembershipRepository interface {
	IsMember(ctx context.Context, userID, eventID uint) (bool, error)
	// RoleInEvent returns the member's role, or "" when the user is not a member.
	RoleInEvent(ctx context.Context, userID, eventID uint) (string, error)
	SharesEvent(ctx context.Context, userA, userB, eventID uint) (bool, error)
}

// PostgresMembershipRepository implements MembershipRepository for PostgreSQL
type PostgresMembershipRepository struct {
	db *gorm.DB
}

// NewPostgresMembershipRepository creates a new PostgresMembershipRepository
func NewPostgresMembershipRepository(db *gorm.DB) *PostgresMembershipRepository {
	return &PostgresMembershipRepository{db: db}
}

// IsMember reports whether the user belongs to the event
func (r *PostgresMembershipRepository) IsMember(ctx context.Context, userID, eventID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EventMembership{}).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		Count(&count).Error
	return count > 0, err
}

// RoleInEvent returns the member's role within the event, "" if not a member
func (r *PostgresMembershipRepository) RoleInEvent(ctx context.Context, userID, eventID uint) (string, error) {
	var membership models.EventMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return membership.Role, nil
}

// SharesEvent reports whether both users are members of the event
func (r *PostgresMembershipRepository) SharesEvent(ctx context.Context, userA, userB, eventID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EventMembership{}).
		Where("event_id = ? AND user_id IN (?, ?)", eventID, userA, userB).
		Distinct("user_id").
		Count(&count).Error
	return count == 2, err
}
