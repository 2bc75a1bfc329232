package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/attendly/backend/internal/models"
	"gorm.io/gorm"
)

// ConnectionRepository defines the interface for connection data operations.
// One row exists per unordered user pair; uniqueness is backed by an
// expression index on (LEAST(requester_id, recipient_id), GREATEST(...)).
type ConnectionRepository interface {
	Create(ctx context.Context, conn *models.Connection) error
	GetByID(ctx context.Context, id uint) (*models.Connection, error)
	// FindByPair returns the pair's row regardless of which side requested,
	// or nil when no row exists.
	FindByPair(ctx context.Context, userA, userB uint) (*models.Connection, error)
	// Reopen overwrites a REMOVED (or REJECTED) row into a fresh PENDING
	// request. Returns false if the row went active since it was read.
	Reopen(ctx context.Context, id uint, requesterID, recipientID uint, icebreaker string, eventID *uint) (bool, error)
	// UpdateStatusIf transitions status only when the current value matches
	// expected, reporting whether the row changed.
	UpdateStatusIf(ctx context.Context, id uint, expected, next models.ConnectionStatus) (bool, error)
	ListPendingForRecipient(ctx context.Context, userID uint) ([]models.Connection, error)
	ListAcceptedForUser(ctx context.Context, userID uint) ([]models.Connection, error)
	// ListForUser returns every row involving the user regardless of status,
	// so callers resolving many pairs at once issue a single query.
	ListForUser(ctx context.Context, userID uint) ([]models.Connection, error)
}

// PostgresConnectionRepository implements ConnectionRepository for PostgreSQL
type PostgresConnectionRepository struct {
	db *gorm.DB
}

// NewPostgresConnectionRepository creates a new PostgresConnectionRepository
func NewPostgresConnectionRepository(db *gorm.DB) *PostgresConnectionRepository {
	return &PostgresConnectionRepository{db: db}
}

func (r *PostgresConnectionRepository) Create(ctx context.Context, conn *models.Connection) error {
	return r.db.WithContext(ctx).Create(conn).Error
}

func (r *PostgresConnectionRepository) GetByID(ctx context.Context, id uint) (*models.Connection, error) {
	var conn models.Connection
	if err := r.db.WithContext(ctx).First(&conn, id).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *PostgresConnectionRepository) FindByPair(ctx context.Context, userA, userB uint) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)",
			userA, userB, userB, userA).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

// Reopen is the single atomic update that turns an inactive row back into a
// PENDING request. The status guard keeps two concurrent requesters from both
// believing they created the fresh request.
func (r *PostgresConnectionRepository) Reopen(ctx context.Context, id uint, requesterID, recipientID uint, icebreaker string, eventID *uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Connection{}).
		Where("id = ? AND status IN ?", id, []models.ConnectionStatus{models.ConnectionRemoved, models.ConnectionRejected}).
		Updates(map[string]any{
			"requester_id":         requesterID,
			"recipient_id":         recipientID,
			"status":               models.ConnectionPending,
			"icebreaker_message":   icebreaker,
			"originating_event_id": eventID,
			"created_at":           time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PostgresConnectionRepository) UpdateStatusIf(ctx context.Context, id uint, expected, next models.ConnectionStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Connection{}).
		Where("id = ? AND status = ?", id, expected).
		Update("status", next)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PostgresConnectionRepository) ListPendingForRecipient(ctx context.Context, userID uint) ([]models.Connection, error) {
	var conns []models.Connection
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", userID, models.ConnectionPending).
		Order("created_at DESC").
		Find(&conns).Error
	return conns, err
}

func (r *PostgresConnectionRepository) ListAcceptedForUser(ctx context.Context, userID uint) ([]models.Connection, error) {
	var conns []models.Connection
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? OR recipient_id = ?) AND status = ?", userID, userID, models.ConnectionAccepted).
		Order("updated_at DESC").
		Find(&conns).Error
	return conns, err
}

func (r *PostgresConnectionRepository) ListForUser(ctx context.Context, userID uint) ([]models.Connection, error) {
	var conns []models.Connection
	err := r.db.WithContext(ctx).
		Where("requester_id = ? OR recipient_id = ?", userID, userID).
		Find(&conns).Error
	return conns, err
}
