package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/attendly/backend/internal/models"
	"gorm.io/gorm"
)

// ThreadRepository defines the interface for message-thread data operations.
type ThreadRepository interface {
	GetByID(ctx context.Context, id uint) (*models.MessageThread, error)
	// GetOrCreate returns the pair's thread for the given scope, creating it
	// if absent. Concurrent creators converge on the same row.
	GetOrCreate(ctx context.Context, userA, userB uint, eventScopeID *uint) (*models.MessageThread, error)
	// FindGlobalByPair returns the pair's global thread, or nil when none exists.
	FindGlobalByPair(ctx context.Context, userA, userB uint) (*models.MessageThread, error)
	ListEventScopedByPair(ctx context.Context, userA, userB uint) ([]models.MessageThread, error)
	// ListCandidatesForUser applies the storage-level visibility filter:
	// threads the user participates in whose cutoff is unset or older than
	// the newest message.
	ListCandidatesForUser(ctx context.Context, userID uint) ([]models.MessageThread, error)
	SetCutoff(ctx context.Context, threadID, userID uint, at time.Time) error
	// TouchLastMessage advances last_message_at, never rewinding it.
	TouchLastMessage(ctx context.Context, threadID uint, at time.Time) error
	DeleteWithMessages(ctx context.Context, threadID uint) error
}

// PostgresThreadRepository implements ThreadRepository for PostgreSQL
type PostgresThreadRepository struct {
	db *gorm.DB
}

// NewPostgresThreadRepository creates a new PostgresThreadRepository
func NewPostgresThreadRepository(db *gorm.DB) *PostgresThreadRepository {
	return &PostgresThreadRepository{db: db}
}

func (r *PostgresThreadRepository) GetByID(ctx context.Context, id uint) (*models.MessageThread, error) {
	var thread models.MessageThread
	if err := r.db.WithContext(ctx).First(&thread, id).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func scopeCondition(q *gorm.DB, eventScopeID *uint) *gorm.DB {
	if eventScopeID == nil {
		return q.Where("event_scope_id IS NULL")
	}
	return q.Where("event_scope_id = ?", *eventScopeID)
}

func (r *PostgresThreadRepository) GetOrCreate(ctx context.Context, userA, userB uint, eventScopeID *uint) (*models.MessageThread, error) {
	user1, user2 := models.NormalizePair(userA, userB)

	var thread models.MessageThread
	q := r.db.WithContext(ctx).Where("user1_id = ? AND user2_id = ?", user1, user2)
	err := scopeCondition(q, eventScopeID).First(&thread).Error
	if err == nil {
		return &thread, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	thread = models.MessageThread{
		User1ID:      user1,
		User2ID:      user2,
		EventScopeID: eventScopeID,
	}
	err = r.db.WithContext(ctx).Create(&thread).Error
	if err == nil {
		return &thread, nil
	}
	// A concurrent creator hit the unique pair/scope index first; their row wins.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var existing models.MessageThread
		q := r.db.WithContext(ctx).Where("user1_id = ? AND user2_id = ?", user1, user2)
		if ferr := scopeCondition(q, eventScopeID).First(&existing).Error; ferr != nil {
			return nil, ferr
		}
		return &existing, nil
	}
	return nil, err
}

func (r *PostgresThreadRepository) FindGlobalByPair(ctx context.Context, userA, userB uint) (*models.MessageThread, error) {
	user1, user2 := models.NormalizePair(userA, userB)
	var thread models.MessageThread
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ? AND event_scope_id IS NULL", user1, user2).
		First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

func (r *PostgresThreadRepository) ListEventScopedByPair(ctx context.Context, userA, userB uint) ([]models.MessageThread, error) {
	user1, user2 := models.NormalizePair(userA, userB)
	var threads []models.MessageThread
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ? AND event_scope_id IS NOT NULL", user1, user2).
		Order("created_at ASC").
		Find(&threads).Error
	return threads, err
}

// ListCandidatesForUser keeps the expensive pairwise suppression out of SQL:
// it only bounds the candidate set with the participant + cutoff predicate.
func (r *PostgresThreadRepository) ListCandidatesForUser(ctx context.Context, userID uint) ([]models.MessageThread, error) {
	var threads []models.MessageThread
	err := r.db.WithContext(ctx).
		Where(`(user1_id = ? AND (user1_cutoff IS NULL OR EXISTS (
			SELECT 1 FROM direct_messages m WHERE m.thread_id = message_threads.id AND m.created_at > message_threads.user1_cutoff)))
			OR (user2_id = ? AND (user2_cutoff IS NULL OR EXISTS (
			SELECT 1 FROM direct_messages m WHERE m.thread_id = message_threads.id AND m.created_at > message_threads.user2_cutoff)))`,
			userID, userID).
		Find(&threads).Error
	return threads, err
}

// SetCutoff stamps the caller's cutoff column in one guarded statement; the
// participant check lives in the WHERE clause so there is no read-then-update
// window.
func (r *PostgresThreadRepository) SetCutoff(ctx context.Context, threadID, userID uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.MessageThread{}).
		Where("id = ? AND (user1_id = ? OR user2_id = ?)", threadID, userID, userID).
		Updates(map[string]interface{}{
			"user1_cutoff": gorm.Expr("CASE WHEN user1_id = ? THEN ? ELSE user1_cutoff END", userID, at),
			"user2_cutoff": gorm.Expr("CASE WHEN user2_id = ? THEN ? ELSE user2_cutoff END", userID, at),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *PostgresThreadRepository) TouchLastMessage(ctx context.Context, threadID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.MessageThread{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at < ?)", threadID, at).
		Update("last_message_at", at).Error
}

func (r *PostgresThreadRepository) DeleteWithMessages(ctx context.Context, threadID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&models.DirectMessage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.MessageThread{}, threadID).Error
	})
}
