package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/attendly/backend/internal/models"
	"gorm.io/gorm"
)

// MessageRepository defines the interface for direct-message data operations.
type MessageRepository interface {
	Append(ctx context.Context, msg *models.DirectMessage) error
	// CopyIfAbsent inserts a copy of a message into a thread unless one with
	// the same (sender_id, content, created_at) already exists there. The
	// existence check and insert run in one transaction. Reports whether a
	// row was inserted.
	CopyIfAbsent(ctx context.Context, threadID uint, msg models.DirectMessage) (bool, error)
	ListByThreadAsc(ctx context.Context, threadID uint) ([]models.DirectMessage, error)
	// ListPage returns a page of messages newest-first, hiding anything at or
	// before the cutoff.
	ListPage(ctx context.Context, threadID uint, cutoff *time.Time, page, limit int) ([]models.DirectMessage, int64, error)
	LatestInThread(ctx context.Context, threadID uint, cutoff *time.Time) (*models.DirectMessage, error)
	UnreadCount(ctx context.Context, threadID, readerID uint, cutoff *time.Time) (int64, error)
	// MarkRead promotes every message not sent by readerID to READ, skipping
	// anything hidden behind the reader's cutoff.
	MarkRead(ctx context.Context, threadID, readerID uint, cutoff *time.Time) (int64, error)
}

// PostgresMessageRepository implements MessageRepository for PostgreSQL
type PostgresMessageRepository struct {
	db *gorm.DB
}

// NewPostgresMessageRepository creates a new PostgresMessageRepository
func NewPostgresMessageRepository(db *gorm.DB) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Append(ctx context.Context, msg *models.DirectMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *PostgresMessageRepository) CopyIfAbsent(ctx context.Context, threadID uint, msg models.DirectMessage) (bool, error) {
	inserted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.DirectMessage{}).
			Where("thread_id = ? AND sender_id = ? AND content = ? AND created_at = ?",
				threadID, msg.SenderID, msg.Content, msg.CreatedAt).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		copied := models.DirectMessage{
			ThreadID:         threadID,
			SenderID:         msg.SenderID,
			Content:          msg.Content,
			EncryptedContent: msg.EncryptedContent,
			Status:           msg.Status,
			CreatedAt:        msg.CreatedAt,
		}
		if err := tx.Create(&copied).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *PostgresMessageRepository) ListByThreadAsc(ctx context.Context, threadID uint) ([]models.DirectMessage, error) {
	var messages []models.DirectMessage
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func cutoffScope(q *gorm.DB, cutoff *time.Time) *gorm.DB {
	if cutoff != nil {
		return q.Where("created_at > ?", *cutoff)
	}
	return q
}

func (r *PostgresMessageRepository) ListPage(ctx context.Context, threadID uint, cutoff *time.Time, page, limit int) ([]models.DirectMessage, int64, error) {
	var messages []models.DirectMessage
	var total int64

	base := r.db.WithContext(ctx).Model(&models.DirectMessage{}).Where("thread_id = ?", threadID)
	base = cutoffScope(base, cutoff)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	q := r.db.WithContext(ctx).Where("thread_id = ?", threadID)
	q = cutoffScope(q, cutoff)
	err := q.Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&messages).Error
	return messages, total, err
}

func (r *PostgresMessageRepository) LatestInThread(ctx context.Context, threadID uint, cutoff *time.Time) (*models.DirectMessage, error) {
	var msg models.DirectMessage
	q := r.db.WithContext(ctx).Where("thread_id = ?", threadID)
	q = cutoffScope(q, cutoff)
	err := q.Order("created_at DESC").First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *PostgresMessageRepository) UnreadCount(ctx context.Context, threadID, readerID uint, cutoff *time.Time) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("thread_id = ? AND sender_id <> ? AND status <> ?", threadID, readerID, models.MessageRead)
	q = cutoffScope(q, cutoff)
	err := q.Count(&count).Error
	return count, err
}

func (r *PostgresMessageRepository) MarkRead(ctx context.Context, threadID, readerID uint, cutoff *time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("thread_id = ? AND sender_id <> ? AND status <> ?", threadID, readerID, models.MessageRead)
	q = cutoffScope(q, cutoff)
	result := q.Update("status", models.MessageRead)
	return result.RowsAffected, result.Error
}
