package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/attendly/backend/internal/models"
	"github.com/attendly/backend/internal/notify"
	"github.com/attendly/backend/internal/repositories"
	"github.com/attendly/backend/pkg/apperrors"
	"gorm.io/gorm"
)

// MessageService authorizes and appends direct messages, and owns read
// receipts and message listing.
type MessageService struct {
	uow           repositories.UnitOfWork
	threads       repositories.ThreadRepository
	messages      repositories.MessageRepository
	connections   repositories.ConnectionRepository
	users         repositories.UserRepository
	members       repositories.MembershipRepository
	notifications repositories.NotificationRepository
	notifier      notify.Notifier
	logger        *slog.Logger
}

func NewMessageService(
	uow repositories.UnitOfWork,
	threads repositories.ThreadRepository,
	messages repositories.MessageRepository,
	connections repositories.ConnectionRepository,
	users repositories.UserRepository,
	members repositories.MembershipRepository,
	notifications repositories.NotificationRepository,
	notifier notify.Notifier,
	logger *slog.Logger,
) *MessageService {
	return &MessageService{
		uow:           uow,
		threads:       threads,
		messages:      messages,
		connections:   connections,
		users:         users,
		members:       members,
		notifications: notifications,
		notifier:      notifier,
		logger:        logger,
	}
}

// CanSend decides whether sender may post to recipient in the given thread.
// An accepted connection always allows it. Without one, an event-scoped
// thread still works when either side holds an organizer/admin role in the
// event and the other side is a member — the privileged side can open the
// conversation and the attendee can reply in the same thread.
func (s *MessageService) CanSend(ctx context.Context, senderID, recipientID uint, thread *models.MessageThread) error {
	conn, err := s.connections.FindByPair(ctx, senderID, recipientID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "looking up connection", err)
	}
	if conn != nil && conn.Status == models.ConnectionAccepted {
		return nil
	}

	if thread.EventScopeID == nil {
		return apperrors.Forbidden("must be connected to message in this thread")
	}

	eventID := *thread.EventScopeID
	senderRole, err := s.members.RoleInEvent(ctx, senderID, eventID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "checking sender role", err)
	}
	recipientRole, err := s.members.RoleInEvent(ctx, recipientID, eventID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "checking recipient role", err)
	}

	senderIsMember := senderRole != ""
	recipientIsMember := recipientRole != ""
	if models.HasEventPrivilege(senderRole) && recipientIsMember {
		return nil
	}
	if models.HasEventPrivilege(recipientRole) && senderIsMember {
		return nil
	}
	return apperrors.Forbidden("requires an accepted connection or event organizer privilege")
}

// OpenThread gets or creates the thread a sender would use toward a
// recipient, applying the same authorization as posting a message.
func (s *MessageService) OpenThread(ctx context.Context, senderID, recipientID uint, eventID *uint) (*models.MessageThread, error) {
	if senderID == recipientID {
		return nil, apperrors.Validation("cannot open a thread with yourself")
	}
	exists, err := s.users.UserExists(ctx, recipientID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "checking recipient", err)
	}
	if !exists {
		return nil, apperrors.NotFound("recipient user not found")
	}

	user1, user2 := models.NormalizePair(senderID, recipientID)
	candidate := &models.MessageThread{User1ID: user1, User2ID: user2, EventScopeID: eventID}
	if err := s.CanSend(ctx, senderID, recipientID, candidate); err != nil {
		return nil, err
	}

	thread, err := s.threads.GetOrCreate(ctx, senderID, recipientID, eventID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "opening thread", err)
	}
	return thread, nil
}

// SendMessage authorizes the post, appends the message and advances the
// thread's activity stamp in one transaction, then notifies the recipient.
func (s *MessageService) SendMessage(ctx context.Context, threadID, senderID uint, content string, encryptedContent *string) (*models.DirectMessage, error) {
	if content == "" {
		return nil, apperrors.Validation("message content is required")
	}
	thread, err := s.getThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(senderID) {
		return nil, apperrors.Forbidden("not a participant of this thread")
	}
	recipientID := thread.OtherParticipant(senderID)

	if err := s.CanSend(ctx, senderID, recipientID, thread); err != nil {
		return nil, err
	}

	msg := &models.DirectMessage{
		ThreadID:         threadID,
		SenderID:         senderID,
		Content:          content,
		EncryptedContent: encryptedContent,
		Status:           models.MessageDelivered,
		CreatedAt:        time.Now(),
	}
	err = s.uow.Do(ctx, func(tx repositories.RepositorySet) error {
		if err := tx.Messages.Append(ctx, msg); err != nil {
			return err
		}
		return tx.Threads.TouchLastMessage(ctx, threadID, msg.CreatedAt)
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "sending message", err)
	}

	record := &models.Notification{
		Type:        models.NotificationMessageCreated,
		ActorID:     senderID,
		RecipientID: recipientID,
		TargetID:    threadID,
		TargetType:  "thread",
		Message:     previewOf(content),
	}
	if err := s.notifications.CreateNotification(ctx, record); err != nil {
		s.logger.Error("persist notification", "type", record.Type, "err", err)
	}
	s.notifier.Publish(ctx, recipientID, notify.NewEvent(models.NotificationMessageCreated, map[string]any{
		"message_id": msg.ID,
		"thread_id":  threadID,
		"sender_id":  senderID,
		"content":    msg.Content,
		"status":     msg.Status,
		"created_at": msg.CreatedAt,
	}))
	return msg, nil
}

// ListMessages pages through a thread newest-first, hiding anything at or
// before the caller's cutoff.
func (s *MessageService) ListMessages(ctx context.Context, threadID, userID uint, page, limit int) ([]models.DirectMessage, int64, error) {
	thread, err := s.getThread(ctx, threadID)
	if err != nil {
		return nil, 0, err
	}
	if !thread.HasParticipant(userID) {
		return nil, 0, apperrors.Forbidden("not a participant of this thread")
	}
	messages, total, err := s.messages.ListPage(ctx, threadID, thread.CutoffFor(userID), page, limit)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeInternal, "listing messages", err)
	}
	return messages, total, nil
}

// MarkRead promotes the counterpart's messages to READ and tells them about
// it. Status only ever moves forward; re-reading is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, threadID, userID uint) error {
	thread, err := s.getThread(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.HasParticipant(userID) {
		return apperrors.Forbidden("not a participant of this thread")
	}
	updated, err := s.messages.MarkRead(ctx, threadID, userID, thread.CutoffFor(userID))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "marking messages read", err)
	}
	if updated > 0 {
		s.notifier.Publish(ctx, thread.OtherParticipant(userID), notify.NewEvent(models.NotificationMessagesRead, map[string]any{
			"thread_id": threadID,
			"reader_id": userID,
			"count":     updated,
		}))
	}
	return nil
}

func (s *MessageService) getThread(ctx context.Context, id uint) (*models.MessageThread, error) {
	thread, err := s.threads.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("thread not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "loading thread", err)
	}
	return thread, nil
}
