package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/attendly/backend/internal/models"
	"github.com/attendly/backend/internal/notify"
	"github.com/attendly/backend/internal/repositories"
	"github.com/attendly/backend/pkg/apperrors"
	"gorm.io/gorm"
)

// ConnectionService owns the connection-request lifecycle and triggers the
// history merge when a pair becomes formally connected.
type ConnectionService struct {
	uow           repositories.UnitOfWork
	connections   repositories.ConnectionRepository
	threads       repositories.ThreadRepository
	users         repositories.UserRepository
	members       repositories.MembershipRepository
	notifications repositories.NotificationRepository
	notifier      notify.Notifier
	logger        *slog.Logger
}

func NewConnectionService(
	uow repositories.UnitOfWork,
	connections repositories.ConnectionRepository,
	threads repositories.ThreadRepository,
	users repositories.UserRepository,
	members repositories.MembershipRepository,
	notifications repositories.NotificationRepository,
	notifier notify.Notifier,
	logger *slog.Logger,
) *ConnectionService {
	return &ConnectionService{
		uow:           uow,
		connections:   connections,
		threads:       threads,
		users:         users,
		members:       members,
		notifications: notifications,
		notifier:      notifier,
		logger:        logger,
	}
}

// CreateRequest opens (or reopens) a PENDING connection between requester and
// recipient. An active row for the pair is a conflict; a REMOVED or REJECTED
// row is overwritten in place so the table keeps one row per pair.
func (s *ConnectionService) CreateRequest(ctx context.Context, requesterID, recipientID uint, icebreaker string, eventID *uint) (*models.Connection, error) {
	if requesterID == recipientID {
		return nil, apperrors.Validation("cannot send a connection request to yourself")
	}
	if icebreaker == "" {
		return nil, apperrors.Validation("icebreaker message is required")
	}

	exists, err := s.users.UserExists(ctx, recipientID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "checking recipient", err)
	}
	if !exists {
		return nil, apperrors.NotFound("recipient user not found")
	}

	if eventID != nil {
		shared, err := s.members.SharesEvent(ctx, requesterID, recipientID, *eventID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "checking event membership", err)
		}
		if !shared {
			return nil, apperrors.Validation("both users must be members of the event")
		}
	}

	existing, err := s.connections.FindByPair(ctx, requesterID, recipientID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "looking up connection", err)
	}

	var conn *models.Connection
	switch {
	case existing == nil:
		conn = &models.Connection{
			RequesterID:        requesterID,
			RecipientID:        recipientID,
			Status:             models.ConnectionPending,
			IcebreakerMessage:  icebreaker,
			OriginatingEventID: eventID,
		}
		if err := s.connections.Create(ctx, conn); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperrors.Conflict("a connection already exists between these users")
			}
			return nil, apperrors.Wrap(apperrors.CodeInternal, "creating connection", err)
		}
	case existing.IsActive():
		return nil, apperrors.Conflict("a connection already exists between these users")
	default:
		reopened, err := s.connections.Reopen(ctx, existing.ID, requesterID, recipientID, icebreaker, eventID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "reopening connection", err)
		}
		if !reopened {
			// Someone else reopened the row first.
			return nil, apperrors.Conflict("a connection already exists between these users")
		}
		conn, err = s.connections.GetByID(ctx, existing.ID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "reloading connection", err)
		}
	}

	s.notifyConnection(ctx, models.NotificationConnectionRequested, requesterID, recipientID, conn, map[string]any{
		"connection_id": conn.ID,
		"requester_id":  requesterID,
		"icebreaker":    icebreaker,
		"event_id":      eventID,
		"status":        conn.Status,
	})
	return conn, nil
}

// Respond lets the recipient accept or reject a pending request. Acceptance
// establishes the global thread, seeds the icebreaker as its first message
// and merges any event-scoped history into it.
func (s *ConnectionService) Respond(ctx context.Context, connectionID, actingUserID uint, accept bool) (*models.Connection, error) {
	conn, err := s.getConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.RecipientID != actingUserID {
		return nil, apperrors.Forbidden("only the recipient can respond to a connection request")
	}
	if conn.Status != models.ConnectionPending {
		return nil, apperrors.Validation("connection request is not pending")
	}

	next := models.ConnectionRejected
	if accept {
		next = models.ConnectionAccepted
	}

	if accept {
		// The icebreaker keeps the request's creation time, so it sorts ahead
		// of event-scoped history exchanged after the request and the seed
		// stays idempotent across remove/reconnect cycles.
		seed := &models.DirectMessage{
			SenderID:  conn.RequesterID,
			Content:   conn.IcebreakerMessage,
			Status:    models.MessageDelivered,
			CreatedAt: conn.CreatedAt,
		}
		// Status flip and merge commit or roll back together: an ACCEPTED
		// connection always has its seeded global thread, and a failed merge
		// leaves the request PENDING and retryable.
		err = s.uow.Do(ctx, func(tx repositories.RepositorySet) error {
			changed, err := tx.Connections.UpdateStatusIf(ctx, conn.ID, models.ConnectionPending, next)
			if err != nil {
				return err
			}
			if !changed {
				return apperrors.Validation("connection request is not pending")
			}
			return mergeIntoGlobal(ctx, tx, conn.RequesterID, conn.RecipientID, seed)
		})
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				return nil, err
			}
			return nil, apperrors.Wrap(apperrors.CodeInternal, "accepting connection", err)
		}
	} else {
		changed, err := s.connections.UpdateStatusIf(ctx, conn.ID, models.ConnectionPending, next)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "updating connection status", err)
		}
		if !changed {
			return nil, apperrors.Validation("connection request is not pending")
		}
	}
	conn.Status = next

	s.notifyConnection(ctx, models.NotificationConnectionResponded, actingUserID, conn.RequesterID, conn, map[string]any{
		"connection_id": conn.ID,
		"recipient_id":  actingUserID,
		"accepted":      accept,
		"status":        conn.Status,
	})
	return conn, nil
}

// Remove dissolves an accepted connection. The pair's global thread is hard
// deleted together with its messages; event-scoped threads are untouched so
// the conversation can resurface there.
func (s *ConnectionService) Remove(ctx context.Context, connectionID, actingUserID uint) error {
	conn, err := s.getConnection(ctx, connectionID)
	if err != nil {
		return err
	}
	if conn.RequesterID != actingUserID && conn.RecipientID != actingUserID {
		return apperrors.Forbidden("only a participant can remove a connection")
	}
	if conn.Status != models.ConnectionAccepted {
		return apperrors.Validation("only an accepted connection can be removed")
	}

	err = s.uow.Do(ctx, func(tx repositories.RepositorySet) error {
		changed, err := tx.Connections.UpdateStatusIf(ctx, conn.ID, models.ConnectionAccepted, models.ConnectionRemoved)
		if err != nil {
			return err
		}
		if !changed {
			return apperrors.Validation("only an accepted connection can be removed")
		}
		global, err := tx.Threads.FindGlobalByPair(ctx, conn.RequesterID, conn.RecipientID)
		if err != nil {
			return err
		}
		if global != nil {
			return tx.Threads.DeleteWithMessages(ctx, global.ID)
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return apperrors.Wrap(apperrors.CodeInternal, "removing connection", err)
	}
	return nil
}

// AreConnected reports whether the pair has an ACCEPTED connection. Exposed
// for other subsystems as well as the messaging authorizer.
func (s *ConnectionService) AreConnected(ctx context.Context, userA, userB uint) (bool, error) {
	conn, err := s.connections.FindByPair(ctx, userA, userB)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeInternal, "looking up connection", err)
	}
	return conn != nil && conn.Status == models.ConnectionAccepted, nil
}

// ListPending returns open requests awaiting the user's response.
func (s *ConnectionService) ListPending(ctx context.Context, userID uint) ([]models.Connection, error) {
	conns, err := s.connections.ListPendingForRecipient(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "listing pending connections", err)
	}
	return conns, nil
}

// ListAccepted returns the user's established connections.
func (s *ConnectionService) ListAccepted(ctx context.Context, userID uint) ([]models.Connection, error) {
	conns, err := s.connections.ListAcceptedForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "listing connections", err)
	}
	return conns, nil
}

// MergeEventThreadsIntoGlobal copies the pair's event-scoped history into
// their global thread. Safe to re-run: already-copied messages are skipped.
func (s *ConnectionService) MergeEventThreadsIntoGlobal(ctx context.Context, userA, userB uint) error {
	return s.mergeEventHistory(ctx, userA, userB, nil)
}

// mergeEventHistory runs the whole merge in one transaction: a failure on any
// source thread rolls back everything, so the global thread is never left
// partially merged.
func (s *ConnectionService) mergeEventHistory(ctx context.Context, userA, userB uint, seed *models.DirectMessage) error {
	err := s.uow.Do(ctx, func(tx repositories.RepositorySet) error {
		return mergeIntoGlobal(ctx, tx, userA, userB, seed)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "merging event threads", err)
	}
	return nil
}

// mergeIntoGlobal copies the pair's event-scoped history (and the optional
// seed) into their global thread. Must run inside a transaction.
func mergeIntoGlobal(ctx context.Context, tx repositories.RepositorySet, userA, userB uint, seed *models.DirectMessage) error {
	global, err := tx.Threads.GetOrCreate(ctx, userA, userB, nil)
	if err != nil {
		return err
	}

	if seed != nil {
		if _, err := tx.Messages.CopyIfAbsent(ctx, global.ID, *seed); err != nil {
			return err
		}
		if err := tx.Threads.TouchLastMessage(ctx, global.ID, seed.CreatedAt); err != nil {
			return err
		}
	}

	eventThreads, err := tx.Threads.ListEventScopedByPair(ctx, userA, userB)
	if err != nil {
		return err
	}
	for _, source := range eventThreads {
		messages, err := tx.Messages.ListByThreadAsc(ctx, source.ID)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			if _, err := tx.Messages.CopyIfAbsent(ctx, global.ID, msg); err != nil {
				return err
			}
		}
		if source.LastMessageAt != nil {
			if err := tx.Threads.TouchLastMessage(ctx, global.ID, *source.LastMessageAt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *ConnectionService) getConnection(ctx context.Context, id uint) (*models.Connection, error) {
	conn, err := s.connections.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("connection not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "loading connection", err)
	}
	return conn, nil
}

// notifyConnection records a persistent notification and publishes the live
// event. Both are best effort and never fail the state change.
func (s *ConnectionService) notifyConnection(ctx context.Context, eventType string, actorID, recipientID uint, conn *models.Connection, payload map[string]any) {
	record := &models.Notification{
		Type:        eventType,
		ActorID:     actorID,
		RecipientID: recipientID,
		TargetID:    conn.ID,
		TargetType:  "connection",
		Message:     conn.IcebreakerMessage,
	}
	if err := s.notifications.CreateNotification(ctx, record); err != nil {
		s.logger.Error("persist notification", "type", eventType, "err", err)
	}
	s.notifier.Publish(ctx, recipientID, notify.NewEvent(eventType, payload))
}
