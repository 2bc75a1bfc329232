package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/attendly/backend/internal/models"
	"github.com/attendly/backend/internal/repositories"
	"github.com/attendly/backend/pkg/apperrors"
	"gorm.io/gorm"
)

// ThreadService computes which threads a user can see and owns the per-user
// clear-history cutoff.
type ThreadService struct {
	threads     repositories.ThreadRepository
	connections repositories.ConnectionRepository
	messages    repositories.MessageRepository
	users       repositories.UserRepository
	members     repositories.MembershipRepository
}

func NewThreadService(
	threads repositories.ThreadRepository,
	connections repositories.ConnectionRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	members repositories.MembershipRepository,
) *ThreadService {
	return &ThreadService{
		threads:     threads,
		connections: connections,
		messages:    messages,
		users:       users,
		members:     members,
	}
}

// ListVisibleThreads runs the two-stage visibility filter. Storage narrows
// the candidate set to threads the user participates in that have activity
// past their cutoff; the pairwise suppression below is awkward as SQL and
// runs in memory over that small set.
func (s *ThreadService) ListVisibleThreads(ctx context.Context, userID uint, eventContext *uint) ([]models.ThreadSummary, error) {
	candidates, err := s.threads.ListCandidatesForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "listing candidate threads", err)
	}

	var globals, eventScoped []models.MessageThread
	for _, t := range candidates {
		if t.IsGlobal() {
			globals = append(globals, t)
		} else {
			eventScoped = append(eventScoped, t)
		}
	}

	// One query resolves every counterpart's connection status.
	conns, err := s.connections.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "listing connections", err)
	}
	statusByOther := make(map[uint]models.ConnectionStatus, len(conns))
	for _, c := range conns {
		statusByOther[c.OtherParticipant(userID)] = c.Status
	}

	// A global thread is visible unless the pair's connection was removed.
	// Every pair with a visible global thread suppresses its event-scoped
	// duplicates; those stay in storage for later re-activation.
	activeGlobalPairs := make(map[uint]bool)
	visible := make([]models.MessageThread, 0, len(candidates))
	for _, t := range globals {
		other := t.OtherParticipant(userID)
		if statusByOther[other] == models.ConnectionRemoved {
			continue
		}
		activeGlobalPairs[other] = true
		visible = append(visible, t)
	}
	for _, t := range eventScoped {
		if activeGlobalPairs[t.OtherParticipant(userID)] {
			continue
		}
		visible = append(visible, t)
	}

	sort.Slice(visible, func(i, j int) bool {
		return visible[i].ActivityAt().After(visible[j].ActivityAt())
	})

	summaries := make([]models.ThreadSummary, 0, len(visible))
	for _, t := range visible {
		summary, err := s.summarize(ctx, &t, userID, eventContext)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *ThreadService) summarize(ctx context.Context, thread *models.MessageThread, userID uint, eventContext *uint) (models.ThreadSummary, error) {
	otherID := thread.OtherParticipant(userID)
	cutoff := thread.CutoffFor(userID)

	summary := models.ThreadSummary{
		ID:            thread.ID,
		EventScopeID:  thread.EventScopeID,
		IsEncrypted:   thread.IsEncrypted,
		LastMessageAt: thread.LastMessageAt,
		CreatedAt:     thread.CreatedAt,
	}

	other, err := s.users.GetUserByID(ctx, otherID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ThreadSummary{}, apperrors.Wrap(apperrors.CodeInternal, "loading participant", err)
		}
		summary.OtherParticipant = models.UserCompact{ID: otherID}
	} else {
		summary.OtherParticipant = other.ToCompact()
	}

	latest, err := s.messages.LatestInThread(ctx, thread.ID, cutoff)
	if err != nil {
		return models.ThreadSummary{}, apperrors.Wrap(apperrors.CodeInternal, "loading last message", err)
	}
	if latest != nil {
		summary.LastMessagePreview = previewOf(latest.Content)
		summary.LastMessageAt = &latest.CreatedAt
	}

	unread, err := s.messages.UnreadCount(ctx, thread.ID, userID, cutoff)
	if err != nil {
		return models.ThreadSummary{}, apperrors.Wrap(apperrors.CodeInternal, "counting unread", err)
	}
	summary.UnreadCount = unread

	if eventContext != nil {
		shared, err := s.members.IsMember(ctx, otherID, *eventContext)
		if err != nil {
			return models.ThreadSummary{}, apperrors.Wrap(apperrors.CodeInternal, "checking event context", err)
		}
		summary.SharesEventContext = shared
	}
	return summary, nil
}

const previewLength = 120

func previewOf(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}

// ClearForUser hides the thread's current history from one participant by
// stamping their cutoff at now. The other participant's view is unaffected;
// the thread reappears for this user once a newer message arrives.
func (s *ThreadService) ClearForUser(ctx context.Context, threadID, userID uint) error {
	thread, err := s.getThread(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.HasParticipant(userID) {
		return apperrors.Forbidden("not a participant of this thread")
	}
	if err := s.threads.SetCutoff(ctx, threadID, userID, time.Now()); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "setting cutoff", err)
	}
	return nil
}

func (s *ThreadService) getThread(ctx context.Context, id uint) (*models.MessageThread, error) {
	thread, err := s.threads.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("thread not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "loading thread", err)
	}
	return thread, nil
}
