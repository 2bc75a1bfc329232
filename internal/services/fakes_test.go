package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/attendly/backend/internal/models"
	"github.com/attendly/backend/internal/notify"
	"github.com/attendly/backend/internal/repositories"
	"gorm.io/gorm"
)

// fakeStore is a shared in-memory backend for all fake repositories, so a
// test exercises the services against one consistent dataset.
type fakeStore struct {
	mu sync.Mutex

	users         map[uint]models.User
	memberships   []models.EventMembership
	connections   map[uint]*models.Connection
	threads       map[uint]*models.MessageThread
	messages      map[uint]*models.DirectMessage
	notifications []models.Notification

	nextConnectionID uint
	nextThreadID     uint
	nextMessageID    uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:            make(map[uint]models.User),
		connections:      make(map[uint]*models.Connection),
		threads:          make(map[uint]*models.MessageThread),
		messages:         make(map[uint]*models.DirectMessage),
		nextConnectionID: 1,
		nextThreadID:     1,
		nextMessageID:    1,
	}
}

func (s *fakeStore) addUser(id uint, name string) {
	s.users[id] = models.User{ID: id, Name: name, Email: name + "@example.com"}
}

func (s *fakeStore) addMembership(userID, eventID uint, role string) {
	s.memberships = append(s.memberships, models.EventMembership{UserID: userID, EventID: eventID, Role: role})
}

func (s *fakeStore) findConnectionLocked(a, b uint) *models.Connection {
	for _, c := range s.connections {
		if (c.RequesterID == a && c.RecipientID == b) || (c.RequesterID == b && c.RecipientID == a) {
			return c
		}
	}
	return nil
}

func (s *fakeStore) threadMessagesLocked(threadID uint) []models.DirectMessage {
	var out []models.DirectMessage
	for _, m := range s.messages {
		if m.ThreadID == threadID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// --- connection repository ---

type fakeConnectionRepo struct {
	store *fakeStore

	pairLookups int
}

func (r *fakeConnectionRepo) Create(_ context.Context, conn *models.Connection) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.findConnectionLocked(conn.RequesterID, conn.RecipientID) != nil {
		return gorm.ErrDuplicatedKey
	}
	conn.ID = r.store.nextConnectionID
	r.store.nextConnectionID++
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now()
	}
	conn.UpdatedAt = conn.CreatedAt
	stored := *conn
	r.store.connections[conn.ID] = &stored
	return nil
}

func (r *fakeConnectionRepo) GetByID(_ context.Context, id uint) (*models.Connection, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.connections[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *c
	return &out, nil
}

func (r *fakeConnectionRepo) FindByPair(_ context.Context, userA, userB uint) (*models.Connection, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.pairLookups++
	c := r.store.findConnectionLocked(userA, userB)
	if c == nil {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r *fakeConnectionRepo) Reopen(_ context.Context, id uint, requesterID, recipientID uint, icebreaker string, eventID *uint) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.connections[id]
	if !ok {
		return false, nil
	}
	if c.Status != models.ConnectionRemoved && c.Status != models.ConnectionRejected {
		return false, nil
	}
	c.RequesterID = requesterID
	c.RecipientID = recipientID
	c.Status = models.ConnectionPending
	c.IcebreakerMessage = icebreaker
	c.OriginatingEventID = eventID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	return true, nil
}

func (r *fakeConnectionRepo) UpdateStatusIf(_ context.Context, id uint, expected, next models.ConnectionStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.connections[id]
	if !ok || c.Status != expected {
		return false, nil
	}
	c.Status = next
	c.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeConnectionRepo) ListPendingForRecipient(_ context.Context, userID uint) ([]models.Connection, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Connection
	for _, c := range r.store.connections {
		if c.RecipientID == userID && c.Status == models.ConnectionPending {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeConnectionRepo) ListAcceptedForUser(_ context.Context, userID uint) ([]models.Connection, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Connection
	for _, c := range r.store.connections {
		if (c.RequesterID == userID || c.RecipientID == userID) && c.Status == models.ConnectionAccepted {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeConnectionRepo) ListForUser(_ context.Context, userID uint) ([]models.Connection, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Connection
	for _, c := range r.store.connections {
		if c.RequesterID == userID || c.RecipientID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- thread repository ---

type fakeThreadRepo struct{ store *fakeStore }

func (r *fakeThreadRepo) GetByID(_ context.Context, id uint) (*models.MessageThread, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.threads[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *t
	return &out, nil
}

func (r *fakeThreadRepo) findLocked(user1, user2 uint, eventScopeID *uint) *models.MessageThread {
	for _, t := range r.store.threads {
		if t.User1ID != user1 || t.User2ID != user2 {
			continue
		}
		if (t.EventScopeID == nil) != (eventScopeID == nil) {
			continue
		}
		if eventScopeID != nil && *t.EventScopeID != *eventScopeID {
			continue
		}
		return t
	}
	return nil
}

func (r *fakeThreadRepo) GetOrCreate(_ context.Context, userA, userB uint, eventScopeID *uint) (*models.MessageThread, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user1, user2 := models.NormalizePair(userA, userB)
	if existing := r.findLocked(user1, user2, eventScopeID); existing != nil {
		out := *existing
		return &out, nil
	}
	t := &models.MessageThread{
		ID:           r.store.nextThreadID,
		User1ID:      user1,
		User2ID:      user2,
		EventScopeID: eventScopeID,
		CreatedAt:    time.Now(),
	}
	r.store.nextThreadID++
	r.store.threads[t.ID] = t
	out := *t
	return &out, nil
}

func (r *fakeThreadRepo) FindGlobalByPair(_ context.Context, userA, userB uint) (*models.MessageThread, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user1, user2 := models.NormalizePair(userA, userB)
	t := r.findLocked(user1, user2, nil)
	if t == nil {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (r *fakeThreadRepo) ListEventScopedByPair(_ context.Context, userA, userB uint) ([]models.MessageThread, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user1, user2 := models.NormalizePair(userA, userB)
	var out []models.MessageThread
	for _, t := range r.store.threads {
		if t.User1ID == user1 && t.User2ID == user2 && t.EventScopeID != nil {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeThreadRepo) ListCandidatesForUser(_ context.Context, userID uint) ([]models.MessageThread, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.MessageThread
	for _, t := range r.store.threads {
		if !t.HasParticipant(userID) {
			continue
		}
		cutoff := t.CutoffFor(userID)
		if cutoff == nil {
			out = append(out, *t)
			continue
		}
		for _, m := range r.store.threadMessagesLocked(t.ID) {
			if m.CreatedAt.After(*cutoff) {
				out = append(out, *t)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeThreadRepo) SetCutoff(_ context.Context, threadID, userID uint, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.threads[threadID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	switch userID {
	case t.User1ID:
		t.User1Cutoff = &at
	case t.User2ID:
		t.User2Cutoff = &at
	default:
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *fakeThreadRepo) TouchLastMessage(_ context.Context, threadID uint, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.threads[threadID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if t.LastMessageAt == nil || t.LastMessageAt.Before(at) {
		stamp := at
		t.LastMessageAt = &stamp
	}
	return nil
}

func (r *fakeThreadRepo) DeleteWithMessages(_ context.Context, threadID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, m := range r.store.messages {
		if m.ThreadID == threadID {
			delete(r.store.messages, id)
		}
	}
	delete(r.store.threads, threadID)
	return nil
}

// --- message repository ---

type fakeMessageRepo struct{ store *fakeStore }

func (r *fakeMessageRepo) Append(_ context.Context, msg *models.DirectMessage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	msg.ID = r.store.nextMessageID
	r.store.nextMessageID++
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	stored := *msg
	r.store.messages[msg.ID] = &stored
	return nil
}

func (r *fakeMessageRepo) CopyIfAbsent(_ context.Context, threadID uint, msg models.DirectMessage) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.messages {
		if existing.ThreadID == threadID &&
			existing.SenderID == msg.SenderID &&
			existing.Content == msg.Content &&
			existing.CreatedAt.Equal(msg.CreatedAt) {
			return false, nil
		}
	}
	copied := models.DirectMessage{
		ID:               r.store.nextMessageID,
		ThreadID:         threadID,
		SenderID:         msg.SenderID,
		Content:          msg.Content,
		EncryptedContent: msg.EncryptedContent,
		Status:           msg.Status,
		CreatedAt:        msg.CreatedAt,
	}
	r.store.nextMessageID++
	r.store.messages[copied.ID] = &copied
	return true, nil
}

func (r *fakeMessageRepo) ListByThreadAsc(_ context.Context, threadID uint) ([]models.DirectMessage, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.threadMessagesLocked(threadID), nil
}

func visibleAfter(msgs []models.DirectMessage, cutoff *time.Time) []models.DirectMessage {
	if cutoff == nil {
		return msgs
	}
	var out []models.DirectMessage
	for _, m := range msgs {
		if m.CreatedAt.After(*cutoff) {
			out = append(out, m)
		}
	}
	return out
}

func (r *fakeMessageRepo) ListPage(_ context.Context, threadID uint, cutoff *time.Time, page, limit int) ([]models.DirectMessage, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	msgs := visibleAfter(r.store.threadMessagesLocked(threadID), cutoff)
	total := int64(len(msgs))
	// Newest first.
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	offset := (page - 1) * limit
	if offset >= len(msgs) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(msgs) {
		end = len(msgs)
	}
	return msgs[offset:end], total, nil
}

func (r *fakeMessageRepo) LatestInThread(_ context.Context, threadID uint, cutoff *time.Time) (*models.DirectMessage, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	msgs := visibleAfter(r.store.threadMessagesLocked(threadID), cutoff)
	if len(msgs) == 0 {
		return nil, nil
	}
	out := msgs[len(msgs)-1]
	return &out, nil
}

func (r *fakeMessageRepo) UnreadCount(_ context.Context, threadID, readerID uint, cutoff *time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for _, m := range visibleAfter(r.store.threadMessagesLocked(threadID), cutoff) {
		if m.SenderID != readerID && m.Status != models.MessageRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, threadID, readerID uint, cutoff *time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var updated int64
	for _, m := range r.store.messages {
		if m.ThreadID != threadID || m.SenderID == readerID || m.Status == models.MessageRead {
			continue
		}
		if cutoff != nil && !m.CreatedAt.After(*cutoff) {
			continue
		}
		m.Status = models.MessageRead
		updated++
	}
	return updated, nil
}

// --- user / membership / notification repositories ---

type fakeUserRepo struct{ store *fakeStore }

func (r *fakeUserRepo) CreateUser(_ context.Context, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) UserExists(_ context.Context, id uint) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, ok := r.store.users[id]
	return ok, nil
}

func (r *fakeUserRepo) SearchUsers(_ context.Context, _ string) ([]models.User, error) {
	return nil, nil
}

type fakeMembershipRepo struct{ store *fakeStore }

func (r *fakeMembershipRepo) IsMember(_ context.Context, userID, eventID uint) (bool, error) {
	role, _ := r.RoleInEvent(context.Background(), userID, eventID)
	return role != "", nil
}

func (r *fakeMembershipRepo) RoleInEvent(_ context.Context, userID, eventID uint) (string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.memberships {
		if m.UserID == userID && m.EventID == eventID {
			return m.Role, nil
		}
	}
	return "", nil
}

func (r *fakeMembershipRepo) SharesEvent(_ context.Context, userA, userB, eventID uint) (bool, error) {
	a, _ := r.IsMember(context.Background(), userA, eventID)
	b, _ := r.IsMember(context.Background(), userB, eventID)
	return a && b, nil
}

type fakeNotificationRepo struct{ store *fakeStore }

func (r *fakeNotificationRepo) CreateNotification(_ context.Context, n *models.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n.ID = uint(len(r.store.notifications) + 1)
	r.store.notifications = append(r.store.notifications, *n)
	return nil
}

func (r *fakeNotificationRepo) GetByRecipientID(_ context.Context, recipientID uint, _, _ int) ([]models.Notification, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Notification
	for _, n := range r.store.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) GetUnreadCount(_ context.Context, recipientID uint) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for _, n := range r.store.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkAsRead(_ context.Context, notificationID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.store.notifications {
		if r.store.notifications[i].ID == notificationID {
			r.store.notifications[i].IsRead = true
		}
	}
	return nil
}

func (r *fakeNotificationRepo) MarkAllAsRead(_ context.Context, recipientID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.store.notifications {
		if r.store.notifications[i].RecipientID == recipientID {
			r.store.notifications[i].IsRead = true
		}
	}
	return nil
}

// --- unit of work ---

type fakeUnitOfWork struct{ store *fakeStore }

func (u *fakeUnitOfWork) Do(_ context.Context, fn func(repositories.RepositorySet) error) error {
	return fn(repositories.RepositorySet{
		Connections: &fakeConnectionRepo{store: u.store},
		Threads:     &fakeThreadRepo{store: u.store},
		Messages:    &fakeMessageRepo{store: u.store},
	})
}

// failingUnitOfWork rejects every transaction without touching the store,
// standing in for a rollback.
type failingUnitOfWork struct{ err error }

func (u *failingUnitOfWork) Do(_ context.Context, _ func(repositories.RepositorySet) error) error {
	return u.err
}

// --- test fixture ---

type fixture struct {
	store    *fakeStore
	recorder *notify.Recorder

	connections *ConnectionService
	threadsSvc  *ThreadService
	messagesSvc *MessageService

	conns    *fakeConnectionRepo
	threads  *fakeThreadRepo
	messages *fakeMessageRepo
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture() *fixture {
	store := newFakeStore()
	recorder := notify.NewRecorder()

	uow := &fakeUnitOfWork{store: store}
	connRepo := &fakeConnectionRepo{store: store}
	threadRepo := &fakeThreadRepo{store: store}
	messageRepo := &fakeMessageRepo{store: store}
	userRepo := &fakeUserRepo{store: store}
	memberRepo := &fakeMembershipRepo{store: store}
	notifRepo := &fakeNotificationRepo{store: store}

	logger := discardLogger()

	return &fixture{
		store:    store,
		recorder: recorder,
		connections: NewConnectionService(
			uow, connRepo, threadRepo, userRepo, memberRepo, notifRepo, recorder, logger),
		threadsSvc: NewThreadService(threadRepo, connRepo, messageRepo, userRepo, memberRepo),
		messagesSvc: NewMessageService(
			uow, threadRepo, messageRepo, connRepo, userRepo, memberRepo, notifRepo, recorder, logger),
		conns:    connRepo,
		threads:  threadRepo,
		messages: messageRepo,
	}
}
