package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"
	"github.com/google/uuid"
)

// Store реализует интерфейс Storage в памяти.
// Один RWMutex делает каждую операцию атомарной, включая переключатели.
type Store struct {
	mu sync.RWMutex

	users map[string]*domain.User
	posts map[string]*domain.Post

	threads      map[string]*domain.Thread
	threadByPair map[string]string                              // map[postID|pairKey]threadID
	participants map[string]map[string]*domain.ThreadParticipant // map[threadID]map[userID]
	userThreads  map[string][]string                            // map[userID][]threadID

	messages         []*domain.Message            // в порядке вставки
	messagesByThread map[string][]*domain.Message // в порядке вставки

	blocks map[string]*domain.BlockUser // map[blocker|blocked]

	notifications []*domain.Notification
	threadNotifs  map[string]*domain.Notification // map[user|kind|thread]

	reports     map[string]*domain.Report
	reportOrder []string

	favUsers map[string]*domain.FavoriteUser
	favPosts map[string]*domain.FavoritePost
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		users:            make(map[string]*domain.User),
		posts:            make(map[string]*domain.Post),
		threads:          make(map[string]*domain.Thread),
		threadByPair:     make(map[string]string),
		participants:     make(map[string]map[string]*domain.ThreadParticipant),
		userThreads:      make(map[string][]string),
		messagesByThread: make(map[string][]*domain.Message),
		blocks:           make(map[string]*domain.BlockUser),
		threadNotifs:     make(map[string]*domain.Notification),
		reports:          make(map[string]*domain.Report),
		favUsers:         make(map[string]*domain.FavoriteUser),
		favPosts:         make(map[string]*domain.FavoritePost),
	}
}

var _ storage.Storage = (*Store)(nil)

func key(parts ...string) string {
	k := ""
	for i, p := range parts {
		if i > 0 {
			k += "|"
		}
		k += p
	}
	return k
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, ok := s.users[user.ID]; ok {
		return nil, storage.ErrConflict
	}
	user.CreatedAt = nowIfZero(user.CreatedAt)
	cp := *user
	s.users[user.ID] = &cp
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) SetUserBannedAt(ctx context.Context, id string, bannedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	u.BannedAt = bannedAt
	return nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	post.CreatedAt = nowIfZero(post.CreatedAt)
	post.UpdatedAt = post.CreatedAt
	cp := *post
	s.posts[post.ID] = &cp
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	cp := *post
	return &cp, nil
}

func (s *Store) UpdatePostContent(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.posts[post.ID]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", post.ID, storage.ErrNotFound)
	}
	cur.Title = post.Title
	cur.Body = post.Body
	cur.ContactText = post.ContactText
	cur.UpdatedAt = nowIfZero(post.UpdatedAt)
	cp := *cur
	return &cp, nil
}

func (s *Store) TogglePostVisibility(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	post.IsPublic = !post.IsPublic
	cp := *post
	return &cp, nil
}

func (s *Store) CountPostsByAuthorSince(ctx context.Context, authorID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, p := range s.posts {
		if p.AuthorID == authorID && !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// === Block Methods ===

func (s *Store) CreateBlock(ctx context.Context, block *domain.BlockUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(block.BlockerID, block.BlockedID)
	if _, ok := s.blocks[k]; ok {
		return nil
	}
	cp := *block
	cp.CreatedAt = nowIfZero(cp.CreatedAt)
	s.blocks[k] = &cp
	return nil
}

func (s *Store) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blocks, key(blockerID, blockedID))
	return nil
}

func (s *Store) ToggleBlock(ctx context.Context, block *domain.BlockUser) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(block.BlockerID, block.BlockedID)
	if _, ok := s.blocks[k]; ok {
		delete(s.blocks, k)
		return false, nil
	}
	cp := *block
	cp.CreatedAt = nowIfZero(cp.CreatedAt)
	s.blocks[k] = &cp
	return true, nil
}

func (s *Store) IsBlockedEitherWay(ctx context.Context, a, b string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ab := s.blocks[key(a, b)]
	_, ba := s.blocks[key(b, a)]
	return ab || ba, nil
}

// === Thread Methods ===

func (s *Store) FindThreadForPair(ctx context.Context, postID, userA, userB string) (*domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.threadByPair[key(postID, domain.PairKey(userA, userB))]
	if !ok {
		return nil, fmt.Errorf("thread for post %s: %w", postID, storage.ErrNotFound)
	}
	return s.threadCopy(id), nil
}

func (s *Store) CreateThread(ctx context.Context, thread *domain.Thread, participants [2]string) (*domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread.PairKey = domain.PairKey(participants[0], participants[1])
	pk := key(thread.PostID, thread.PairKey)
	if _, ok := s.threadByPair[pk]; ok {
		return nil, storage.ErrConflict
	}

	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	thread.CreatedAt = nowIfZero(thread.CreatedAt)
	if thread.LastActivityAt.IsZero() {
		thread.LastActivityAt = thread.CreatedAt
	}
	cp := *thread
	cp.Participants = nil
	cp.Messages = nil
	s.threads[thread.ID] = &cp
	s.threadByPair[pk] = thread.ID

	members := make(map[string]*domain.ThreadParticipant, 2)
	for _, uid := range participants {
		members[uid] = &domain.ThreadParticipant{ThreadID: thread.ID, UserID: uid, LastReadAt: domain.NeverRead}
		s.userThreads[uid] = append(s.userThreads[uid], thread.ID)
	}
	s.participants[thread.ID] = members

	return s.threadCopy(thread.ID), nil
}

func (s *Store) GetThread(ctx context.Context, id string) (*domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.threads[id]; !ok {
		return nil, fmt.Errorf("thread %s: %w", id, storage.ErrNotFound)
	}
	return s.threadCopy(id), nil
}

// threadCopy - вызывается под блокировкой.
func (s *Store) threadCopy(id string) *domain.Thread {
	t := *s.threads[id]
	t.Participants = s.participantsCopy(id)
	return &t
}

func (s *Store) participantsCopy(threadID string) []*domain.ThreadParticipant {
	members := s.participants[threadID]
	out := make([]*domain.ThreadParticipant, 0, len(members))
	for _, p := range members {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *Store) GetParticipant(ctx context.Context, threadID, userID string) (*domain.ThreadParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[threadID][userID]
	if !ok {
		return nil, fmt.Errorf("participant %s in thread %s: %w", userID, threadID, storage.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListParticipants(ctx context.Context, threadID string) ([]*domain.ThreadParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.participantsCopy(threadID), nil
}

func (s *Store) ListThreadsForUser(ctx context.Context, userID string, limit int) ([]*domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userThreads[userID]
	out := make([]*domain.Thread, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.threadCopy(id))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkThreadRead(ctx context.Context, threadID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[threadID][userID]
	if !ok {
		return fmt.Errorf("participant %s in thread %s: %w", userID, threadID, storage.ErrNotFound)
	}
	p.LastReadAt = at
	if n, ok := s.threadNotifs[key(userID, string(domain.KindThreadMessage), threadID)]; ok && n.ReadAt == nil {
		readAt := at
		n.ReadAt = &readAt
	}
	return nil
}

func (s *Store) CountUnreadThreads(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, threadID := range s.userThreads[userID] {
		p := s.participants[threadID][userID]
		for _, m := range s.messagesByThread[threadID] {
			if m.SenderID != userID && m.CreatedAt.After(p.LastReadAt) {
				n++
				break
			}
		}
	}
	return n, nil
}

// === Message Methods ===

func (s *Store) CreateMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[msg.ThreadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", msg.ThreadID, storage.ErrNotFound)
	}
	if msg.ID == "" {
		msg.ID = domain.NewOrderedID()
	}
	msg.CreatedAt = nowIfZero(msg.CreatedAt)
	cp := *msg
	s.messages = append(s.messages, &cp)
	s.messagesByThread[msg.ThreadID] = append(s.messagesByThread[msg.ThreadID], &cp)
	if msg.CreatedAt.After(thread.LastActivityAt) {
		thread.LastActivityAt = msg.CreatedAt
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, threadID string, limit int) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messagesByThread[threadID]
	out := make([]*domain.Message, 0, len(all))
	for _, m := range all {
		cp := *m
		out = append(out, &cp)
	}
	// Стабильная сортировка сохраняет порядок вставки при равном времени.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) HasMessageFrom(ctx context.Context, threadID, senderID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messagesByThread[threadID] {
		if m.SenderID == senderID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountMessagesBySenderSince(ctx context.Context, senderID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, m := range s.messages {
		if m.SenderID == senderID && !m.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// === Dataloader Methods ===

func (s *Store) GetLastMessagesByThreadIDs(ctx context.Context, threadIDs []string) (map[string]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*domain.Message, len(threadIDs))
	for _, id := range threadIDs {
		var last *domain.Message
		for _, m := range s.messagesByThread[id] {
			if last == nil || !m.CreatedAt.Before(last.CreatedAt) {
				last = m
			}
		}
		if last != nil {
			cp := *last
			result[id] = &cp
		}
	}
	return result, nil
}

// === Notification Methods ===

func (s *Store) UpsertThreadNotification(ctx context.Context, n *domain.Notification) error {
	if n.ThreadID == nil {
		return errors.New("thread notification without thread id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowIfZero(n.UpdatedAt)
	k := key(n.UserID, string(n.Kind), *n.ThreadID)
	if cur, ok := s.threadNotifs[k]; ok {
		cur.ActorID = n.ActorID
		cur.Snippet = n.Snippet
		cur.UpdatedAt = now
		cur.ReadAt = nil
		return nil
	}

	cp := *n
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.CreatedAt = now
	cp.UpdatedAt = now
	cp.ReadAt = nil
	s.notifications = append(s.notifications, &cp)
	s.threadNotifs[k] = &cp
	return nil
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *n
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.CreatedAt = nowIfZero(cp.CreatedAt)
	cp.UpdatedAt = cp.CreatedAt
	s.notifications = append(s.notifications, &cp)
	n.ID = cp.ID
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, notif := range s.notifications {
		if notif.UserID == userID && notif.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			readAt := at
			n.ReadAt = &readAt
		}
	}
	return nil
}

// === Report Methods ===

func (s *Store) CreateReport(ctx context.Context, report *domain.Report) (*domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Status == "" {
		report.Status = domain.ReportOpen
	}
	report.CreatedAt = nowIfZero(report.CreatedAt)
	cp := *report
	s.reports[report.ID] = &cp
	s.reportOrder = append(s.reportOrder, report.ID)
	return report, nil
}

func (s *Store) GetReportByID(ctx context.Context, id string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, storage.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ResolveReport(ctx context.Context, id string, at time.Time) (*domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, storage.ErrNotFound)
	}
	if r.Status == domain.ReportOpen {
		resolvedAt := at
		r.Status = domain.ReportResolved
		r.ResolvedAt = &resolvedAt
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListReports(ctx context.Context, openOnly bool, limit int) ([]*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Report, 0, len(s.reportOrder))
	for i := len(s.reportOrder) - 1; i >= 0; i-- {
		r := s.reports[s.reportOrder[i]]
		if openOnly && r.Status != domain.ReportOpen {
			continue
		}
		cp := *r
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.reports {
		if r.ReporterID == reporterID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// === Favorite Methods ===

func (s *Store) ToggleFavoriteUser(ctx context.Context, fav *domain.FavoriteUser) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(fav.UserID, fav.TargetUserID)
	if _, ok := s.favUsers[k]; ok {
		delete(s.favUsers, k)
		return false, nil
	}
	cp := *fav
	cp.CreatedAt = nowIfZero(cp.CreatedAt)
	s.favUsers[k] = &cp
	return true, nil
}

func (s *Store) ToggleFavoritePost(ctx context.Context, fav *domain.FavoritePost) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(fav.UserID, fav.PostID)
	if _, ok := s.favPosts[k]; ok {
		delete(s.favPosts, k)
		return false, nil
	}
	cp := *fav
	cp.CreatedAt = nowIfZero(cp.CreatedAt)
	s.favPosts[k] = &cp
	return true, nil
}
