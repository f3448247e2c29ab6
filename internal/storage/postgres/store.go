package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"

	"github.com/google/uuid"
	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store реализует интерфейс Storage через gorm (PostgreSQL или SQLite).
type Store struct {
	db *gorm.DB
}

var _ storage.Storage = (*Store)(nil)

// Dialector выбирает драйвер по префиксу DSN:
//   - "postgres://..." или "postgresql://..."
//   - "postgres=host=localhost user=... dbname=..."
//   - "sqlite://data/board.db" или "sqlite=:memory:"
func Dialector(dsn string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(dsn, "postgresql://"), strings.HasPrefix(dsn, "postgres://"):
		return postgres.Open(dsn), false, nil
	case strings.HasPrefix(dsn, "postgres="):
		return postgres.Open(strings.TrimPrefix(dsn, "postgres=")), false, nil
	case strings.HasPrefix(dsn, "sqlite://"), strings.HasPrefix(dsn, "sqlite="):
		path := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite=")
		if !strings.Contains(path, ":memory:") {
			if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
				return nil, true, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		return sqlite.Open(path), true, nil
	default:
		return nil, false, fmt.Errorf("unsupported or unrecognized DATABASE_URL value")
	}
}

// New создает новый экземпляр хранилища по DSN.
func New(dsn string, maxConnections int) (*Store, error) {
	dial, isSqlite, err := Dialector(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dial, &gorm.Config{
		TranslateError: true,
		Logger:         slogGorm.New(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isSqlite {
		// SQLite держит один писатель; WAL разрешает параллельное чтение.
		sqldb.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
	} else if maxConnections > 0 {
		sqldb.SetMaxOpenConns(maxConnections)
	}
	sqldb.SetConnMaxIdleTime(time.Hour)

	return NewWithDB(db)
}

// NewWithDB оборачивает уже открытое соединение и выполняет миграцию схемы.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(domain.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// translate приводит ошибки gorm к ошибкам storage.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, storage.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// validIDs: все id-колонки имеют тип uuid. Строка не в каноничном виде
// не совпадёт ни с одной записью, а postgres ответил бы на неё 22P02.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if len(id) != 36 {
			return false
		}
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

func notFound(what string, ids ...string) error {
	return fmt.Errorf("%s %v: %w", what, ids, storage.ErrNotFound)
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	user.CreatedAt = nowIfZero(user.CreatedAt)
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, translate(err, "create user")
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if !validIDs(id) {
		return nil, notFound("user", id)
	}
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get user")
	}
	return &user, nil
}

func (s *Store) SetUserBannedAt(ctx context.Context, id string, bannedAt *time.Time) error {
	if !validIDs(id) {
		return notFound("user", id)
	}
	res := s.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("banned_at", bannedAt)
	if res.Error != nil {
		return translate(res.Error, "set banned_at")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	post.CreatedAt = nowIfZero(post.CreatedAt)
	post.UpdatedAt = post.CreatedAt
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, translate(err, "create post")
	}
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	if !validIDs(id) {
		return nil, notFound("post", id)
	}
	var post domain.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get post")
	}
	return &post, nil
}

func (s *Store) UpdatePostContent(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	if !validIDs(post.ID) {
		return nil, notFound("post", post.ID)
	}
	var out domain.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Post{}).Where("id = ?", post.ID).Updates(map[string]any{
			"title":        post.Title,
			"body":         post.Body,
			"contact_text": post.ContactText,
			"updated_at":   nowIfZero(post.UpdatedAt),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&out, "id = ?", post.ID).Error
	})
	if err != nil {
		return nil, translate(err, "update post")
	}
	return &out, nil
}

func (s *Store) TogglePostVisibility(ctx context.Context, id string) (*domain.Post, error) {
	if !validIDs(id) {
		return nil, notFound("post", id)
	}
	var post domain.Post
	// Одно условное обновление, без чтения перед записью
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Post{}).Where("id = ?", id).Update("is_public", gorm.Expr("NOT is_public"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&post, "id = ?", id).Error
	})
	if err != nil {
		return nil, translate(err, "toggle post visibility")
	}
	return &post, nil
}

func (s *Store) CountPostsByAuthorSince(ctx context.Context, authorID string, since time.Time) (int64, error) {
	if !validIDs(authorID) {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Post{}).
		Where("author_id = ? AND created_at >= ?", authorID, since).
		Count(&n).Error
	return n, translate(err, "count posts")
}

// === Block Methods ===

func (s *Store) CreateBlock(ctx context.Context, block *domain.BlockUser) error {
	if !validIDs(block.BlockerID, block.BlockedID) {
		return notFound("user", block.BlockerID, block.BlockedID)
	}
	block.CreatedAt = nowIfZero(block.CreatedAt)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(block).Error
	return translate(err, "create block")
}

func (s *Store) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	if !validIDs(blockerID, blockedID) {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&domain.BlockUser{}).Error
	return translate(err, "delete block")
}

// ToggleBlock: DELETE по ключу; если ничего не удалено - INSERT ... ON CONFLICT DO NOTHING.
// Два одновременных клика сходятся к одному состоянию, ошибки нет.
func (s *Store) ToggleBlock(ctx context.Context, block *domain.BlockUser) (bool, error) {
	if !validIDs(block.BlockerID, block.BlockedID) {
		return false, notFound("user", block.BlockerID, block.BlockedID)
	}
	block.CreatedAt = nowIfZero(block.CreatedAt)
	var blocked bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("blocker_id = ? AND blocked_id = ?", block.BlockerID, block.BlockedID).
			Delete(&domain.BlockUser{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			blocked = false
			return nil
		}
		blocked = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(block).Error
	})
	if err != nil {
		return false, translate(err, "toggle block")
	}
	return blocked, nil
}

func (s *Store) IsBlockedEitherWay(ctx context.Context, a, b string) (bool, error) {
	if !validIDs(a, b) {
		return false, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.BlockUser{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&n).Error
	if err != nil {
		return false, translate(err, "check block")
	}
	return n > 0, nil
}

// === Thread Methods ===

func (s *Store) FindThreadForPair(ctx context.Context, postID, userA, userB string) (*domain.Thread, error) {
	if !validIDs(postID, userA, userB) {
		return nil, notFound("thread", postID, userA, userB)
	}
	var thread domain.Thread
	err := s.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("user_id ASC") }).
		First(&thread, "post_id = ? AND pair_key = ?", postID, domain.PairKey(userA, userB)).Error
	if err != nil {
		return nil, translate(err, "find thread")
	}
	return &thread, nil
}

func (s *Store) CreateThread(ctx context.Context, thread *domain.Thread, participants [2]string) (*domain.Thread, error) {
	thread.PairKey = domain.PairKey(participants[0], participants[1])
	thread.CreatedAt = nowIfZero(thread.CreatedAt)
	if thread.LastActivityAt.IsZero() {
		thread.LastActivityAt = thread.CreatedAt
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(thread).Error; err != nil {
			return err
		}
		rows := make([]*domain.ThreadParticipant, 0, 2)
		for _, uid := range participants {
			rows = append(rows, &domain.ThreadParticipant{ThreadID: thread.ID, UserID: uid, LastReadAt: domain.NeverRead})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		thread.Participants = rows
		return nil
	})
	if err != nil {
		return nil, translate(err, "create thread")
	}
	return thread, nil
}

func (s *Store) GetThread(ctx context.Context, id string) (*domain.Thread, error) {
	if !validIDs(id) {
		return nil, notFound("thread", id)
	}
	var thread domain.Thread
	err := s.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("user_id ASC") }).
		First(&thread, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "get thread")
	}
	return &thread, nil
}

func (s *Store) GetParticipant(ctx context.Context, threadID, userID string) (*domain.ThreadParticipant, error) {
	if !validIDs(threadID, userID) {
		return nil, notFound("participant", threadID, userID)
	}
	var p domain.ThreadParticipant
	err := s.db.WithContext(ctx).First(&p, "thread_id = ? AND user_id = ?", threadID, userID).Error
	if err != nil {
		return nil, translate(err, "get participant")
	}
	return &p, nil
}

func (s *Store) ListParticipants(ctx context.Context, threadID string) ([]*domain.ThreadParticipant, error) {
	if !validIDs(threadID) {
		return nil, nil
	}
	var out []*domain.ThreadParticipant
	err := s.db.WithContext(ctx).Where("thread_id = ?", threadID).Order("user_id ASC").Find(&out).Error
	return out, translate(err, "list participants")
}

func (s *Store) ListThreadsForUser(ctx context.Context, userID string, limit int) ([]*domain.Thread, error) {
	if !validIDs(userID) {
		return nil, nil
	}
	var threads []*domain.Thread
	q := s.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("user_id ASC") }).
		Where("id IN (?)", s.db.Model(&domain.ThreadParticipant{}).Select("thread_id").Where("user_id = ?", userID)).
		Order("last_activity_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&threads).Error; err != nil {
		return nil, translate(err, "list threads")
	}
	return threads, nil
}

// MarkThreadRead: водяной знак участника и уведомление обновляются вместе.
func (s *Store) MarkThreadRead(ctx context.Context, threadID, userID string, at time.Time) error {
	if !validIDs(threadID, userID) {
		return notFound("participant", threadID, userID)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.ThreadParticipant{}).
			Where("thread_id = ? AND user_id = ?", threadID, userID).
			Update("last_read_at", at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&domain.Notification{}).
			Where("user_id = ? AND kind = ? AND thread_id = ? AND read_at IS NULL", userID, domain.KindThreadMessage, threadID).
			UpdateColumn("read_at", at).Error
	})
	return translate(err, "mark thread read")
}

func (s *Store) CountUnreadThreads(ctx context.Context, userID string) (int64, error) {
	if !validIDs(userID) {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Table("thread_participants AS p").
		Where("p.user_id = ?", userID).
		Where("EXISTS (?)", s.db.Table("messages AS m").Select("1").
			Where("m.thread_id = p.thread_id AND m.sender_id <> ? AND m.created_at > p.last_read_at", userID)).
		Count(&n).Error
	return n, translate(err, "count unread threads")
}

// === Message Methods ===

func (s *Store) CreateMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	msg.CreatedAt = nowIfZero(msg.CreatedAt)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Thread{}).
			Where("id = ? AND last_activity_at < ?", msg.ThreadID, msg.CreatedAt).
			Update("last_activity_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, translate(err, "create message")
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, threadID string, limit int) ([]*domain.Message, error) {
	if !validIDs(threadID) {
		return nil, nil
	}
	var out []*domain.Message
	q := s.db.WithContext(ctx).Where("thread_id = ?", threadID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, translate(err, "list messages")
}

func (s *Store) HasMessageFrom(ctx context.Context, threadID, senderID string) (bool, error) {
	if !validIDs(threadID, senderID) {
		return false, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Message{}).
		Where("thread_id = ? AND sender_id = ?", threadID, senderID).
		Count(&n).Error
	if err != nil {
		return false, translate(err, "check message")
	}
	return n > 0, nil
}

func (s *Store) CountMessagesBySenderSince(ctx context.Context, senderID string, since time.Time) (int64, error) {
	if !validIDs(senderID) {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Message{}).
		Where("sender_id = ? AND created_at >= ?", senderID, since).
		Count(&n).Error
	return n, translate(err, "count messages")
}

// === Dataloader Method ===

func (s *Store) GetLastMessagesByThreadIDs(ctx context.Context, threadIDs []string) (map[string]*domain.Message, error) {
	ids := make([]string, 0, len(threadIDs))
	for _, id := range threadIDs {
		if validIDs(id) {
			ids = append(ids, id)
		}
	}
	result := make(map[string]*domain.Message, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var messages []*domain.Message
	// Один запрос на все треды: берём строки с максимальным created_at в своём треде
	err := s.db.WithContext(ctx).Table("messages AS m").
		Where("m.thread_id IN ?", ids).
		Where("m.created_at = (SELECT MAX(m2.created_at) FROM messages AS m2 WHERE m2.thread_id = m.thread_id)").
		Order("m.thread_id, m.id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, translate(err, "last messages")
	}

	for _, m := range messages {
		result[m.ThreadID] = m
	}
	return result, nil
}

// === Notification Methods ===

func (s *Store) UpsertThreadNotification(ctx context.Context, n *domain.Notification) error {
	if n.ThreadID == nil {
		return errors.New("thread notification without thread id")
	}
	now := nowIfZero(n.UpdatedAt)
	n.CreatedAt = now
	n.UpdatedAt = now
	n.ReadAt = nil
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "kind"}, {Name: "thread_id"}},
		// read_at из EXCLUDED всегда NULL - уведомление снова непрочитано
		DoUpdates: clause.AssignmentColumns([]string{"actor_id", "snippet", "updated_at", "read_at"}),
	}).Create(n).Error
	return translate(err, "upsert notification")
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	n.CreatedAt = nowIfZero(n.CreatedAt)
	n.UpdatedAt = n.CreatedAt
	return translate(s.db.WithContext(ctx).Create(n).Error, "create notification")
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if !validIDs(userID) {
		return nil, nil
	}
	var out []*domain.Notification
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, translate(err, "list notifications")
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	if !validIDs(userID) {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&n).Error
	return n, translate(err, "count notifications")
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) error {
	if !validIDs(userID) {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		UpdateColumn("read_at", at).Error
	return translate(err, "mark notifications read")
}

// === Report Methods ===

func (s *Store) CreateReport(ctx context.Context, report *domain.Report) (*domain.Report, error) {
	report.CreatedAt = nowIfZero(report.CreatedAt)
	if report.Status == "" {
		report.Status = domain.ReportOpen
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, translate(err, "create report")
	}
	return report, nil
}

func (s *Store) GetReportByID(ctx context.Context, id string) (*domain.Report, error) {
	if !validIDs(id) {
		return nil, notFound("report", id)
	}
	var r domain.Report
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get report")
	}
	return &r, nil
}

func (s *Store) ResolveReport(ctx context.Context, id string, at time.Time) (*domain.Report, error) {
	if !validIDs(id) {
		return nil, notFound("report", id)
	}
	var r domain.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Переход только из OPEN; повторное решение ничего не трогает
		if err := tx.Model(&domain.Report{}).
			Where("id = ? AND status = ?", id, domain.ReportOpen).
			Updates(map[string]any{"status": domain.ReportResolved, "resolved_at": at}).Error; err != nil {
			return err
		}
		return tx.First(&r, "id = ?", id).Error
	})
	if err != nil {
		return nil, translate(err, "resolve report")
	}
	return &r, nil
}

func (s *Store) ListReports(ctx context.Context, openOnly bool, limit int) ([]*domain.Report, error) {
	var out []*domain.Report
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if openOnly {
		q = q.Where("status = ?", domain.ReportOpen)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, translate(err, "list reports")
}

func (s *Store) CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int64, error) {
	if !validIDs(reporterID) {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Report{}).
		Where("reporter_id = ? AND created_at >= ?", reporterID, since).
		Count(&n).Error
	return n, translate(err, "count reports")
}

// === Favorite Methods ===

func (s *Store) ToggleFavoriteUser(ctx context.Context, fav *domain.FavoriteUser) (bool, error) {
	fav.CreatedAt = nowIfZero(fav.CreatedAt)
	return s.toggle(ctx, &domain.FavoriteUser{}, fav,
		"user_id = ? AND target_user_id = ?", fav.UserID, fav.TargetUserID)
}

func (s *Store) ToggleFavoritePost(ctx context.Context, fav *domain.FavoritePost) (bool, error) {
	fav.CreatedAt = nowIfZero(fav.CreatedAt)
	return s.toggle(ctx, &domain.FavoritePost{}, fav,
		"user_id = ? AND post_id = ?", fav.UserID, fav.PostID)
}

// toggle - общий шаблон "удалить, иначе вставить" в одной транзакции.
func (s *Store) toggle(ctx context.Context, model, row any, where string, args ...any) (bool, error) {
	var on bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where(where, args...).Delete(model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			on = false
			return nil
		}
		on = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	})
	if err != nil {
		return false, translate(err, "toggle")
	}
	return on, nil
}
