package storage

import (
	"context"
	"errors"
	"time"

	"github.com/UkralStul/matchboard/internal/domain"
)

var (
	// ErrNotFound - запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrConflict - нарушено ограничение уникальности (проигравшая сторона гонки).
	ErrConflict = errors.New("unique constraint conflict")
)

// Storage определяет контракт для хранилищ.
// Все операции атомарны по отдельности; составные записи выполняются в одной транзакции.
type Storage interface {
	UserStore
	PostStore
	BlockStore
	ThreadStore
	MessageStore
	NotificationStore
	ReportStore
	FavoriteStore
}

type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	SetUserBannedAt(ctx context.Context, id string, bannedAt *time.Time) error
}

type PostStore interface {
	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	UpdatePostContent(ctx context.Context, post *domain.Post) (*domain.Post, error)
	// TogglePostVisibility переключает IsPublic атомарно и возвращает пост.
	TogglePostVisibility(ctx context.Context, id string) (*domain.Post, error)
	CountPostsByAuthorSince(ctx context.Context, authorID string, since time.Time) (int64, error)
}

type BlockStore interface {
	// CreateBlock идемпотентен.
	CreateBlock(ctx context.Context, block *domain.BlockUser) error
	// DeleteBlock идемпотентен.
	DeleteBlock(ctx context.Context, blockerID, blockedID string) error
	// ToggleBlock - одна условная запись: удалить, если есть, иначе создать.
	ToggleBlock(ctx context.Context, block *domain.BlockUser) (blocked bool, err error)
	IsBlockedEitherWay(ctx context.Context, a, b string) (bool, error)
}

type ThreadStore interface {
	// FindThreadForPair ищет тред по объявлению с обоими участниками.
	FindThreadForPair(ctx context.Context, postID, userA, userB string) (*domain.Thread, error)
	// CreateThread создаёт тред и обоих участников; ErrConflict, если пара уже есть.
	CreateThread(ctx context.Context, thread *domain.Thread, participants [2]string) (*domain.Thread, error)
	// GetThread возвращает тред с участниками (без сообщений).
	GetThread(ctx context.Context, id string) (*domain.Thread, error)
	GetParticipant(ctx context.Context, threadID, userID string) (*domain.ThreadParticipant, error)
	ListParticipants(ctx context.Context, threadID string) ([]*domain.ThreadParticipant, error)
	// ListThreadsForUser - треды пользователя, последние активные первыми.
	ListThreadsForUser(ctx context.Context, userID string, limit int) ([]*domain.Thread, error)
	// MarkThreadRead сдвигает LastReadAt участника и гасит уведомление треда в одной транзакции.
	MarkThreadRead(ctx context.Context, threadID, userID string, at time.Time) error
	CountUnreadThreads(ctx context.Context, userID string) (int64, error)
}

type MessageStore interface {
	// CreateMessage сохраняет сообщение и обновляет LastActivityAt треда.
	CreateMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]*domain.Message, error)
	HasMessageFrom(ctx context.Context, threadID, senderID string) (bool, error)
	CountMessagesBySenderSince(ctx context.Context, senderID string, since time.Time) (int64, error)

	// Метод для Dataloader'ов
	GetLastMessagesByThreadIDs(ctx context.Context, threadIDs []string) (map[string]*domain.Message, error)
}

type NotificationStore interface {
	// UpsertThreadNotification - атомарный insert-or-update по (UserID, Kind, ThreadID).
	UpsertThreadNotification(ctx context.Context, n *domain.Notification) error
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)
	MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) error
}

type ReportStore interface {
	CreateReport(ctx context.Context, report *domain.Report) (*domain.Report, error)
	GetReportByID(ctx context.Context, id string) (*domain.Report, error)
	// ResolveReport переводит OPEN -> RESOLVED; повторный вызов ничего не меняет.
	ResolveReport(ctx context.Context, id string, at time.Time) (*domain.Report, error)
	ListReports(ctx context.Context, openOnly bool, limit int) ([]*domain.Report, error)
	CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int64, error)
}

type FavoriteStore interface {
	ToggleFavoriteUser(ctx context.Context, fav *domain.FavoriteUser) (favorited bool, err error)
	ToggleFavoritePost(ctx context.Context, fav *domain.FavoritePost) (favorited bool, err error)
}
