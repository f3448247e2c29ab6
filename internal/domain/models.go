package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role - роль пользователя на доске.
type Role string

const (
	RolePhotographer Role = "photographer"
	RoleModel        Role = "model"
)

// User представляет аккаунт. Бан выставляет только администратор.
type User struct {
	ID          string     `json:"id" gorm:"type:uuid;primaryKey"`
	DisplayName string     `json:"displayName" gorm:"type:varchar(64);not null"`
	Role        Role       `json:"role" gorm:"type:varchar(16);not null"`
	IsAdmin     bool       `json:"isAdmin" gorm:"not null"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"not null"`
	BannedAt    *time.Time `json:"bannedAt,omitempty"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsBanned сообщает, заблокирован ли аккаунт модератором.
func (u *User) IsBanned() bool { return u.BannedAt != nil }

// Post - объявление. ContactText показывается только после взаимной переписки.
type Post struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	AuthorID    string    `json:"authorId" gorm:"type:uuid;not null;index"`
	Title       string    `json:"title" gorm:"type:varchar(120);not null"`
	Body        string    `json:"body" gorm:"type:text;not null"`
	ContactText string    `json:"-" gorm:"type:varchar(500);not null"`
	IsPublic    bool      `json:"isPublic" gorm:"not null"`
	CreatedAt   time.Time `json:"createdAt" gorm:"not null;index"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Thread - переписка по одному объявлению ровно между двумя пользователями.
// PairKey вместе с PostID уникален, это и защищает от дублей при гонке.
type Thread struct {
	ID             string               `json:"id" gorm:"type:uuid;primaryKey"`
	PostID         string               `json:"postId" gorm:"type:uuid;not null;uniqueIndex:idx_thread_post_pair"`
	PairKey        string               `json:"-" gorm:"type:varchar(80);not null;uniqueIndex:idx_thread_post_pair"`
	CreatedAt      time.Time            `json:"createdAt" gorm:"not null"`
	LastActivityAt time.Time            `json:"lastActivityAt" gorm:"not null;index"`
	Participants   []*ThreadParticipant `json:"participants,omitempty" gorm:"foreignKey:ThreadID"`
	Messages       []*Message           `json:"messages,omitempty" gorm:"foreignKey:ThreadID"`
}

func (t *Thread) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Other возвращает второго участника треда.
func (t *Thread) Other(userID string) (string, bool) {
	for _, p := range t.Participants {
		if p.UserID != userID {
			return p.UserID, true
		}
	}
	return "", false
}

// PairKey строит ключ пары, не зависящий от порядка участников.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// ThreadParticipant хранит водяной знак прочтения для одной стороны треда.
type ThreadParticipant struct {
	ThreadID   string    `json:"threadId" gorm:"type:uuid;primaryKey"`
	UserID     string    `json:"userId" gorm:"type:uuid;primaryKey;index"`
	LastReadAt time.Time `json:"lastReadAt" gorm:"not null"`
}

// NeverRead - начальное значение LastReadAt.
var NeverRead = time.Unix(0, 0).UTC()

// Message неизменяемо после создания. ID - UUIDv7, поэтому порядок ID
// совпадает с порядком вставки и разрешает равные CreatedAt.
type Message struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	ThreadID  string    `json:"threadId" gorm:"type:uuid;not null;index:idx_message_thread_created"`
	SenderID  string    `json:"senderId" gorm:"type:uuid;not null;index:idx_message_sender_created"`
	Body      string    `json:"body" gorm:"type:varchar(2000);not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index:idx_message_thread_created;index:idx_message_sender_created"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = NewOrderedID()
	}
	return nil
}

// NewOrderedID возвращает UUIDv7, монотонный в пределах процесса.
func NewOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// BlockUser - направленное ребро "не связываться". Проверяется в обе стороны.
type BlockUser struct {
	BlockerID string    `json:"blockerId" gorm:"type:uuid;primaryKey"`
	BlockedID string    `json:"blockedId" gorm:"type:uuid;primaryKey;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

// NotificationKind - вид уведомления.
type NotificationKind string

const (
	KindThreadMessage NotificationKind = "THREAD_MESSAGE"
	KindFavoriteUser  NotificationKind = "FAVORITE_USER"
	KindFavoritePost  NotificationKind = "FAVORITE_POST"
)

// Notification принадлежит получателю. Для THREAD_MESSAGE тройка
// (UserID, Kind, ThreadID) уникальна, повторные сообщения схлопываются.
type Notification struct {
	ID        string           `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string           `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_notification_thread"`
	Kind      NotificationKind `json:"kind" gorm:"type:varchar(32);not null;uniqueIndex:idx_notification_thread"`
	ThreadID  *string          `json:"threadId,omitempty" gorm:"type:uuid;uniqueIndex:idx_notification_thread"`
	PostID    *string          `json:"postId,omitempty" gorm:"type:uuid"`
	ActorID   string           `json:"actorId" gorm:"type:uuid;not null"`
	Snippet   string           `json:"snippet" gorm:"type:varchar(120)"`
	ReadAt    *time.Time       `json:"readAt,omitempty"`
	CreatedAt time.Time        `json:"createdAt" gorm:"not null"`
	UpdatedAt time.Time        `json:"updatedAt" gorm:"not null;index"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// ReportReason - закрытый список причин жалобы.
type ReportReason string

const (
	ReasonSpam          ReportReason = "SPAM"
	ReasonScam          ReportReason = "SCAM"
	ReasonHarassment    ReportReason = "HARASSMENT"
	ReasonImpersonation ReportReason = "IMPERSONATION"
	ReasonIllegal       ReportReason = "ILLEGAL"
	ReasonUnderage      ReportReason = "UNDERAGE"
	ReasonOther         ReportReason = "OTHER"
)

// Valid проверяет, что причина входит в закрытый список.
func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonScam, ReasonHarassment, ReasonImpersonation,
		ReasonIllegal, ReasonUnderage, ReasonOther:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportOpen     ReportStatus = "OPEN"
	ReportResolved ReportStatus = "RESOLVED"
)

// Report - жалоба на пользователя (и, возможно, на его объявление).
type Report struct {
	ID           string       `json:"id" gorm:"type:uuid;primaryKey"`
	ReporterID   string       `json:"reporterId" gorm:"type:uuid;not null;index:idx_report_reporter_created"`
	TargetUserID string       `json:"targetUserId" gorm:"type:uuid;not null;index"`
	PostID       *string      `json:"postId,omitempty" gorm:"type:uuid"`
	Reason       ReportReason `json:"reason" gorm:"type:varchar(16);not null"`
	Detail       string       `json:"detail" gorm:"type:varchar(2000)"`
	Status       ReportStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	CreatedAt    time.Time    `json:"createdAt" gorm:"not null;index:idx_report_reporter_created"`
	ResolvedAt   *time.Time   `json:"resolvedAt,omitempty"`
}

func (r *Report) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// FavoriteUser - пользователь добавил другого в избранное.
type FavoriteUser struct {
	UserID       string    `json:"userId" gorm:"type:uuid;primaryKey"`
	TargetUserID string    `json:"targetUserId" gorm:"type:uuid;primaryKey"`
	CreatedAt    time.Time `json:"createdAt" gorm:"not null"`
}

// FavoritePost - пользователь добавил объявление в избранное.
type FavoritePost struct {
	UserID    string    `json:"userId" gorm:"type:uuid;primaryKey"`
	PostID    string    `json:"postId" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

// AllModels перечисляет таблицы для миграции.
func AllModels() []any {
	return []any{
		&User{}, &Post{}, &Thread{}, &ThreadParticipant{}, &Message{},
		&BlockUser{}, &Notification{}, &Report{}, &FavoriteUser{}, &FavoritePost{},
	}
}
