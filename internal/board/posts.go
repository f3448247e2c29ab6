package board

import (
	"context"
	"log/slog"

	"github.com/UkralStul/matchboard/internal/config"
	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/spamguard"
	"github.com/UkralStul/matchboard/internal/trust"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var postsQuarantinedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "matchboard_posts_quarantined_total",
	Help: "Number of posts stored hidden by the link heuristic",
})

var postsSanitizedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "matchboard_posts_sanitized_total",
	Help: "Number of post writes with external links removed",
})

// PostInput - редактируемые поля объявления.
type PostInput struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	ContactText string `json:"contactText"`
}

// PostResult сообщает автору, были ли вырезаны ссылки.
type PostResult struct {
	Post      *domain.Post `json:"post"`
	Sanitized bool         `json:"sanitized"`
}

type Posts struct {
	base
	limiter *trust.RateLimiter
	cfg     config.Config
	log     *slog.Logger
}

// validate обрезает поля, проверяет длины и вырезает ссылки из текста и контакта.
func (p *Posts) validate(in PostInput) (PostInput, bool, error) {
	var err error
	if in.Title, err = checkLen("title", in.Title, 1, 120); err != nil {
		return in, false, err
	}
	if in.Body, err = checkLen("body", in.Body, 1, 8000); err != nil {
		return in, false, err
	}
	if in.ContactText, err = checkLen("contactText", in.ContactText, 1, 500); err != nil {
		return in, false, err
	}
	var bodyChanged, contactChanged bool
	in.Body, bodyChanged = spamguard.StripExternalLinks(in.Body)
	in.ContactText, contactChanged = spamguard.StripExternalLinks(in.ContactText)
	return in, bodyChanged || contactChanged, nil
}

// Create: бан, валидация, лимит, зачистка ссылок, решение о карантине.
// Карантин не отказ: объявление сохраняется скрытым.
func (p *Posts) Create(ctx context.Context, authorID string, in PostInput) (*PostResult, error) {
	author, err := p.activeUser(ctx, authorID)
	if err != nil {
		return nil, err
	}
	in, sanitized, err := p.validate(in)
	if err != nil {
		return nil, err
	}
	if err := p.limiter.CheckPost(ctx, author.ID); err != nil {
		return nil, err
	}

	now := p.now()
	quarantine := spamguard.ShouldQuarantine(p.cfg, author, spamguard.Content{
		Title: in.Title, Body: in.Body, ContactText: in.ContactText,
	}, now)

	post, err := p.store.CreatePost(ctx, &domain.Post{
		AuthorID:    author.ID,
		Title:       in.Title,
		Body:        in.Body,
		ContactText: in.ContactText,
		IsPublic:    !quarantine,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	if sanitized {
		postsSanitizedCount.Inc()
	}
	if quarantine {
		postsQuarantinedCount.Inc()
		p.log.Info("post quarantined", "post", post.ID, "author", author.ID)
	}
	return &PostResult{Post: post, Sanitized: sanitized}, nil
}

// Update доступен только автору. Видимость не меняется: скрытое объявление
// остаётся скрытым до решения администратора.
func (p *Posts) Update(ctx context.Context, authorID, postID string, in PostInput) (*PostResult, error) {
	author, err := p.activeUser(ctx, authorID)
	if err != nil {
		return nil, err
	}
	cur, err := p.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFoundAs(err, "post not found")
	}
	if cur.AuthorID != author.ID {
		return nil, domain.Forbidden("not the author")
	}
	in, sanitized, err := p.validate(in)
	if err != nil {
		return nil, err
	}

	post, err := p.store.UpdatePostContent(ctx, &domain.Post{
		ID:          cur.ID,
		Title:       in.Title,
		Body:        in.Body,
		ContactText: in.ContactText,
		UpdatedAt:   p.now(),
	})
	if err != nil {
		return nil, notFoundAs(err, "post not found")
	}
	if sanitized {
		postsSanitizedCount.Inc()
	}
	return &PostResult{Post: post, Sanitized: sanitized}, nil
}

// Get отдаёт публичное объявление; скрытое видят только автор и администратор.
func (p *Posts) Get(ctx context.Context, viewerID, postID string) (*domain.Post, error) {
	post, err := p.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFoundAs(err, "post not found")
	}
	if post.IsPublic || post.AuthorID == viewerID {
		return post, nil
	}
	if viewerID != "" {
		if _, err := p.admin(ctx, viewerID); err == nil {
			return post, nil
		}
	}
	return nil, domain.NotFound("post not found")
}
