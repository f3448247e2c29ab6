package board

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/trust"
)

const (
	MaxReportDetail = 2000
	MaxReportList   = 100
)

type Reports struct {
	base
	limiter *trust.RateLimiter
	log     *slog.Logger
}

// Create - жалоба на объявление; цель - его автор.
func (r *Reports) Create(ctx context.Context, reporterID, postID string, reason domain.ReportReason, detail string) (*domain.Report, error) {
	reporter, err := r.activeUser(ctx, reporterID)
	if err != nil {
		return nil, err
	}
	if !reason.Valid() {
		return nil, domain.InvalidInput("unknown report reason")
	}
	if utf8.RuneCountInString(detail) > MaxReportDetail {
		return nil, domain.InvalidInput("report detail is too long")
	}
	if err := r.limiter.CheckReport(ctx, reporter.ID); err != nil {
		return nil, err
	}

	post, err := r.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFoundAs(err, "post not found")
	}
	if !post.IsPublic {
		return nil, domain.NotFound("post not found")
	}
	if post.AuthorID == reporter.ID {
		return nil, domain.InvalidInput("cannot report your own post")
	}

	pid := post.ID
	report, err := r.store.CreateReport(ctx, &domain.Report{
		ReporterID:   reporter.ID,
		TargetUserID: post.AuthorID,
		PostID:       &pid,
		Reason:       reason,
		Detail:       detail,
		Status:       domain.ReportOpen,
		CreatedAt:    r.now(),
	})
	if err != nil {
		return nil, err
	}
	r.log.Info("report created", "report", report.ID, "reason", reason, "target", post.AuthorID)
	return report, nil
}

// Resolve: OPEN -> RESOLVED, повторный вызов - успех без изменений.
func (r *Reports) Resolve(ctx context.Context, adminID, reportID string) (*domain.Report, error) {
	admin, err := r.admin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	report, err := r.store.ResolveReport(ctx, reportID, r.now())
	if err != nil {
		return nil, notFoundAs(err, "report not found")
	}
	r.log.Info("report resolved", "report", report.ID, "admin", admin.ID)
	return report, nil
}

func (r *Reports) List(ctx context.Context, adminID string, openOnly bool) ([]*domain.Report, error) {
	if _, err := r.admin(ctx, adminID); err != nil {
		return nil, err
	}
	return r.store.ListReports(ctx, openOnly, MaxReportList)
}
