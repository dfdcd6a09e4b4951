package service

import (
	"context"
	"time"

	"noticeboard/internal/app/policy"
	"noticeboard/internal/domain/model"
	"noticeboard/internal/domain/repository"

	charmlog "github.com/charmbracelet/log"
)

// AdminService serves the dashboard reads: role-scoped statistics and the
// section admin listing.
type AdminService struct {
	noticeRepo repository.NoticeRepository
	userRepo   repository.UserRepository
	logger     *charmlog.Logger
	now        func() time.Time
}

func NewAdminService(noticeRepo repository.NoticeRepository, userRepo repository.UserRepository, logger *charmlog.Logger) *AdminService {
	return &AdminService{
		noticeRepo: noticeRepo,
		userRepo:   userRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// Statistics scopes counts to the caller: a section admin sees only notices
// it posted, including archived ones; the super-admin sees global counts, the
// section admin headcount and a per-section breakdown.
func (s *AdminService) Statistics(ctx context.Context, identity model.Identity) (*model.Statistics, error) {
	if err := policy.Authorize(identity, policy.ViewStatistics, nil); err != nil {
		return nil, err
	}
	admin := identity.(model.AdminIdentity)
	today := s.now()

	if !admin.IsSuperAdmin() {
		stats, err := s.noticeRepo.NoticeStats(ctx, &admin.ID, today)
		if err != nil {
			s.logger.Error("section statistics failed", "admin_id", admin.ID, "err", err)
			return nil, err
		}
		archived := stats.Archived
		return &model.Statistics{
			TotalNotices:     stats.Total,
			ActiveNotices:    stats.Active,
			ImportantNotices: stats.Important,
			ArchivedNotices:  &archived,
		}, nil
	}

	stats, err := s.noticeRepo.NoticeStats(ctx, nil, today)
	if err != nil {
		s.logger.Error("global statistics failed", "err", err)
		return nil, err
	}
	admins, err := s.userRepo.CountSectionAdmins(ctx)
	if err != nil {
		s.logger.Error("counting admins failed", "err", err)
		return nil, err
	}
	bySection, err := s.noticeRepo.CountBySection(ctx)
	if err != nil {
		s.logger.Error("section breakdown failed", "err", err)
		return nil, err
	}
	return &model.Statistics{
		TotalNotices:     stats.Total,
		ActiveNotices:    stats.Active,
		ImportantNotices: stats.Important,
		TotalAdmins:      &admins,
		BySection:        bySection,
	}, nil
}

func (s *AdminService) ListAdmins(ctx context.Context, identity model.Identity) ([]model.AdminSummary, error) {
	if err := policy.Authorize(identity, policy.ListAdmins, nil); err != nil {
		return nil, err
	}
	admins, err := s.userRepo.ListSectionAdmins(ctx)
	if err != nil {
		s.logger.Error("listing admins failed", "err", err)
		return nil, err
	}
	summaries := make([]model.AdminSummary, 0, len(admins))
	for _, a := range admins {
		summaries = append(summaries, a.Summary())
	}
	return summaries, nil
}
