package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"noticeboard/internal/app/policy"
	"noticeboard/internal/common"
	"noticeboard/internal/domain/model"
	"noticeboard/internal/domain/repository"
	"noticeboard/internal/platform/metrics"
	"noticeboard/internal/platform/storage"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
)

// AttachmentFiles is the byte store behind notice attachments.
type AttachmentFiles interface {
	Inspect(up storage.Upload) (storage.Upload, error)
	Save(up storage.Upload) (*storage.StoredFile, error)
	Delete(name string) error
}

// AttachmentError reports a notice that was persisted while its attachment
// was not. The notice is kept; callers get its id back.
type AttachmentError struct {
	NoticeID int64
	Err      error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("notice %d created but attachment was not saved: %v", e.NoticeID, e.Err)
}

// Unwrap classifies the failure as a dependency error whatever the cause, so
// the caller always sees a server-side failure with the notice id attached.
func (e *AttachmentError) Unwrap() error {
	return common.ErrDependency
}

type NoticeService struct {
	noticeRepo repository.NoticeRepository
	files      AttachmentFiles
	metrics    *metrics.Metrics
	validate   *validator.Validate
	logger     *charmlog.Logger
	now        func() time.Time
}

func NewNoticeService(noticeRepo repository.NoticeRepository, files AttachmentFiles, m *metrics.Metrics, logger *charmlog.Logger) *NoticeService {
	return &NoticeService{
		noticeRepo: noticeRepo,
		files:      files,
		metrics:    m,
		validate:   validator.New(),
		logger:     logger,
		now:        time.Now,
	}
}

type ListNoticesRequest struct {
	Section    string
	Importance string
	Status     string
	Search     string
}

type CreateNoticeRequest struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	Section     string `validate:"required"`
	Importance  string `validate:"omitempty,oneof=normal important"`
	DatePosted  string `validate:"required,datetime=2006-01-02"`
	ExpiryDate  string `validate:"required,datetime=2006-01-02"`
	Attachment  *storage.Upload
}

// UpdateNoticeRequest is decoded from a JSON partial update. A nil field was
// absent from the body.
type UpdateNoticeRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Section     *string `json:"section"`
	Importance  *string `json:"importance" validate:"omitempty,oneof=normal important"`
	ExpiryDate  *string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
}

func (s *NoticeService) List(ctx context.Context, req ListNoticesRequest) ([]model.Notice, error) {
	status := req.Status
	if status == "" {
		status = model.StatusActive
	}
	notices, err := s.noticeRepo.List(ctx, model.NoticeFilter{
		Section:    req.Section,
		Importance: req.Importance,
		Status:     status,
		Search:     req.Search,
		Today:      s.now(),
	})
	if err != nil {
		s.logger.Error("listing notices failed", "err", err)
		return nil, err
	}
	return notices, nil
}

func (s *NoticeService) Get(ctx context.Context, id int64) (*model.Notice, error) {
	notice, err := s.noticeRepo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("loading notice failed", "notice_id", id, "err", err)
		}
		return nil, err
	}
	return notice, nil
}

// Create persists the notice first and the attachment second. Every check
// that can reject the request runs before the first write; a failure after
// the notice row exists returns *AttachmentError and leaves the notice.
func (s *NoticeService) Create(ctx context.Context, identity model.Identity, req CreateNoticeRequest) (int64, error) {
	if err := policy.Authorize(identity, policy.CreateNotice, nil); err != nil {
		return 0, err
	}
	admin := identity.(model.AdminIdentity)

	notice, err := s.buildNotice(req, admin.ID)
	if err != nil {
		return 0, err
	}

	var upload *storage.Upload
	if req.Attachment != nil {
		inspected, err := s.files.Inspect(*req.Attachment)
		if err != nil {
			return 0, err
		}
		upload = &inspected
	}

	if err := s.noticeRepo.Create(ctx, notice); err != nil {
		s.logger.Error("creating notice failed", "admin_id", admin.ID, "err", err)
		return 0, fmt.Errorf("NoticeService.Create: %w", err)
	}
	s.metrics.NoticeCreated()

	if upload == nil {
		return notice.ID, nil
	}

	stored, err := s.files.Save(*upload)
	if err != nil {
		s.metrics.AttachmentFailed("store")
		s.logger.Error("storing attachment failed", "notice_id", notice.ID, "filename", upload.Filename, "err", err)
		return notice.ID, &AttachmentError{NoticeID: notice.ID, Err: err}
	}

	attachment := &model.Attachment{NoticeID: notice.ID, Filename: stored.Filename, FileType: stored.FileType}
	if err := s.noticeRepo.AddAttachment(ctx, attachment); err != nil {
		s.metrics.AttachmentFailed("link")
		s.logger.Error("linking attachment failed", "notice_id", notice.ID, "stored", stored.Filename, "err", err)
		if delErr := s.files.Delete(stored.Filename); delErr != nil {
			s.logger.Warn("orphaned attachment left for sweeper", "stored", stored.Filename, "err", delErr)
		}
		return notice.ID, &AttachmentError{NoticeID: notice.ID, Err: err}
	}
	s.metrics.AttachmentStored()
	return notice.ID, nil
}

func (s *NoticeService) buildNotice(req CreateNoticeRequest, owner int64) (*model.Notice, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Section = strings.TrimSpace(req.Section)
	req.Importance = strings.TrimSpace(req.Importance)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	importance := model.ImportanceNormal
	if req.Importance != "" {
		importance = model.Importance(req.Importance)
	}
	posted, _ := model.ParseDate(req.DatePosted)
	expiry, _ := model.ParseDate(req.ExpiryDate)

	return &model.Notice{
		Title:       req.Title,
		Description: req.Description,
		Section:     req.Section,
		Importance:  importance,
		DatePosted:  posted,
		ExpiryDate:  expiry,
		PostedBy:    owner,
	}, nil
}

func (s *NoticeService) Update(ctx context.Context, identity model.Identity, id int64, req UpdateNoticeRequest) error {
	if _, ok := identity.(model.AdminIdentity); !ok {
		return policy.Authorize(identity, policy.UpdateNotice, nil)
	}

	notice, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(identity, policy.UpdateNotice, notice); err != nil {
		return err
	}

	update, err := s.buildUpdate(req)
	if err != nil {
		return err
	}
	if err := s.noticeRepo.Update(ctx, id, update); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("updating notice failed", "notice_id", id, "err", err)
		}
		return err
	}
	return nil
}

func (s *NoticeService) buildUpdate(req UpdateNoticeRequest) (model.NoticeUpdate, error) {
	if err := s.validate.Struct(req); err != nil {
		return model.NoticeUpdate{}, validationError(err)
	}
	update := model.NoticeUpdate{
		Title:       req.Title,
		Description: req.Description,
		Section:     req.Section,
	}
	if req.Importance != nil {
		importance := model.Importance(*req.Importance)
		update.Importance = &importance
	}
	if req.ExpiryDate != nil {
		expiry, _ := model.ParseDate(*req.ExpiryDate)
		update.ExpiryDate = &expiry
	}
	if update.Empty() {
		return update, common.NewError(common.ErrValidation, "No fields to update")
	}
	return update, nil
}

// Delete removes stored bytes first, then the attachment rows and the notice
// row together. A file that is already gone is not an error.
func (s *NoticeService) Delete(ctx context.Context, identity model.Identity, id int64) error {
	if _, ok := identity.(model.AdminIdentity); !ok {
		return policy.Authorize(identity, policy.DeleteNotice, nil)
	}

	notice, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(identity, policy.DeleteNotice, notice); err != nil {
		return err
	}

	attachments, err := s.noticeRepo.ListAttachments(ctx, id)
	if err != nil {
		s.logger.Error("listing attachments failed", "notice_id", id, "err", err)
		return err
	}
	for _, a := range attachments {
		if err := s.files.Delete(a.Filename); err != nil {
			s.logger.Error("deleting attachment file failed", "notice_id", id, "stored", a.Filename, "err", err)
			return fmt.Errorf("NoticeService.Delete: %w", err)
		}
	}

	if err := s.noticeRepo.Delete(ctx, id); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("deleting notice failed", "notice_id", id, "err", err)
		}
		return err
	}
	s.metrics.NoticeDeleted()
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return common.NewError(common.ErrValidation, "Invalid request")
	}
	switch verrs[0].Tag() {
	case "required":
		return common.NewError(common.ErrValidation, "All required fields must be provided")
	case "oneof":
		return common.NewError(common.ErrValidation, "Importance must be normal or important")
	case "datetime":
		return common.NewError(common.ErrValidation, "Dates must use the YYYY-MM-DD format")
	default:
		return common.NewError(common.ErrValidation, fmt.Sprintf("Invalid value for %s", verrs[0].Field()))
	}
}
