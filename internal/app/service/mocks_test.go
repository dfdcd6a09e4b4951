package service

import (
	"context"
	"time"

	"noticeboard/internal/domain/model"
	"noticeboard/internal/platform/storage"

	"github.com/stretchr/testify/mock"
)

type mockNoticeRepo struct {
	mock.Mock
}

func (m *mockNoticeRepo) List(ctx context.Context, filter model.NoticeFilter) ([]model.Notice, error) {
	args := m.Called(ctx, filter)
	notices, _ := args.Get(0).([]model.Notice)
	return notices, args.Error(1)
}

func (m *mockNoticeRepo) Get(ctx context.Context, id int64) (*model.Notice, error) {
	args := m.Called(ctx, id)
	notice, _ := args.Get(0).(*model.Notice)
	return notice, args.Error(1)
}

func (m *mockNoticeRepo) Create(ctx context.Context, notice *model.Notice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

func (m *mockNoticeRepo) Update(ctx context.Context, id int64, update model.NoticeUpdate) error {
	return m.Called(ctx, id, update).Error(0)
}

func (m *mockNoticeRepo) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockNoticeRepo) AddAttachment(ctx context.Context, attachment *model.Attachment) error {
	return m.Called(ctx, attachment).Error(0)
}

func (m *mockNoticeRepo) ListAttachments(ctx context.Context, noticeID int64) ([]model.Attachment, error) {
	args := m.Called(ctx, noticeID)
	attachments, _ := args.Get(0).([]model.Attachment)
	return attachments, args.Error(1)
}

func (m *mockNoticeRepo) ExistingFilenames(ctx context.Context, names []string) (map[string]struct{}, error) {
	args := m.Called(ctx, names)
	found, _ := args.Get(0).(map[string]struct{})
	return found, args.Error(1)
}

func (m *mockNoticeRepo) NoticeStats(ctx context.Context, postedBy *int64, today time.Time) (*model.NoticeStats, error) {
	args := m.Called(ctx, postedBy, today)
	stats, _ := args.Get(0).(*model.NoticeStats)
	return stats, args.Error(1)
}

func (m *mockNoticeRepo) CountBySection(ctx context.Context) ([]model.SectionCount, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).([]model.SectionCount)
	return counts, args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindStudentByStudentID(ctx context.Context, studentID string) (*model.Student, error) {
	args := m.Called(ctx, studentID)
	student, _ := args.Get(0).(*model.Student)
	return student, args.Error(1)
}

func (m *mockUserRepo) FindAdminByUsernameAndRole(ctx context.Context, username, role string) (*model.Admin, error) {
	args := m.Called(ctx, username, role)
	admin, _ := args.Get(0).(*model.Admin)
	return admin, args.Error(1)
}

func (m *mockUserRepo) ListSectionAdmins(ctx context.Context) ([]model.Admin, error) {
	args := m.Called(ctx)
	admins, _ := args.Get(0).([]model.Admin)
	return admins, args.Error(1)
}

func (m *mockUserRepo) CountSectionAdmins(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserRepo) UpdateStudentPasswords(ctx context.Context, hash string) (int64, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserRepo) UpdateAdminPasswords(ctx context.Context, hash string, superAdmin bool) (int64, error) {
	args := m.Called(ctx, hash, superAdmin)
	return args.Get(0).(int64), args.Error(1)
}

// failingFiles wraps a real store and fails Save or Delete on demand.
type failingFiles struct {
	*storage.AttachmentStore
	saveErr   error
	deleteErr error
	deleted   []string
}

func (f *failingFiles) Save(up storage.Upload) (*storage.StoredFile, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return f.AttachmentStore.Save(up)
}

func (f *failingFiles) Delete(name string) error {
	f.deleted = append(f.deleted, name)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.AttachmentStore.Delete(name)
}
