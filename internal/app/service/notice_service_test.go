package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"noticeboard/internal/common"
	"noticeboard/internal/domain/model"
	"noticeboard/internal/platform/logger"
	"noticeboard/internal/platform/metrics"
	"noticeboard/internal/platform/storage"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow   = time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	owner      = model.AdminIdentity{ID: 10, Username: "cse_admin", Role: "cse-admin"}
	otherAdmin = model.AdminIdentity{ID: 11, Username: "ece_admin", Role: "ece-admin"}
	superAdmin = model.AdminIdentity{ID: 1, Username: "superadmin", Role: model.RoleSuperAdmin}
	student    = model.StudentIdentity{ID: 3, StudentID: "STU001"}
)

type noticeFixture struct {
	repo  *mockNoticeRepo
	fs    afero.Fs
	files *failingFiles
	svc   *NoticeService
}

func newNoticeFixture() *noticeFixture {
	fs := afero.NewMemMapFs()
	files := &failingFiles{AttachmentStore: storage.NewAttachmentStore(fs, storage.DefaultMaxFileSize)}
	repo := new(mockNoticeRepo)
	svc := NewNoticeService(repo, files, metrics.New(), logger.Nop())
	svc.now = func() time.Time { return fixedNow }
	return &noticeFixture{repo: repo, fs: fs, files: files, svc: svc}
}

func validCreate() CreateNoticeRequest {
	return CreateNoticeRequest{
		Title:       "Midterm schedule",
		Description: "Exams start Monday",
		Section:     "cse",
		DatePosted:  "2026-03-10",
		ExpiryDate:  "2026-03-17",
	}
}

func pdfUpload(name string) *storage.Upload {
	content := make([]byte, 2048)
	copy(content, "%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	return &storage.Upload{Filename: name, Size: int64(len(content)), Content: bytes.NewReader(content)}
}

func assignID(id int64) func(mock.Arguments) {
	return func(args mock.Arguments) {
		args.Get(1).(*model.Notice).ID = id
	}
}

func TestNoticeService_List(t *testing.T) {
	f := newNoticeFixture()
	f.repo.On("List", mock.Anything, model.NoticeFilter{Status: model.StatusActive, Search: "exam", Today: fixedNow}).
		Return([]model.Notice{{ID: 1}}, nil)

	notices, err := f.svc.List(context.Background(), ListNoticesRequest{Search: "exam"})
	require.NoError(t, err)
	assert.Len(t, notices, 1)
	f.repo.AssertExpectations(t)
}

func TestNoticeService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Should default importance to normal and record the owner", func(t *testing.T) {
		f := newNoticeFixture()
		f.repo.On("Create", mock.Anything, mock.MatchedBy(func(n *model.Notice) bool {
			return n.Importance == model.ImportanceNormal &&
				n.PostedBy == owner.ID &&
				n.ExpiryDate.Equal(time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC))
		})).Run(assignID(42)).Return(nil)

		id, err := f.svc.Create(ctx, owner, validCreate())
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		f.repo.AssertExpectations(t)
	})

	t.Run("Should refuse students and anonymous callers", func(t *testing.T) {
		f := newNoticeFixture()
		_, err := f.svc.Create(ctx, student, validCreate())
		assert.ErrorIs(t, err, common.ErrForbidden)

		_, err = f.svc.Create(ctx, nil, validCreate())
		assert.ErrorIs(t, err, common.ErrUnauthorized)
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Should validate fields before any write", func(t *testing.T) {
		cases := map[string]func(*CreateNoticeRequest){
			"missing title":      func(r *CreateNoticeRequest) { r.Title = "  " },
			"missing expiry":     func(r *CreateNoticeRequest) { r.ExpiryDate = "" },
			"unknown importance": func(r *CreateNoticeRequest) { r.Importance = "urgent" },
			"malformed date":     func(r *CreateNoticeRequest) { r.DatePosted = "10/03/2026" },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				f := newNoticeFixture()
				req := validCreate()
				mutate(&req)
				_, err := f.svc.Create(ctx, owner, req)
				assert.ErrorIs(t, err, common.ErrValidation)
				f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("Should reject a disallowed attachment before the notice is written", func(t *testing.T) {
		f := newNoticeFixture()
		req := validCreate()
		req.Attachment = &storage.Upload{Filename: "virus.exe", Size: 10, Content: bytes.NewReader([]byte("MZ"))}

		_, err := f.svc.Create(ctx, owner, req)
		assert.ErrorIs(t, err, storage.ErrUnsupportedFileType)
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Should store and link an allowed attachment", func(t *testing.T) {
		f := newNoticeFixture()
		req := validCreate()
		req.Importance = "important"
		req.Attachment = pdfUpload("Schedule.pdf")

		f.repo.On("Create", mock.Anything, mock.Anything).Run(assignID(42)).Return(nil)
		f.repo.On("AddAttachment", mock.Anything, mock.MatchedBy(func(a *model.Attachment) bool {
			return a.NoticeID == 42 && a.FileType == model.FileTypePDF
		})).Return(nil)

		id, err := f.svc.Create(ctx, owner, req)
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)

		files, _ := afero.ReadDir(f.fs, ".")
		require.Len(t, files, 1)
		assert.Contains(t, files[0].Name(), "_schedule.pdf")
		f.repo.AssertExpectations(t)
	})

	t.Run("Should keep the notice when storing the bytes fails", func(t *testing.T) {
		f := newNoticeFixture()
		f.files.saveErr = errors.Join(common.ErrDependency, errors.New("disk full"))
		req := validCreate()
		req.Attachment = pdfUpload("a.pdf")
		f.repo.On("Create", mock.Anything, mock.Anything).Run(assignID(42)).Return(nil)

		id, err := f.svc.Create(ctx, owner, req)
		assert.Equal(t, int64(42), id)
		var attErr *AttachmentError
		require.ErrorAs(t, err, &attErr)
		assert.Equal(t, int64(42), attErr.NoticeID)
		assert.ErrorIs(t, err, common.ErrDependency)
		f.repo.AssertNotCalled(t, "AddAttachment", mock.Anything, mock.Anything)
		f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("Should keep the notice and remove the bytes when linking fails", func(t *testing.T) {
		f := newNoticeFixture()
		req := validCreate()
		req.Attachment = pdfUpload("a.pdf")
		f.repo.On("Create", mock.Anything, mock.Anything).Run(assignID(42)).Return(nil)
		f.repo.On("AddAttachment", mock.Anything, mock.Anything).Return(errors.Join(common.ErrDependency, errors.New("timeout")))

		id, err := f.svc.Create(ctx, owner, req)
		assert.Equal(t, int64(42), id)
		var attErr *AttachmentError
		require.ErrorAs(t, err, &attErr)
		assert.Equal(t, int64(42), attErr.NoticeID)

		files, _ := afero.ReadDir(f.fs, ".")
		assert.Empty(t, files)
		require.Len(t, f.files.deleted, 1)
		f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestNoticeService_Update(t *testing.T) {
	ctx := context.Background()
	target := &model.Notice{ID: 5, Section: "cse", PostedBy: owner.ID}
	title := "Updated"

	t.Run("Should apply only the present fields for the owner", func(t *testing.T) {
		f := newNoticeFixture()
		importance := "important"
		f.repo.On("Get", mock.Anything, int64(5)).Return(target, nil)
		f.repo.On("Update", mock.Anything, int64(5), mock.MatchedBy(func(u model.NoticeUpdate) bool {
			return u.Title != nil && *u.Title == "Updated" &&
				u.Importance != nil && *u.Importance == model.ImportanceImportant &&
				u.Description == nil && u.Section == nil && u.ExpiryDate == nil
		})).Return(nil)

		err := f.svc.Update(ctx, owner, 5, UpdateNoticeRequest{Title: &title, Importance: &importance})
		require.NoError(t, err)
		f.repo.AssertExpectations(t)
	})

	t.Run("Should let the super-admin update any notice", func(t *testing.T) {
		f := newNoticeFixture()
		f.repo.On("Get", mock.Anything, int64(5)).Return(target, nil)
		f.repo.On("Update", mock.Anything, int64(5), mock.Anything).Return(nil)

		require.NoError(t, f.svc.Update(ctx, superAdmin, 5, UpdateNoticeRequest{Title: &title}))
	})

	t.Run("Should forbid a non-owner section admin", func(t *testing.T) {
		f := newNoticeFixture()
		f.repo.On("Get", mock.Anything, int64(5)).Return(target, nil)

		err := f.svc.Update(ctx, otherAdmin, 5, UpdateNoticeRequest{Title: &title})
		assert.ErrorIs(t, err, common.ErrForbidden)
		f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should forbid students before looking anything up", func(t *testing.T) {
		f := newNoticeFixture()
		err := f.svc.Update(ctx, student, 5, UpdateNoticeRequest{Title: &title})
		assert.ErrorIs(t, err, common.ErrForbidden)
		f.repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("Should report an unknown notice", func(t *testing.T) {
		f := newNoticeFixture()
		f.repo.On("Get", mock.Anything, int64(404)).Return(nil, common.ErrNotFound)

		err := f.svc.Update(ctx, owner, 404, UpdateNoticeRequest{Title: &title})
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("Should reject an update with no recognised fields", func(t *testing.T) {
		f := newNoticeFixture()
		f.repo.On("Get", mock.Anything, int64(5)).Return(target, nil)

		err := f.svc.Update(ctx, owner, 5, UpdateNoticeRequest{})
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Equal(t, "No fields to update", common.PublicMessage(err))
		f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should reject an invalid expiry date", func(t *testing.T) {
		f := newNoticeFixture()
		f.repo.On("Get", mock.Anything, int64(5)).Return(target, nil)
		bad := "2026-13-45"

		err := f.svc.Update(ctx, owner, 5, UpdateNoticeRequest{ExpiryDate: &bad})
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestNoticeService_Delete(t *testing.T) {
	ctx := context.Background()
	target := &model.Notice{ID: 5, Section: "cse", PostedBy: owner.ID}

	t.Run("Should remove stored files then the rows", func(t *testing.T) {
		f := newNoticeFixture()
		require.NoError(t, afero.WriteFile(f.fs, "one.pdf", []byte("x"), 0o644))
		f.repo.On("Get", mock.Anything, int64(5)).Return(target, nil)
		f.repo.On("ListAttachments", mock.Anything, int64(5)).Return([]model.Attachment{
			{ID: 1, NoticeID: 5, Filename: "one.pdf"},
			{ID: 2, NoticeID: 5, Filename: "already-gone.png"},
		}, nil)
		f.repo.On("Delete", mock.Anything, int64(5)).Return(nil)

		require.NoError(t, f.svc.Delete(ctx, superAdmin, 5))
		exists, _ := afero.Exists(f.fs, "one.pdf")
		assert.False(t, exists)
		assert.Equal(t, []string{"one.pdf", "already-gone.png"}, f.files.deleted)
		f.repo.AssertExpectations(t)
	})

	t.Run("Should leave everything in place for a non-owner", func(t *testing.T) {
		f := newNoticeFixture()
		f.repo.On("Get", mock.Anything, int64(5)).Return(target, nil)

		err := f.svc.Delete(ctx, otherAdmin, 5)
		assert.ErrorIs(t, err, common.ErrForbidden)
		assert.Empty(t, f.files.deleted)
		f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("Should report an unknown notice", func(t *testing.T) {
		f := newNoticeFixture()
		f.repo.On("Get", mock.Anything, int64(5)).Return(nil, common.ErrNotFound)

		assert.ErrorIs(t, f.svc.Delete(ctx, owner, 5), common.ErrNotFound)
	})

	t.Run("Should stop before touching rows when a file cannot be removed", func(t *testing.T) {
		f := newNoticeFixture()
		f.files.deleteErr = errors.Join(common.ErrDependency, errors.New("permission denied"))
		f.repo.On("Get", mock.Anything, int64(5)).Return(target, nil)
		f.repo.On("ListAttachments", mock.Anything, int64(5)).Return([]model.Attachment{{Filename: "one.pdf"}}, nil)

		err := f.svc.Delete(ctx, owner, 5)
		assert.ErrorIs(t, err, common.ErrDependency)
		f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}
