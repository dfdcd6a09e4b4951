package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"noticeboard/internal/common"
	"noticeboard/internal/domain/model"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBInterface is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var ErrNoticeNotFound = common.NewError(common.ErrNotFound, "Notice not found")

type NoticeRepository interface {
	List(ctx context.Context, filter model.NoticeFilter) ([]model.Notice, error)
	Get(ctx context.Context, id int64) (*model.Notice, error)
	Create(ctx context.Context, notice *model.Notice) error
	Update(ctx context.Context, id int64, update model.NoticeUpdate) error
	Delete(ctx context.Context, id int64) error

	AddAttachment(ctx context.Context, attachment *model.Attachment) error
	ListAttachments(ctx context.Context, noticeID int64) ([]model.Attachment, error)
	ExistingFilenames(ctx context.Context, names []string) (map[string]struct{}, error)

	NoticeStats(ctx context.Context, postedBy *int64, today time.Time) (*model.NoticeStats, error)
	CountBySection(ctx context.Context) ([]model.SectionCount, error)
}

type pgNoticeRepository struct {
	db DBInterface
}

func NewPgNoticeRepository(db DBInterface) NoticeRepository {
	return &pgNoticeRepository{db: db}
}

var noticeColumns = []string{
	"n.id", "n.title", "n.description", "n.section", "n.importance",
	"n.date_posted", "n.expiry_date", "n.posted_by", "a.username AS posted_by_username",
	"n.created_at", "n.updated_at",
}

var attachmentColumns = []string{"id", "notice_id", "filename", "file_type", "uploaded_at"}

func selectNotices() squirrel.SelectBuilder {
	return psql.Select(noticeColumns...).
		From("notices n").
		LeftJoin("admins a ON n.posted_by = a.id")
}

func (r *pgNoticeRepository) List(ctx context.Context, filter model.NoticeFilter) ([]model.Notice, error) {
	qb := selectNotices()

	today := model.DateOf(filter.Today)
	switch filter.Status {
	case model.StatusActive:
		qb = qb.Where(squirrel.GtOrEq{"n.expiry_date": today})
	case model.StatusExpired:
		qb = qb.Where(squirrel.Lt{"n.expiry_date": today})
	}
	if filter.Section != "" {
		qb = qb.Where(squirrel.Eq{"n.section": filter.Section})
	}
	if filter.Importance != "" {
		qb = qb.Where(squirrel.Eq{"n.importance": filter.Importance})
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		qb = qb.Where(squirrel.Or{
			squirrel.ILike{"n.title": pattern},
			squirrel.ILike{"n.description": pattern},
		})
	}
	if filter.PostedBy != nil {
		qb = qb.Where(squirrel.Eq{"n.posted_by": *filter.PostedBy})
	}

	query, args, err := qb.OrderBy("n.date_posted DESC", "n.id DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgNoticeRepository.List: building query: %w", err)
	}

	var notices []model.Notice
	if err := pgxscan.Select(ctx, r.db, &notices, query, args...); err != nil {
		return nil, fmt.Errorf("pgNoticeRepository.List: %w: %v", common.ErrDependency, err)
	}
	if len(notices) == 0 {
		return []model.Notice{}, nil
	}

	if err := r.attachTo(ctx, notices); err != nil {
		return nil, err
	}
	return notices, nil
}

// attachTo loads the attachments of every notice in one query.
func (r *pgNoticeRepository) attachTo(ctx context.Context, notices []model.Notice) error {
	ids := make([]int64, len(notices))
	index := make(map[int64]int, len(notices))
	for i, n := range notices {
		ids[i] = n.ID
		index[n.ID] = i
		notices[i].Attachments = []model.Attachment{}
	}

	query, args, err := psql.Select(attachmentColumns...).
		From("attachments").
		Where(squirrel.Eq{"notice_id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return fmt.Errorf("pgNoticeRepository.attachTo: building query: %w", err)
	}

	var attachments []model.Attachment
	if err := pgxscan.Select(ctx, r.db, &attachments, query, args...); err != nil {
		return fmt.Errorf("pgNoticeRepository.attachTo: %w: %v", common.ErrDependency, err)
	}
	for _, a := range attachments {
		if i, ok := index[a.NoticeID]; ok {
			notices[i].Attachments = append(notices[i].Attachments, a)
		}
	}
	return nil
}

func (r *pgNoticeRepository) Get(ctx context.Context, id int64) (*model.Notice, error) {
	query, args, err := selectNotices().Where(squirrel.Eq{"n.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgNoticeRepository.Get: building query: %w", err)
	}

	var notice model.Notice
	if err := pgxscan.Get(ctx, r.db, &notice, query, args...); err != nil {
		if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoticeNotFound
		}
		return nil, fmt.Errorf("pgNoticeRepository.Get: %w: %v", common.ErrDependency, err)
	}

	attachments, err := r.ListAttachments(ctx, notice.ID)
	if err != nil {
		return nil, err
	}
	notice.Attachments = attachments
	return &notice, nil
}

func (r *pgNoticeRepository) Create(ctx context.Context, n *model.Notice) error {
	query, args, err := psql.Insert("notices").
		Columns("title", "description", "section", "importance", "date_posted", "expiry_date", "posted_by").
		Values(n.Title, n.Description, n.Section, n.Importance, model.DateOf(n.DatePosted), model.DateOf(n.ExpiryDate), n.PostedBy).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("pgNoticeRepository.Create: building query: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return fmt.Errorf("pgNoticeRepository.Create: %w: %v", common.ErrDependency, err)
	}
	return nil
}

func (r *pgNoticeRepository) Update(ctx context.Context, id int64, u model.NoticeUpdate) error {
	if u.Empty() {
		return fmt.Errorf("no fields to update: %w", common.ErrValidation)
	}

	set := map[string]interface{}{}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Section != nil {
		set["section"] = *u.Section
	}
	if u.Importance != nil {
		set["importance"] = *u.Importance
	}
	if u.ExpiryDate != nil {
		set["expiry_date"] = model.DateOf(*u.ExpiryDate)
	}

	query, args, err := psql.Update("notices").
		SetMap(set).
		Set("updated_at", squirrel.Expr("CURRENT_TIMESTAMP")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("pgNoticeRepository.Update: building query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pgNoticeRepository.Update: %w: %v", common.ErrDependency, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoticeNotFound
	}
	return nil
}

// Delete removes the attachment rows and the notice in one transaction.
// Stored bytes are the caller's concern.
func (r *pgNoticeRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgNoticeRepository.Delete: begin: %w: %v", common.ErrDependency, err)
	}
	if err := deleteNoticeRows(ctx, tx, id); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgNoticeRepository.Delete: commit: %w: %v", common.ErrDependency, err)
	}
	return nil
}

func deleteNoticeRows(ctx context.Context, tx pgx.Tx, id int64) error {
	if _, err := tx.Exec(ctx, "DELETE FROM attachments WHERE notice_id = $1", id); err != nil {
		return fmt.Errorf("pgNoticeRepository.Delete: attachments: %w: %v", common.ErrDependency, err)
	}
	tag, err := tx.Exec(ctx, "DELETE FROM notices WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("pgNoticeRepository.Delete: %w: %v", common.ErrDependency, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoticeNotFound
	}
	return nil
}

func (r *pgNoticeRepository) AddAttachment(ctx context.Context, a *model.Attachment) error {
	query, args, err := psql.Insert("attachments").
		Columns("notice_id", "filename", "file_type").
		Values(a.NoticeID, a.Filename, a.FileType).
		Suffix("RETURNING id, uploaded_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("pgNoticeRepository.AddAttachment: building query: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&a.ID, &a.UploadedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("pgNoticeRepository.AddAttachment: notice %d: %w", a.NoticeID, ErrNoticeNotFound)
		}
		return fmt.Errorf("pgNoticeRepository.AddAttachment: %w: %v", common.ErrDependency, err)
	}
	return nil
}

func (r *pgNoticeRepository) ListAttachments(ctx context.Context, noticeID int64) ([]model.Attachment, error) {
	query, args, err := psql.Select(attachmentColumns...).
		From("attachments").
		Where(squirrel.Eq{"notice_id": noticeID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgNoticeRepository.ListAttachments: building query: %w", err)
	}
	attachments := []model.Attachment{}
	if err := pgxscan.Select(ctx, r.db, &attachments, query, args...); err != nil {
		return nil, fmt.Errorf("pgNoticeRepository.ListAttachments: %w: %v", common.ErrDependency, err)
	}
	return attachments, nil
}

// ExistingFilenames reports which of the given stored names still have an
// attachment row.
func (r *pgNoticeRepository) ExistingFilenames(ctx context.Context, names []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(names))
	if len(names) == 0 {
		return found, nil
	}
	query, args, err := psql.Select("filename").
		From("attachments").
		Where(squirrel.Eq{"filename": names}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgNoticeRepository.ExistingFilenames: building query: %w", err)
	}
	var existing []string
	if err := pgxscan.Select(ctx, r.db, &existing, query, args...); err != nil {
		return nil, fmt.Errorf("pgNoticeRepository.ExistingFilenames: %w: %v", common.ErrDependency, err)
	}
	for _, name := range existing {
		found[name] = struct{}{}
	}
	return found, nil
}

// NoticeStats counts notices, optionally only those posted by one admin.
// Active and archived are derived from expiry_date against today.
func (r *pgNoticeRepository) NoticeStats(ctx context.Context, postedBy *int64, today time.Time) (*model.NoticeStats, error) {
	day := model.DateOf(today)
	qb := psql.Select("COUNT(*) AS total").
		Column(squirrel.Expr("COUNT(*) FILTER (WHERE expiry_date >= ?) AS active", day)).
		Column(squirrel.Expr("COUNT(*) FILTER (WHERE importance = ? AND expiry_date >= ?) AS important", model.ImportanceImportant, day)).
		Column(squirrel.Expr("COUNT(*) FILTER (WHERE expiry_date < ?) AS archived", day)).
		From("notices")
	if postedBy != nil {
		qb = qb.Where(squirrel.Eq{"posted_by": *postedBy})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgNoticeRepository.NoticeStats: building query: %w", err)
	}

	var stats model.NoticeStats
	if err := pgxscan.Get(ctx, r.db, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("pgNoticeRepository.NoticeStats: %w: %v", common.ErrDependency, err)
	}
	return &stats, nil
}

func (r *pgNoticeRepository) CountBySection(ctx context.Context) ([]model.SectionCount, error) {
	query, args, err := psql.Select("section", "COUNT(*) AS count").
		From("notices").
		GroupBy("section").
		OrderBy("section").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgNoticeRepository.CountBySection: building query: %w", err)
	}
	counts := []model.SectionCount{}
	if err := pgxscan.Select(ctx, r.db, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("pgNoticeRepository.CountBySection: %w: %v", common.ErrDependency, err)
	}
	return counts, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
