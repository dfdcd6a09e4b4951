package repository

import (
	"context"
	"errors"
	"fmt"

	"noticeboard/internal/common"
	"noticeboard/internal/domain/model"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

type UserRepository interface {
	FindStudentByStudentID(ctx context.Context, studentID string) (*model.Student, error)
	FindAdminByUsernameAndRole(ctx context.Context, username, role string) (*model.Admin, error)
	ListSectionAdmins(ctx context.Context) ([]model.Admin, error)
	CountSectionAdmins(ctx context.Context) (int64, error)

	UpdateStudentPasswords(ctx context.Context, hash string) (int64, error)
	UpdateAdminPasswords(ctx context.Context, hash string, superAdmin bool) (int64, error)
}

type pgUserRepository struct {
	db DBInterface
}

func NewPgUserRepository(db DBInterface) UserRepository {
	return &pgUserRepository{db: db}
}

var (
	studentColumns = []string{"id", "student_id", "name", "email", "password", "created_at"}
	adminColumns   = []string{"id", "username", "email", "password", "role", "created_at"}
)

func (r *pgUserRepository) FindStudentByStudentID(ctx context.Context, studentID string) (*model.Student, error) {
	query, args, err := psql.Select(studentColumns...).
		From("students").
		Where(squirrel.Eq{"student_id": studentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.FindStudentByStudentID: building query: %w", err)
	}
	var student model.Student
	if err := pgxscan.Get(ctx, r.db, &student, query, args...); err != nil {
		if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindStudentByStudentID: %w: %v", common.ErrDependency, err)
	}
	return &student, nil
}

func (r *pgUserRepository) FindAdminByUsernameAndRole(ctx context.Context, username, role string) (*model.Admin, error) {
	query, args, err := psql.Select(adminColumns...).
		From("admins").
		Where(squirrel.Eq{"username": username, "role": role}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.FindAdminByUsernameAndRole: building query: %w", err)
	}
	var admin model.Admin
	if err := pgxscan.Get(ctx, r.db, &admin, query, args...); err != nil {
		if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindAdminByUsernameAndRole: %w: %v", common.ErrDependency, err)
	}
	return &admin, nil
}

// ListSectionAdmins returns every admin except the super-admin tier, newest
// first.
func (r *pgUserRepository) ListSectionAdmins(ctx context.Context) ([]model.Admin, error) {
	query, args, err := psql.Select(adminColumns...).
		From("admins").
		Where(squirrel.NotEq{"role": model.RoleSuperAdmin}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.ListSectionAdmins: building query: %w", err)
	}
	admins := []model.Admin{}
	if err := pgxscan.Select(ctx, r.db, &admins, query, args...); err != nil {
		return nil, fmt.Errorf("pgUserRepository.ListSectionAdmins: %w: %v", common.ErrDependency, err)
	}
	return admins, nil
}

func (r *pgUserRepository) CountSectionAdmins(ctx context.Context) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("admins").
		Where(squirrel.NotEq{"role": model.RoleSuperAdmin}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("pgUserRepository.CountSectionAdmins: building query: %w", err)
	}
	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgUserRepository.CountSectionAdmins: %w: %v", common.ErrDependency, err)
	}
	return count, nil
}

func (r *pgUserRepository) UpdateStudentPasswords(ctx context.Context, hash string) (int64, error) {
	query, args, err := psql.Update("students").Set("password", hash).ToSql()
	if err != nil {
		return 0, fmt.Errorf("pgUserRepository.UpdateStudentPasswords: building query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("pgUserRepository.UpdateStudentPasswords: %w: %v", common.ErrDependency, err)
	}
	return tag.RowsAffected(), nil
}

// UpdateAdminPasswords rewrites either the super-admin hashes or every
// section admin hash.
func (r *pgUserRepository) UpdateAdminPasswords(ctx context.Context, hash string, superAdmin bool) (int64, error) {
	qb := psql.Update("admins").Set("password", hash)
	if superAdmin {
		qb = qb.Where(squirrel.Eq{"role": model.RoleSuperAdmin})
	} else {
		qb = qb.Where(squirrel.NotEq{"role": model.RoleSuperAdmin})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("pgUserRepository.UpdateAdminPasswords: building query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("pgUserRepository.UpdateAdminPasswords: %w: %v", common.ErrDependency, err)
	}
	return tag.RowsAffected(), nil
}
