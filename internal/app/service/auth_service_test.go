package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"noticeboard/internal/common"
	"noticeboard/internal/common/security"
	"noticeboard/internal/domain/model"
	"noticeboard/internal/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newAuthService(users *mockUserRepo) (*AuthService, *security.TokenIssuer) {
	issuer := security.NewTokenIssuer([]byte("test-secret"), 24*time.Hour)
	return NewAuthService(users, security.BcryptVerifier{}, issuer, logger.Nop()), issuer
}

func TestAuthService_StudentLogin(t *testing.T) {
	ctx := context.Background()
	student := &model.Student{ID: 7, StudentID: "STU001", Name: "Asha", Email: "asha@example.com", HashedPassword: mustHash(t, "student123")}

	t.Run("Should issue a student token for valid credentials", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("FindStudentByStudentID", mock.Anything, "STU001").Return(student, nil)
		svc, issuer := newAuthService(users)

		resp, err := svc.StudentLogin(ctx, StudentLoginRequest{StudentID: "STU001", Password: "student123"})
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, model.LoginUser{ID: 7, Type: model.IdentityStudent, StudentID: "STU001", Name: "Asha", Email: "asha@example.com"}, resp.User)

		identity, err := issuer.Validate(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, model.StudentIdentity{ID: 7, StudentID: "STU001"}, identity)
		users.AssertExpectations(t)
	})

	t.Run("Should reject a wrong password without saying which part was wrong", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("FindStudentByStudentID", mock.Anything, "STU001").Return(student, nil)
		svc, _ := newAuthService(users)

		_, err := svc.StudentLogin(ctx, StudentLoginRequest{StudentID: "STU001", Password: "nope"})
		assert.ErrorIs(t, err, common.ErrUnauthorized)
		assert.Equal(t, "Invalid credentials", common.PublicMessage(err))
	})

	t.Run("Should treat an unknown student like a wrong password", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("FindStudentByStudentID", mock.Anything, "STU999").Return(nil, common.ErrNotFound)
		svc, _ := newAuthService(users)

		_, err := svc.StudentLogin(ctx, StudentLoginRequest{StudentID: "STU999", Password: "student123"})
		assert.ErrorIs(t, err, common.ErrUnauthorized)
		assert.Equal(t, "Invalid credentials", common.PublicMessage(err))
	})

	t.Run("Should require both fields before touching the datastore", func(t *testing.T) {
		users := new(mockUserRepo)
		svc, _ := newAuthService(users)

		_, err := svc.StudentLogin(ctx, StudentLoginRequest{StudentID: "STU001"})
		assert.ErrorIs(t, err, common.ErrValidation)
		users.AssertNotCalled(t, "FindStudentByStudentID", mock.Anything, mock.Anything)
	})

	t.Run("Should surface datastore failures as dependency errors", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("FindStudentByStudentID", mock.Anything, "STU001").
			Return(nil, errors.Join(common.ErrDependency, errors.New("connection refused")))
		svc, _ := newAuthService(users)

		_, err := svc.StudentLogin(ctx, StudentLoginRequest{StudentID: "STU001", Password: "student123"})
		assert.ErrorIs(t, err, common.ErrDependency)
		assert.Equal(t, "Internal server error", common.PublicMessage(err))
	})
}

func TestAuthService_AdminLogin(t *testing.T) {
	ctx := context.Background()
	admin := &model.Admin{ID: 1, Username: "superadmin", Email: "root@example.com", Role: model.RoleSuperAdmin, HashedPassword: mustHash(t, "super123")}

	t.Run("Should issue an admin token carrying the role", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("FindAdminByUsernameAndRole", mock.Anything, "superadmin", model.RoleSuperAdmin).Return(admin, nil)
		svc, issuer := newAuthService(users)

		resp, err := svc.AdminLogin(ctx, AdminLoginRequest{Username: "superadmin", Password: "super123", Role: model.RoleSuperAdmin})
		require.NoError(t, err)
		assert.Equal(t, model.IdentityAdmin, resp.User.Type)
		assert.Equal(t, model.RoleSuperAdmin, resp.User.Role)

		identity, err := issuer.Validate(resp.Token)
		require.NoError(t, err)
		assert.True(t, identity.(model.AdminIdentity).IsSuperAdmin())
	})

	t.Run("Should not match the account under a different role", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("FindAdminByUsernameAndRole", mock.Anything, "superadmin", "cse-admin").Return(nil, common.ErrNotFound)
		svc, _ := newAuthService(users)

		_, err := svc.AdminLogin(ctx, AdminLoginRequest{Username: "superadmin", Password: "super123", Role: "cse-admin"})
		assert.ErrorIs(t, err, common.ErrUnauthorized)
	})

	t.Run("Should require every field", func(t *testing.T) {
		svc, _ := newAuthService(new(mockUserRepo))
		_, err := svc.AdminLogin(ctx, AdminLoginRequest{Username: "superadmin", Password: "super123"})
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Equal(t, "All fields are required", common.PublicMessage(err))
	})
}
