package service

import (
	"context"
	"errors"
	"fmt"

	"noticeboard/internal/common"
	"noticeboard/internal/domain/model"
	"noticeboard/internal/domain/repository"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
)

// PasswordVerifier is the opaque credential check; it never fails, it only
// says yes or no.
type PasswordVerifier interface {
	Verify(plaintext, storedHash string) bool
}

type TokenIssuer interface {
	Issue(identity model.Identity) (string, error)
}

var errInvalidCredentials = common.NewError(common.ErrUnauthorized, "Invalid credentials")

type AuthService struct {
	userRepo repository.UserRepository
	verifier PasswordVerifier
	tokens   TokenIssuer
	validate *validator.Validate
	logger   *charmlog.Logger
}

func NewAuthService(userRepo repository.UserRepository, verifier PasswordVerifier, tokens TokenIssuer, logger *charmlog.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		verifier: verifier,
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger,
	}
}

type StudentLoginRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

type AuthResponse struct {
	Success bool            `json:"success"`
	Token   string          `json:"token"`
	User    model.LoginUser `json:"user"`
}

func (s *AuthService) StudentLogin(ctx context.Context, req StudentLoginRequest) (*AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, common.NewError(common.ErrValidation, "Student ID and password are required")
	}

	student, err := s.userRepo.FindStudentByStudentID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		s.logger.Error("student lookup failed", "student_id", req.StudentID, "err", err)
		return nil, fmt.Errorf("AuthService.StudentLogin: %w", err)
	}
	if !s.verifier.Verify(req.Password, student.HashedPassword) {
		return nil, errInvalidCredentials
	}

	token, err := s.tokens.Issue(model.StudentIdentity{ID: student.ID, StudentID: student.StudentID})
	if err != nil {
		return nil, fmt.Errorf("AuthService.StudentLogin: failed to issue token: %w", err)
	}
	return &AuthResponse{
		Success: true,
		Token:   token,
		User: model.LoginUser{
			ID:        student.ID,
			Type:      model.IdentityStudent,
			StudentID: student.StudentID,
			Name:      student.Name,
			Email:     student.Email,
		},
	}, nil
}

// AdminLogin matches on username and role together: the same username under
// a different role is a different account.
func (s *AuthService) AdminLogin(ctx context.Context, req AdminLoginRequest) (*AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, common.NewError(common.ErrValidation, "All fields are required")
	}

	admin, err := s.userRepo.FindAdminByUsernameAndRole(ctx, req.Username, req.Role)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		s.logger.Error("admin lookup failed", "username", req.Username, "err", err)
		return nil, fmt.Errorf("AuthService.AdminLogin: %w", err)
	}
	if !s.verifier.Verify(req.Password, admin.HashedPassword) {
		return nil, errInvalidCredentials
	}

	token, err := s.tokens.Issue(model.AdminIdentity{ID: admin.ID, Username: admin.Username, Role: admin.Role})
	if err != nil {
		return nil, fmt.Errorf("AuthService.AdminLogin: failed to issue token: %w", err)
	}
	return &AuthResponse{
		Success: true,
		Token:   token,
		User: model.LoginUser{
			ID:       admin.ID,
			Type:     model.IdentityAdmin,
			Username: admin.Username,
			Role:     admin.Role,
			Email:    admin.Email,
		},
	}, nil
}
