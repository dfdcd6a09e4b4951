package model

import (
	"time"
)

const (
	RoleSuperAdmin = "super-admin"
)

// Student accounts are provisioned outside the service; only the password
// hash is ever rewritten (by noticectl reset-passwords).
type Student struct {
	ID             int64     `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"password" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"-"`
}

type Admin struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"password" json:"-"`
	Role           string    `db:"role" json:"role"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// IsSuperAdmin reports whether the role is the single full-access tier.
// Every other role is a section admin.
func IsSuperAdmin(role string) bool {
	return role == RoleSuperAdmin
}

// AdminSummary is the shape returned by the admin listing.
type AdminSummary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func (a Admin) Summary() AdminSummary {
	return AdminSummary{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: FormatTimestamp(a.CreatedAt),
	}
}
