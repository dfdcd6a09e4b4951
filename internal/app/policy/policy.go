// Package policy decides who may do what to notices. Ownership, not the
// section tag, is the access boundary: only the creating admin or the
// super-admin may mutate a notice.
package policy

import (
	"noticeboard/internal/common"
	"noticeboard/internal/domain/model"
)

type Operation string

const (
	ReadNotices    Operation = "read-notices"
	CreateNotice   Operation = "create-notice"
	UpdateNotice   Operation = "update-notice"
	DeleteNotice   Operation = "delete-notice"
	ViewStatistics Operation = "view-statistics"
	ListAdmins     Operation = "list-admins"
)

// CanPerform is a pure decision. target is only consulted for update and
// delete, where a nil target is always denied.
func CanPerform(identity model.Identity, op Operation, target *model.Notice) bool {
	if op == ReadNotices {
		return true
	}

	switch id := identity.(type) {
	case model.AdminIdentity:
		switch op {
		case CreateNotice, ViewStatistics:
			return true
		case UpdateNotice, DeleteNotice:
			if target == nil {
				return false
			}
			return id.IsSuperAdmin() || id.ID == target.PostedBy
		case ListAdmins:
			return id.IsSuperAdmin()
		}
		return false
	case model.StudentIdentity:
		return false
	default:
		return false
	}
}

// Authorize turns a denial into the error the boundary maps to a status:
// anonymous callers are unauthenticated, everyone else is forbidden.
func Authorize(identity model.Identity, op Operation, target *model.Notice) error {
	if CanPerform(identity, op, target) {
		return nil
	}
	if identity == nil {
		return common.NewError(common.ErrUnauthorized, "Authentication required")
	}
	switch op {
	case UpdateNotice:
		return common.NewError(common.ErrForbidden, "Unauthorized to edit this notice")
	case DeleteNotice:
		return common.NewError(common.ErrForbidden, "Unauthorized to delete this notice")
	case ListAdmins:
		return common.NewError(common.ErrForbidden, "Super admin access required")
	default:
		return common.NewError(common.ErrForbidden, "Admin access required")
	}
}
