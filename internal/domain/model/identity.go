package model

type IdentityType string

const (
	IdentityStudent IdentityType = "student"
	IdentityAdmin   IdentityType = "admin"
)

// Identity is the authenticated caller decoded from a session token. It is a
// closed union: the only implementations are StudentIdentity and
// AdminIdentity. A nil Identity means an anonymous caller.
type Identity interface {
	Type() IdentityType
	identity()
}

type StudentIdentity struct {
	ID        int64  `json:"id"`
	StudentID string `json:"student_id"`
}

func (StudentIdentity) Type() IdentityType { return IdentityStudent }
func (StudentIdentity) identity()          {}

type AdminIdentity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (AdminIdentity) Type() IdentityType { return IdentityAdmin }
func (AdminIdentity) identity()          {}

func (a AdminIdentity) IsSuperAdmin() bool { return IsSuperAdmin(a.Role) }

// LoginUser is the user object returned alongside a freshly issued token.
type LoginUser struct {
	ID        int64        `json:"id"`
	Type      IdentityType `json:"type"`
	StudentID string       `json:"student_id,omitempty"`
	Name      string       `json:"name,omitempty"`
	Username  string       `json:"username,omitempty"`
	Role      string       `json:"role,omitempty"`
	Email     string       `json:"email"`
}
