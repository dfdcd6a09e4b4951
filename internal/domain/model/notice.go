package model

import (
	"encoding/json"
	"time"
)

type Importance string
type FileType string

const (
	ImportanceNormal    Importance = "normal"
	ImportanceImportant Importance = "important"

	FileTypePDF   FileType = "pdf"
	FileTypeImage FileType = "image"

	StatusActive  = "active"
	StatusExpired = "expired"
	StatusAll     = "all"

	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

func (i Importance) Valid() bool {
	return i == ImportanceNormal || i == ImportanceImportant
}

type Notice struct {
	ID               int64        `db:"id" json:"id"`
	Title            string       `db:"title" json:"title"`
	Description      string       `db:"description" json:"description"`
	Section          string       `db:"section" json:"section"`
	Importance       Importance   `db:"importance" json:"importance"`
	DatePosted       time.Time    `db:"date_posted" json:"-"`
	ExpiryDate       time.Time    `db:"expiry_date" json:"-"`
	PostedBy         int64        `db:"posted_by" json:"posted_by"`
	PostedByUsername *string      `db:"posted_by_username" json:"posted_by_username"`
	CreatedAt        time.Time    `db:"created_at" json:"-"`
	UpdatedAt        time.Time    `db:"updated_at" json:"-"`
	Attachments      []Attachment `db:"-" json:"attachments"`
}

// IsActive reports whether the notice is still valid on the given day.
// Active/expired is always derived, never stored.
func (n Notice) IsActive(today time.Time) bool {
	return !DateOf(n.ExpiryDate).Before(DateOf(today))
}

func (n Notice) MarshalJSON() ([]byte, error) {
	type alias Notice
	attachments := n.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}
	return json.Marshal(struct {
		alias
		DatePosted  string       `json:"date_posted"`
		ExpiryDate  string       `json:"expiry_date"`
		CreatedAt   string       `json:"created_at"`
		UpdatedAt   string       `json:"updated_at"`
		Attachments []Attachment `json:"attachments"`
	}{
		alias:       alias(n),
		DatePosted:  FormatDate(n.DatePosted),
		ExpiryDate:  FormatDate(n.ExpiryDate),
		CreatedAt:   FormatTimestamp(n.CreatedAt),
		UpdatedAt:   FormatTimestamp(n.UpdatedAt),
		Attachments: attachments,
	})
}

type Attachment struct {
	ID         int64     `db:"id" json:"id"`
	NoticeID   int64     `db:"notice_id" json:"notice_id"`
	Filename   string    `db:"filename" json:"filename"`
	FileType   FileType  `db:"file_type" json:"file_type"`
	UploadedAt time.Time `db:"uploaded_at" json:"-"`
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	type alias Attachment
	return json.Marshal(struct {
		alias
		UploadedAt string `json:"uploaded_at"`
	}{alias: alias(a), UploadedAt: FormatTimestamp(a.UploadedAt)})
}

// NoticeFilter is the structured listing filter. The repository turns it into
// a parameterized query; nothing here is ever spliced into SQL text.
type NoticeFilter struct {
	Section    string
	Importance string
	Status     string // active (default), expired, anything else = all
	Search     string
	Today      time.Time
	PostedBy   *int64
}

// NoticeUpdate carries a partial update. Nil fields are left untouched.
type NoticeUpdate struct {
	Title       *string
	Description *string
	Section     *string
	Importance  *Importance
	ExpiryDate  *time.Time
}

func (u NoticeUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Section == nil && u.Importance == nil && u.ExpiryDate == nil
}

type NoticeStats struct {
	Total     int64 `db:"total"`
	Active    int64 `db:"active"`
	Important int64 `db:"important"`
	Archived  int64 `db:"archived"`
}

type SectionCount struct {
	Section string `db:"section" json:"section"`
	Count   int64  `db:"count" json:"count"`
}

// Statistics is the role-scoped dashboard payload. Section admins get the
// archived count; the super-admin gets admin totals and the section breakdown.
type Statistics struct {
	TotalNotices     int64          `json:"total_notices"`
	ActiveNotices    int64          `json:"active_notices"`
	ImportantNotices int64          `json:"important_notices"`
	ArchivedNotices  *int64         `json:"archived_notices,omitempty"`
	TotalAdmins      *int64         `json:"total_admins,omitempty"`
	BySection        []SectionCount `json:"by_section,omitempty"`
}

func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}
