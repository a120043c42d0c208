package materials

import (
	"io"
	"strings"
	"time"
)

// Category is the closed set of partitions materials are filed under.
type Category string

const (
	CategoryLessons     Category = "lessons"
	CategoryExercises   Category = "exercises"
	CategoryAttachments Category = "attachments"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryLessons, CategoryExercises, CategoryAttachments}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// Role is what the authentication collaborator hands back for a user.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole accepts the canonical role names and the legacy
// "professor"/"aluno" spellings.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "teacher", "professor":
		return RoleTeacher, nil
	case "student", "aluno":
		return RoleStudent, nil
	default:
		return "", ErrInvalidRole
	}
}

// MaterialItem is one stored file plus the references needed to fetch it.
type MaterialItem struct {
	Category    Category  `json:"category"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Locator     string    `json:"-"`
	ViewURL     string    `json:"url"`
	DownloadURL string    `json:"download_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Download is the result of resolving an item for retrieval. Exactly one of
// Body or RedirectURL is set. Callers must close Body.
type Download struct {
	Name        string
	ContentType string
	Size        int64
	ModTime     time.Time
	Body        io.ReadCloser
	RedirectURL string
}

// UploadRequest describes an incoming upload. Size is the declared length of
// Body, or -1 when unknown.
type UploadRequest struct {
	Category    string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
