package materials

import (
	"mime"
	"sort"
	"strings"
)

// MIME types referenced by the default policy table.
const (
	MimePDF   = "application/pdf"
	MimeDOC   = "application/msword"
	MimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePPT   = "application/vnd.ms-powerpoint"
	MimePPTX  = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeHTML  = "text/html"
	MimeCSV   = "text/csv"
	MimeText  = "text/plain"
	MimeMP3   = "audio/mpeg"
	MimeMP4   = "video/mp4"
	MimeJPEG  = "image/jpeg"
	MimePNG   = "image/png"
	MimeZip   = "application/zip"
	MimeOctet = "application/octet-stream"
)

// Policy is the upload policy for one category. Label is the display
// name; Aliases are extra labels accepted in URLs, such as the ones the
// original front end used.
type Policy struct {
	Label        string
	Aliases      []string
	ContentTypes []string
}

// Matches reports whether label names this policy's category, ignoring
// case and surrounding space.
func (p Policy) Matches(category Category, label string) bool {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return false
	}
	if l == string(category) || l == strings.ToLower(p.Label) {
		return true
	}
	for _, alias := range p.Aliases {
		if l == strings.ToLower(alias) {
			return true
		}
	}
	return false
}

// Accepts reports whether contentType is on the allow-list. Parameters and
// case are ignored.
func (p Policy) Accepts(contentType string) bool {
	mt := NormalizeContentType(contentType)
	if mt == "" {
		return false
	}
	for _, allowed := range p.ContentTypes {
		if allowed == mt {
			return true
		}
	}
	return false
}

// Policies maps each category to its policy.
type Policies map[Category]Policy

// Resolve finds the category a label refers to.
func (ps Policies) Resolve(label string) (Category, error) {
	for _, c := range Categories {
		if p, ok := ps[c]; ok && p.Matches(c, label) {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}

var documentTypes = []string{MimePDF, MimeDOC, MimeDOCX, MimePPT, MimePPTX}

// DefaultPolicies returns the stock table: narrow document formats for
// lessons, a broad set for exercises, media plus slides for attachments.
func DefaultPolicies() Policies {
	return Policies{
		CategoryLessons: {
			Label:        "Lessons",
			Aliases:      []string{"aulas"},
			ContentTypes: append([]string(nil), documentTypes...),
		},
		CategoryExercises: {
			Label:   "Exercises",
			Aliases: []string{"exercicios", "exercícios"},
			ContentTypes: append(append([]string(nil), documentTypes...),
				MimeHTML, MimeMP3, MimeMP4, MimeXLSX, MimeCSV, MimeText, MimeJPEG, MimePNG, MimeZip),
		},
		CategoryAttachments: {
			Label:        "Attachments",
			Aliases:      []string{"anexos"},
			ContentTypes: []string{MimePDF, MimePPTX, MimeMP3, MimeMP4, MimeJPEG, MimePNG},
		},
	}
}

// NormalizeContentType strips parameters and lower-cases a MIME type.
func NormalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return strings.ToLower(mt)
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// ContentTypeByName guesses a MIME type from a file extension, falling back
// to application/octet-stream.
func ContentTypeByName(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return MimeOctet
	}
	if mt := NormalizeContentType(mime.TypeByExtension(strings.ToLower(name[i:]))); mt != "" {
		return mt
	}
	return MimeOctet
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
