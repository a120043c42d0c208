package materials

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the longest name accepted, in bytes. It matches the
// common filesystem limit for a single path component.
const MaxNameLength = 255

// ValidateName checks that name can be used verbatim as a single path
// segment inside a category: non-empty, no separators, no traversal
// segments, no control characters, and no leading dot (dot-prefixed entries
// are reserved for backend staging files).
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return ErrInvalidName
	}
	if !utf8.ValidString(name) {
		return ErrInvalidName
	}
	if strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return ErrInvalidName
		}
	}
	return nil
}

// ObjectKey joins a category and name into the slash-separated key used by
// the remote backends, under an optional prefix.
func ObjectKey(prefix string, category Category, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return string(category) + "/" + name
	}
	return prefix + "/" + string(category) + "/" + name
}

// CategoryPrefix is the key prefix under which a category's objects live.
func CategoryPrefix(prefix string, category Category) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return string(category) + "/"
	}
	return prefix + "/" + string(category) + "/"
}
