package materials

import (
	"mime"
	"net/url"
)

// Route prefixes under which the portal serves bytes for backends that have
// no public URLs of their own.
const (
	ViewRoute     = "/files/"
	DownloadRoute = "/download/"
)

// LinkBuilder produces view and download links for locally served items.
type LinkBuilder interface {
	Links(category Category, name string) (view, download string)
}

// PathLinks builds plain links under Prefix (for example an external base
// URL, or empty for host-relative links).
type PathLinks struct {
	Prefix string
}

func (p PathLinks) Links(category Category, name string) (string, string) {
	return p.Prefix + ItemPath(ViewRoute, category, name), p.Prefix + ItemPath(DownloadRoute, category, name)
}

// ItemPath joins a route prefix, category and escaped name.
func ItemPath(route string, category Category, name string) string {
	return route + string(category) + "/" + url.PathEscape(name)
}

// AttachmentDisposition is the Content-Disposition value that makes browsers
// save the item under its material name.
func AttachmentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// InlineDisposition is the Content-Disposition value for in-browser viewing.
func InlineDisposition(name string) string {
	if v := mime.FormatMediaType("inline", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "inline"
}
