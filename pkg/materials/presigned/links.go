package presigned

import (
	"log/slog"

	"github.com/tendant/simple-portal/pkg/materials"
)

type signedLinks struct {
	signer *Signer
	prefix string
}

// Links returns a materials.LinkBuilder whose view and download links are
// signed by signer. With signing disabled it falls back to plain links.
func Links(signer *Signer, prefix string) materials.LinkBuilder {
	if signer == nil || !signer.IsEnabled() {
		return materials.PathLinks{Prefix: prefix}
	}
	return signedLinks{signer: signer, prefix: prefix}
}

func (l signedLinks) Links(category materials.Category, name string) (string, string) {
	return l.link(materials.ViewRoute, category, name), l.link(materials.DownloadRoute, category, name)
}

func (l signedLinks) link(route string, category materials.Category, name string) string {
	escaped := materials.ItemPath(route, category, name)
	q, err := l.signer.Sign("GET", route+string(category)+"/"+name, 0)
	if err != nil {
		// Unreachable with an enabled signer.
		slog.Error("failed to sign link", "category", category, "name", name, "err", err)
		return l.prefix + escaped
	}
	return l.prefix + escaped + "?" + q.Encode()
}
