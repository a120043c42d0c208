package materials

import (
	"context"
	"io"
)

// Store defines the interface for materials storage backends. Every
// operation is keyed by (category, name); see the package documentation
// for the contract each backend honors.
type Store interface {
	// Put streams r into the item, replacing any existing item with the same name
	Put(ctx context.Context, category Category, name, contentType string, r io.Reader) (*MaterialItem, error)

	// List returns the items of a category in backend enumeration order
	List(ctx context.Context, category Category) ([]*MaterialItem, error)

	// Rename moves an item to a new, unused name within the same category
	Rename(ctx context.Context, category Category, oldName, newName string) (*MaterialItem, error)

	// Delete removes an item
	Delete(ctx context.Context, category Category, name string) error

	// Open resolves an item for download
	Open(ctx context.Context, category Category, name string) (*Download, error)
}

// Authenticator checks credentials and reports the caller's role.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Role, error)
}

// EventSink defines the interface for material lifecycle notifications
type EventSink interface {
	// MaterialUploaded is fired after an upload is registered
	MaterialUploaded(ctx context.Context, item *MaterialItem) error

	// MaterialRenamed is fired after a rename
	MaterialRenamed(ctx context.Context, oldName string, item *MaterialItem) error

	// MaterialDeleted is fired after a delete
	MaterialDeleted(ctx context.Context, category Category, name string) error
}

// Service defines the policy layer the HTTP handlers talk to.
type Service interface {
	ValidateCategory(label string) (Category, error)
	CategoryLabel(category Category) string
	AcceptedContentTypes(category Category) []string
	MaxUploadSize() int64

	ReceiveUpload(ctx context.Context, req UploadRequest) (*MaterialItem, error)
	ListCategory(ctx context.Context, label string) ([]*MaterialItem, error)
	RenameItem(ctx context.Context, label, oldName, newName string) (*MaterialItem, error)
	DeleteItem(ctx context.Context, label, name string) error
	ResolveDownload(ctx context.Context, label, name string) (*Download, error)
}
