// Package events provides materials.EventSink implementations: structured
// logs, prometheus counters and a Kafka topic, plus a fan-out.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-portal/pkg/materials"
)

// Event types published for material lifecycle changes.
const (
	TypeUploaded = "material.uploaded"
	TypeRenamed  = "material.renamed"
	TypeDeleted  = "material.deleted"
)

// Event is the wire form of a lifecycle notification.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	OldName     string    `json:"old_name,omitempty"`
	Size        int64     `json:"size,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func newEvent(typ string, category materials.Category, name string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Category:   string(category),
		Name:       name,
		OccurredAt: time.Now().UTC(),
	}
}

func uploadedEvent(item *materials.MaterialItem) Event {
	e := newEvent(TypeUploaded, item.Category, item.Name)
	e.Size = item.Size
	e.ContentType = item.ContentType
	return e
}

func renamedEvent(oldName string, item *materials.MaterialItem) Event {
	e := newEvent(TypeRenamed, item.Category, item.Name)
	e.OldName = oldName
	e.Size = item.Size
	e.ContentType = item.ContentType
	return e
}

// Multi fans every event out to all sinks. Every sink is called even when
// an earlier one fails; the failures are joined.
type Multi []materials.EventSink

func (m Multi) MaterialUploaded(ctx context.Context, item *materials.MaterialItem) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.MaterialUploaded(ctx, item))
	}
	return errors.Join(errs...)
}

func (m Multi) MaterialRenamed(ctx context.Context, oldName string, item *materials.MaterialItem) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.MaterialRenamed(ctx, oldName, item))
	}
	return errors.Join(errs...)
}

func (m Multi) MaterialDeleted(ctx context.Context, category materials.Category, name string) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.MaterialDeleted(ctx, category, name))
	}
	return errors.Join(errs...)
}
