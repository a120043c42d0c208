package materials

import "context"

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) MaterialUploaded(ctx context.Context, item *MaterialItem) error {
	return nil
}

func (n *NoopEventSink) MaterialRenamed(ctx context.Context, oldName string, item *MaterialItem) error {
	return nil
}

func (n *NoopEventSink) MaterialDeleted(ctx context.Context, category Category, name string) error {
	return nil
}
