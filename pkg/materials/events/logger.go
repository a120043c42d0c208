package events

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-portal/pkg/materials"
)

// Logger records every event as a structured log line.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a log sink; a nil logger uses slog.Default.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (l *Logger) MaterialUploaded(ctx context.Context, item *materials.MaterialItem) error {
	l.logger.InfoContext(ctx, "material uploaded",
		"category", item.Category, "name", item.Name, "size", item.Size, "content_type", item.ContentType)
	return nil
}

func (l *Logger) MaterialRenamed(ctx context.Context, oldName string, item *materials.MaterialItem) error {
	l.logger.InfoContext(ctx, "material renamed", "category", item.Category, "old_name", oldName, "name", item.Name)
	return nil
}

func (l *Logger) MaterialDeleted(ctx context.Context, category materials.Category, name string) error {
	l.logger.InfoContext(ctx, "material deleted", "category", category, "name", name)
	return nil
}
