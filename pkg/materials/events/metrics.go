package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-portal/pkg/materials"
)

// Metrics counts lifecycle events per category.
type Metrics struct {
	events        *prometheus.CounterVec
	uploadedBytes *prometheus.CounterVec
}

// NewMetrics registers the portal counters with reg (the default registerer
// when nil). Registering twice reuses the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "material_events_total",
			Help:      "Material lifecycle events by category and action.",
		}, []string{"category", "action"}),
		uploadedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes of successfully stored uploads.",
		}, []string{"category"}),
	}

	var err error
	if m.events, err = register(reg, m.events); err != nil {
		return nil, err
	}
	if m.uploadedBytes, err = register(reg, m.uploadedBytes); err != nil {
		return nil, err
	}
	return m, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

func (m *Metrics) MaterialUploaded(ctx context.Context, item *materials.MaterialItem) error {
	m.events.WithLabelValues(string(item.Category), "upload").Inc()
	m.uploadedBytes.WithLabelValues(string(item.Category)).Add(float64(item.Size))
	return nil
}

func (m *Metrics) MaterialRenamed(ctx context.Context, oldName string, item *materials.MaterialItem) error {
	m.events.WithLabelValues(string(item.Category), "rename").Inc()
	return nil
}

func (m *Metrics) MaterialDeleted(ctx context.Context, category materials.Category, name string) error {
	m.events.WithLabelValues(string(category), "delete").Inc()
	return nil
}
