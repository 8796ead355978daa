package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/common/expfmt"
)

// Shutdown closes every handle, then the event stream. It reports all
// failures rather than stopping at the first.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error

	if m.registry != nil {
		if err := m.registry.CloseAll(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := m.emitter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
	}
	if m.eventsProvider != nil {
		m.logger.Debug("Closing event stream")
		if err := m.eventsProvider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event stream: %w", err))
		}
		m.eventsProvider = nil
	}
	m.emitter = nil

	return errors.Join(errs...)
}

// WriteMetrics writes the gathered metrics in the text exposition format.
// It writes nothing when metrics are disabled.
func (m *Manager) WriteMetrics(w io.Writer) error {
	if m.promRegistry == nil {
		return nil
	}
	families, err := m.promRegistry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
