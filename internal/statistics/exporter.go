package statistics

import (
	"bytes"
	"fmt"

	"github.com/markusressel/hddfan/internal/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const (
	namespace = "hddfan"
)

// TextfileWriter renders the metrics of its collectors in the text exposition format into a file,
// e.g. for the node_exporter textfile collector.
type TextfileWriter struct {
	path     string
	registry *prometheus.Registry
}

func NewTextfileWriter(path string, collectors ...prometheus.Collector) (*TextfileWriter, error) {
	registry := prometheus.NewRegistry()
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("cannot register collector: %w", err)
		}
	}
	return &TextfileWriter{
		path:     path,
		registry: registry,
	}, nil
}

func (w *TextfileWriter) Path() string {
	return w.path
}

// Render gathers all metrics and returns them in the text exposition format
func (w *TextfileWriter) Render() ([]byte, error) {
	families, err := w.registry.Gather()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, family); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Write replaces the textfile with the current metrics in one step
func (w *TextfileWriter) Write() error {
	data, err := w.Render()
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(w.path, data)
}
