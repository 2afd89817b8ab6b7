package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName identifies this instrumentation scope.
const meterName = "github.com/thebtf/notemap/internal/pipeline"

// pipelineMetrics wraps the OTel instruments recorded per run. All
// instruments degrade to no-ops when no meter provider is installed.
type pipelineMetrics struct {
	runs        metric.Int64Counter
	notes       metric.Int64Counter
	reassigned  metric.Int64Counter
	clusterHist metric.Int64Histogram
}

func newPipelineMetrics() *pipelineMetrics {
	meter := otel.Meter(meterName)

	runs, _ := meter.Int64Counter("notemap.clustering.runs",
		metric.WithDescription("Clustering runs by mode"))
	notes, _ := meter.Int64Counter("notemap.clustering.notes",
		metric.WithDescription("Notes processed by clustering runs"))
	reassigned, _ := meter.Int64Counter("notemap.clustering.reassigned",
		metric.WithDescription("Noise notes reattached to clusters"))
	clusterHist, _ := meter.Int64Histogram("notemap.clustering.cluster_count",
		metric.WithDescription("Clusters produced per run"))

	return &pipelineMetrics{
		runs:        runs,
		notes:       notes,
		reassigned:  reassigned,
		clusterHist: clusterHist,
	}
}

func (m *pipelineMetrics) recordRun(ctx context.Context, mode string, stats runStatsView) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.runs.Add(ctx, 1, attrs)
	m.notes.Add(ctx, int64(stats.totalNotes), attrs)
	m.reassigned.Add(ctx, int64(stats.reassigned), attrs)
	m.clusterHist.Record(ctx, int64(stats.clusterCount), attrs)
}

type runStatsView struct {
	totalNotes   int
	clusterCount int
	reassigned   int
}
