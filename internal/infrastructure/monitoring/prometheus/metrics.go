package prometheus

import (
	"time"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/export"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// Runs
	RunsTotal                CounterVec
	RunDuration              HistogramVec
	SkippedComputationsTotal CounterVec
	PendingJobs              GaugeVec
	PollsTotal               CounterVec

	// Exports
	ExportsTotal   CounterVec
	ExportBytes    HistogramVec
	ExportDuration HistogramVec

	// Deferred work items, as seen by workers
	JobsProcessedTotal CounterVec
	JobDuration        HistogramVec

	ErrorsTotal CounterVec
}

var (
	runBuckets    = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600}
	exportBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10}
	sizeBuckets   = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576}
)

// NewAppMetrics registers every application metric on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	return &AppMetrics{
		RunsTotal: collector.RegisterCounter("runs_total",
			"Runs that reached a terminal status", "status"),
		RunDuration: collector.RegisterHistogram("run_duration_seconds",
			"Wall time from start to terminal status", runBuckets, "status"),
		SkippedComputationsTotal: collector.RegisterCounter("skipped_computations_total",
			"Per-landscape computations skipped for a recoverable reason", "landscape_key", "code"),
		PendingJobs: collector.RegisterGauge("pending_jobs",
			"Deferred jobs still pending at the last poll"),
		PollsTotal: collector.RegisterCounter("polls_total",
			"Status polls of deferred jobs"),

		ExportsTotal: collector.RegisterCounter("exports_total",
			"Export attempts by write mode and outcome", "mode", "outcome"),
		ExportBytes: collector.RegisterHistogram("export_bytes",
			"Size of written export documents", sizeBuckets, "mode"),
		ExportDuration: collector.RegisterHistogram("export_duration_seconds",
			"Export latency", exportBuckets, "mode"),

		JobsProcessedTotal: collector.RegisterCounter("jobs_processed_total",
			"Work items executed by this process", "kind", "state"),
		JobDuration: collector.RegisterHistogram("job_duration_seconds",
			"Work item execution time", runBuckets, "kind"),

		ErrorsTotal: collector.RegisterCounter("errors_total",
			"Errors by component and code", "component", "code"),
	}
}

// RecordRun implements job.Recorder.
func (m *AppMetrics) RecordRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordSkippedComputation implements job.Recorder.
func (m *AppMetrics) RecordSkippedComputation(key, code string) {
	m.SkippedComputationsTotal.WithLabelValues(key, code).Inc()
}

// RecordPoll implements job.Recorder.
func (m *AppMetrics) RecordPoll(pending int) {
	m.PollsTotal.WithLabelValues().Inc()
	m.PendingJobs.WithLabelValues().Set(float64(pending))
}

// RecordExport implements export.Recorder. Outcome is one of "written",
// "skipped" or "failed".
func (m *AppMetrics) RecordExport(mode string, skipped bool, err error, bytes int, duration time.Duration) {
	outcome := "written"
	switch {
	case err != nil:
		outcome = "failed"
		m.RecordError("export", err)
	case skipped:
		outcome = "skipped"
	}
	m.ExportsTotal.WithLabelValues(mode, outcome).Inc()
	m.ExportDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if outcome == "written" {
		m.ExportBytes.WithLabelValues(mode).Observe(float64(bytes))
	}
}

// RecordJob counts a work item a worker executed and its final state.
func (m *AppMetrics) RecordJob(kind, state string, duration time.Duration) {
	m.JobsProcessedTotal.WithLabelValues(kind, state).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordError counts err under its application error code.
func (m *AppMetrics) RecordError(component string, err error) {
	if err == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, string(errors.GetCode(err))).Inc()
}

var (
	_ job.Recorder    = (*AppMetrics)(nil)
	_ export.Recorder = (*AppMetrics)(nil)
)

//Personal.AI order the ending
