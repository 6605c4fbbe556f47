package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task outcome labels
const (
	statusCompleted = "completed"
	statusExpired   = "expired"
	statusFailed    = "failed"
)

// Metrics holds the pool's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	// tasksProcessed counts finished tasks by outcome: completed, expired or failed
	tasksProcessed *prometheus.CounterVec

	// taskDuration tracks wall time from dequeue to terminal notification
	taskDuration prometheus.Histogram

	// queueLatency tracks time spent waiting in the queue
	queueLatency prometheus.Histogram

	progressReports  *prometheus.CounterVec
	deletions        *prometheus.CounterVec
	sweptArtifacts   prometheus.Counter
	droppedCallbacks prometheus.Counter
}

// NewMetrics registers the collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		tasksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vidgrab_tasks_processed_total",
			Help: "The total number of processed tasks",
		}, []string{"status"}),
		taskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidgrab_task_duration_seconds",
			Help:    "Duration of task processing",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		queueLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidgrab_queue_latency_seconds",
			Help:    "Time spent in queue before processing",
			Buckets: prometheus.DefBuckets,
		}),
		progressReports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vidgrab_progress_reports_total",
			Help: "Progress notifications by result",
		}, []string{"result"}),
		deletions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vidgrab_artifact_deletions_total",
			Help: "Scheduled artifact deletions by result",
		}, []string{"result"}),
		sweptArtifacts: factory.NewCounter(prometheus.CounterOpts{
			Name: "vidgrab_swept_artifacts_total",
			Help: "Leaked artifacts removed by the janitor",
		}),
		droppedCallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "vidgrab_dropped_notifications_total",
			Help: "Notifications dropped because the event loop was stopped",
		}),
	}
}

// RegisterQueueDepth exposes the live queue and loop backlog as gauges
func (m *Metrics) RegisterQueueDepth(reg prometheus.Registerer, queue *TaskQueue, loop *EventLoop) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "vidgrab_queue_depth",
		Help: "Number of tasks waiting for a worker",
	}, func() float64 { return float64(queue.Len()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "vidgrab_event_loop_backlog",
		Help: "Number of callables waiting on the notification loop",
	}, func() float64 { return float64(loop.Len()) })
}

func (m *Metrics) taskFinished(status string, seconds float64) {
	if m == nil {
		return
	}
	m.tasksProcessed.WithLabelValues(status).Inc()
	m.taskDuration.Observe(seconds)
}

func (m *Metrics) taskDequeued(waitSeconds float64) {
	if m == nil {
		return
	}
	m.queueLatency.Observe(waitSeconds)
}

func (m *Metrics) progress(result string) {
	if m == nil {
		return
	}
	m.progressReports.WithLabelValues(result).Inc()
}

func (m *Metrics) deletion(result string) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues(result).Inc()
}

func (m *Metrics) swept(n int) {
	if m == nil {
		return
	}
	m.sweptArtifacts.Add(float64(n))
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.droppedCallbacks.Inc()
}
