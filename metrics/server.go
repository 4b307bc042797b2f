package metrics

import (
	"expvar"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Expvar counters for the comment pipeline
	CommentsProcessedCount = expvar.NewInt("comments_processed_count")
	ClassifierCallCount    = expvar.NewInt("classifier_call_count")
	ClassifierErrorCount   = expvar.NewInt("classifier_error_count")
	CheapFilterSkipCount   = expvar.NewInt("cheap_filter_skip_count")
	CacheHitCount          = expvar.NewInt("cache_hit_count")
	RateLimitedCount       = expvar.NewInt("rate_limited_count")

	// Playback and player counters
	SceneSwitchCount       = expvar.NewInt("scene_switch_count")
	QueueDropCount         = expvar.NewInt("queue_drop_count")
	BackupTimerFiredCount  = expvar.NewInt("backup_timer_fired_count")
	PlayerRequestFailCount = expvar.NewInt("player_request_fail_count")

	// Chat ingress counters
	ChatConnectionCount = expvar.NewInt("chat_connection_count")
	ChatErrorCount      = expvar.NewInt("chat_error_count")

	// Prometheus metrics with labels
	ControlCommandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_command_total",
			Help: "Total number of operator control commands by action",
		},
		[]string{"action"},
	)

	ClassifierDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classifier_duration_seconds",
			Help:    "Duration of remote classifier calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

type Server struct {
	*http.Server
}

func SetupServer(addr string) *Server {

	// pprof is setup by importing the net/http/pprof package
	server := &http.Server{
		Addr:         addr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// setup expvar cache
	CommentsProcessedCount.Set(0)
	ClassifierCallCount.Set(0)
	ClassifierErrorCount.Set(0)
	CheapFilterSkipCount.Set(0)
	CacheHitCount.Set(0)
	RateLimitedCount.Set(0)
	SceneSwitchCount.Set(0)
	QueueDropCount.Set(0)
	BackupTimerFiredCount.Set(0)
	PlayerRequestFailCount.Set(0)
	ChatConnectionCount.Set(0)
	ChatErrorCount.Set(0)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewExpvarCollector(
			map[string]*prometheus.Desc{
				"comments_processed_count":  prometheus.NewDesc("comments_processed_count", "number of chat comments processed", nil, nil),
				"classifier_call_count":     prometheus.NewDesc("classifier_call_count", "number of remote classifier invocations", nil, nil),
				"classifier_error_count":    prometheus.NewDesc("classifier_error_count", "number of failed classifier invocations", nil, nil),
				"cheap_filter_skip_count":   prometheus.NewDesc("cheap_filter_skip_count", "number of comments rejected by the cheap filter", nil, nil),
				"cache_hit_count":           prometheus.NewDesc("cache_hit_count", "number of comment verdicts served from cache", nil, nil),
				"rate_limited_count":        prometheus.NewDesc("rate_limited_count", "number of product requests rejected by the rate governor", nil, nil),
				"scene_switch_count":        prometheus.NewDesc("scene_switch_count", "number of scene switches to a product view", nil, nil),
				"queue_drop_count":          prometheus.NewDesc("queue_drop_count", "number of duplicate product requests dropped", nil, nil),
				"backup_timer_fired_count":  prometheus.NewDesc("backup_timer_fired_count", "number of times the backup return timer fired", nil, nil),
				"player_request_fail_count": prometheus.NewDesc("player_request_fail_count", "number of failed player adapter requests", nil, nil),
				"chat_connection_count":     prometheus.NewDesc("chat_connection_count", "number of times the chat connection was established", nil, nil),
				"chat_error_count":          prometheus.NewDesc("chat_error_count", "number of chat connection failures", nil, nil),
			},
		),
		ControlCommandTotal,
		ClassifierDuration,
	)

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	http.HandleFunc("/healthz", healthzHandler)
	return &Server{server}
}

// healthzHandler returns a simple health check response
func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) Run() {
	_ = s.ListenAndServe()
}
