package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "babelroom_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "babelroom_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "babelroom_ws_connections_active",
		Help: "Number of open room WebSocket connections",
	})

	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "babelroom_rooms_active",
		Help: "Number of rooms with at least one connection",
	})

	ConnectionsReplaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "babelroom_ws_connections_replaced_total",
		Help: "Connections evicted by a newer connection for the same user and room",
	})

	SlowConsumerDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "babelroom_slow_consumer_drops_total",
		Help: "Outbound frames dropped because a listener channel was full",
	})

	ChunkBufferDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "babelroom_chunk_buffer_drops_total",
		Help: "Input audio bytes dropped on chunk buffer overflow",
	})

	InboundFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "babelroom_inbound_frames_total",
		Help: "Inbound WebSocket frames by type",
	}, []string{"type"})

	SignalsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "babelroom_signals_forwarded_total",
		Help: "WebRTC signaling frames relayed between peers",
	}, []string{"type"})

	SignalsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "babelroom_signals_dropped_total",
		Help: "Signaling frames dropped because the target peer was absent",
	})

	PipelineCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "babelroom_pipeline_cycles_total",
		Help: "Stream processor cycles by outcome",
	}, []string{"outcome"})

	ASRRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "babelroom_asr_request_duration_seconds",
		Help:    "ASR transcription duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	MTRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "babelroom_mt_request_duration_seconds",
		Help:    "Machine translation duration",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})

	TTSRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "babelroom_tts_request_duration_seconds",
		Help:    "Voice synthesis duration",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
	})

	TranslationCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "babelroom_translation_cache_hits_total",
		Help: "Translation cache hits",
	})

	TranslationCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "babelroom_translation_cache_misses_total",
		Help: "Translation cache misses",
	})

	ModelLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "babelroom_model_loads_total",
		Help: "Lazy loader load attempts by kind and status",
	}, []string{"kind", "status"})

	ModelsReady = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "babelroom_models_ready",
		Help: "1 when the model kind is loaded and ready",
	}, []string{"kind"})
)
