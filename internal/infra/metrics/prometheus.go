package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FrameExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cleanreel_frame_extractions_total",
		Help: "Total number of frame extractions, by status",
	}, []string{"status"})

	VideoGenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cleanreel_video_generations_total",
		Help: "Total number of video generation jobs, by status",
	}, []string{"status"})

	VideoGenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cleanreel_video_generation_duration_seconds",
		Help:    "Wall-clock duration of video generation jobs",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cleanreel_active_sessions",
		Help: "Number of sessions currently held in memory",
	})

	UploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cleanreel_upload_bytes_total",
		Help: "Total bytes of video accepted for analysis",
	})
)
