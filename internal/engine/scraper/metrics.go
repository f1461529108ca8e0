package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sectorscan_provider_requests_total",
		Help: "Provider page requests by outcome (ok, http_error, status_error, transport_error)",
	}, []string{"outcome"})

	providerRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sectorscan_provider_request_duration_seconds",
		Help:    "Duration of a single provider page request",
		Buckets: prometheus.DefBuckets,
	})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sectorscan_batches_total",
		Help: "Batches executed by the scheduler",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sectorscan_batch_duration_seconds",
		Help:    "Wall time of a batch including the minimum duration floor",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})

	sectorsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sectorscan_sectors_processed_total",
		Help: "Sectors reconciled by action (save, split, save_dense)",
	}, []string{"action"})

	sectorFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sectorscan_sector_failures_total",
		Help: "Sectors dropped because the provider call failed",
	})

	apiCreditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sectorscan_api_credits_total",
		Help: "API credits consumed",
	})

	placesFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sectorscan_places_found_total",
		Help: "Places committed to the result set, duplicates included",
	})

	queueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sectorscan_queue_length",
		Help: "Sectors waiting in the work queue",
	})
)
