package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Consumer metrics
	RowsConsumed       *prometheus.CounterVec
	OffsetCommits      *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec

	// Serialization metrics
	RowsSerialized    *prometheus.CounterVec
	RowsFailed        *prometheus.CounterVec
	SerializeDuration *prometheus.HistogramVec
	BufferSize        *prometheus.GaugeVec
	BufferRecordCount *prometheus.GaugeVec

	// Sink metrics
	BatchesUploaded *prometheus.CounterVec
	BatchSize       *prometheus.HistogramVec
	UploadDuration  *prometheus.HistogramVec
	SinkErrors      *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Consumer metrics
		RowsConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rows_consumed_total",
				Help: "Total number of row payloads consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		OffsetCommits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_offset_commit_total",
				Help: "Total number of offset commits",
			},
			[]string{"topic", "partition", "status"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		RebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_rebalance_duration_seconds",
				Help:    "Duration of consumer group rebalances",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),

		// Serialization metrics
		RowsSerialized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rows_serialized_total",
				Help: "Total number of rows serialized to CSV",
			},
			[]string{"topic"},
		),
		RowsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rows_failed_total",
				Help: "Total number of rows that failed processing, by stage",
			},
			[]string{"topic", "stage"},
		),
		SerializeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "serialize_duration_seconds",
				Help:    "Duration of row serialization operations",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
			},
			[]string{"topic"},
		),
		BufferSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "buffer_size_bytes",
				Help: "Current buffer size in bytes",
			},
			[]string{"topic", "partition"},
		),
		BufferRecordCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "buffer_record_count",
				Help: "Current number of lines in buffer",
			},
			[]string{"topic", "partition"},
		),

		// Sink metrics
		BatchesUploaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batches_uploaded_total",
				Help: "Total number of batches uploaded to the sink",
			},
			[]string{"backend", "status"},
		),
		BatchSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batch_size_bytes",
				Help:    "Size of uploaded batch payloads",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to ~256MB
			},
			[]string{"backend"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upload_duration_seconds",
				Help:    "Duration of batch upload operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		SinkErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_errors_total",
				Help: "Total number of sink errors",
			},
			[]string{"backend", "operation"},
		),
	}
}

// IncRowsConsumed increments the rows consumed counter.
func (m *Metrics) IncRowsConsumed(topic string, partition int32) {
	m.RowsConsumed.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}

// IncRebalances increments the rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// IncOffsetCommits increments the offset commits counter.
func (m *Metrics) IncOffsetCommits(topic string, partition int32, status string) {
	m.OffsetCommits.WithLabelValues(topic, fmt.Sprintf("%d", partition), status).Inc()
}

// ObserveRebalanceDuration observes rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// SetPartitionsAssigned sets the partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// IncRowsSerialized increments the rows serialized counter.
func (m *Metrics) IncRowsSerialized(topic string) {
	m.RowsSerialized.WithLabelValues(topic).Inc()
}

// IncRowsFailed increments the failed rows counter for a pipeline stage.
func (m *Metrics) IncRowsFailed(topic string, stage string) {
	m.RowsFailed.WithLabelValues(topic, stage).Inc()
}

// ObserveSerializeDuration observes the duration of one serialization.
func (m *Metrics) ObserveSerializeDuration(topic string, duration float64) {
	m.SerializeDuration.WithLabelValues(topic).Observe(duration)
}

// SetBufferStats sets the buffer gauges for a partition.
func (m *Metrics) SetBufferStats(topic string, partition int32, sizeBytes float64, recordCount float64) {
	p := fmt.Sprintf("%d", partition)
	m.BufferSize.WithLabelValues(topic, p).Set(sizeBytes)
	m.BufferRecordCount.WithLabelValues(topic, p).Set(recordCount)
}

// IncBatchesUploaded increments the batches uploaded counter.
func (m *Metrics) IncBatchesUploaded(backend string, status string) {
	m.BatchesUploaded.WithLabelValues(backend, status).Inc()
}

// ObserveBatchSize observes the size of an uploaded batch.
func (m *Metrics) ObserveBatchSize(backend string, size float64) {
	m.BatchSize.WithLabelValues(backend).Observe(size)
}

// ObserveUploadDuration observes the duration of a batch upload.
func (m *Metrics) ObserveUploadDuration(backend string, duration float64) {
	m.UploadDuration.WithLabelValues(backend).Observe(duration)
}

// IncSinkErrors increments the sink errors counter.
func (m *Metrics) IncSinkErrors(backend string, operation string) {
	m.SinkErrors.WithLabelValues(backend, operation).Inc()
}
