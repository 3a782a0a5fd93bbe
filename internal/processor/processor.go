// Package processor connects the Kafka ingress to the CSV sink.
//
// Each consumed payload is decoded against the configured row type,
// validated, serialized into one CSV line, and appended to a
// per-partition buffer. When the rotation policy fires, the buffer is
// drained and the payload is uploaded under a Hive-style partitioned
// path. Offsets are committed only after the batch that contains them
// has been uploaded; rows that fail deterministically (decode, validate,
// serialize) are published to the DLQ and their offsets commit with the
// partition's next flush, or immediately when nothing is buffered.
package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/streamhaus/csvrowstore/internal/buffer"
	"github.com/streamhaus/csvrowstore/internal/ingest"
	"github.com/streamhaus/csvrowstore/internal/validator"
	"github.com/streamhaus/csvrowstore/pkg/consumer"
	"github.com/streamhaus/csvrowstore/pkg/record"
	"github.com/streamhaus/csvrowstore/pkg/serializer"
	"github.com/streamhaus/csvrowstore/pkg/sink"
)

// MetricsCollector defines metrics operations for row processing.
type MetricsCollector interface {
	IncRowsSerialized(topic string)
	IncRowsFailed(topic string, stage string)
	ObserveSerializeDuration(topic string, duration float64)
	SetBufferStats(topic string, partition int32, sizeBytes float64, recordCount float64)
}

// Config contains processing options.
type Config struct {
	// IncludeHeader prepends the rendered column names as the first line
	// of every uploaded batch.
	IncludeHeader bool

	// FlushInterval bounds how long a partly filled buffer waits before
	// an age-based flush check. Zero disables the periodic check.
	FlushInterval time.Duration
}

// Options collects the pipeline components a Processor wires together.
type Options struct {
	Decoder    *ingest.Decoder
	Validator  *validator.RowValidator
	Serializer serializer.Serializer
	Buffers    *buffer.Manager
	Policy     sink.RotationPolicy
	Router     sink.Router
	Uploader   sink.Uploader
	DLQ        consumer.DLQPublisher
	Config     Config
	Logger     *slog.Logger
	Metrics    MetricsCollector
}

// batchState tracks commit and event-time bookkeeping for the batch
// currently accumulating in a partition's buffer.
type batchState struct {
	commit    func() error
	offset    int64
	eventTime time.Time
}

// Processor is the single-writer pipeline stage between the consumer
// and the sink. Process and the flush methods must be called from one
// goroutine; Run provides that loop.
type Processor struct {
	decoder    *ingest.Decoder
	validator  *validator.RowValidator
	serializer serializer.Serializer
	buffers    *buffer.Manager
	policy     sink.RotationPolicy
	router     sink.Router
	uploader   sink.Uploader
	dlq        consumer.DLQPublisher
	config     Config
	logger     *slog.Logger
	metrics    MetricsCollector

	header  []byte
	batches map[record.PartitionID]*batchState
}

// New creates a processor and opens its serializer. When IncludeHeader
// is set the serializer must also render header lines.
func New(ctx context.Context, opts Options) (*Processor, error) {
	if err := opts.Serializer.Open(ctx); err != nil {
		return nil, err
	}

	var header []byte
	if opts.Config.IncludeHeader {
		hw, ok := opts.Serializer.(serializer.HeaderWriter)
		if !ok {
			opts.Logger.Warn("serializer does not render headers, include_header ignored")
		} else {
			h, err := hw.Header()
			if err != nil {
				return nil, err
			}
			header = h
		}
	}

	return &Processor{
		decoder:    opts.Decoder,
		validator:  opts.Validator,
		serializer: opts.Serializer,
		buffers:    opts.Buffers,
		policy:     opts.Policy,
		router:     opts.Router,
		uploader:   opts.Uploader,
		dlq:        opts.DLQ,
		config:     opts.Config,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		header:     header,
		batches:    make(map[record.PartitionID]*batchState),
	}, nil
}

// Process runs one consumed row through decode, validate, serialize and
// buffer. A full or rotation-ready buffer is flushed before returning.
// Deterministic row failures are routed to the DLQ and do not surface as
// errors; a flush failure does, leaving its offsets uncommitted.
func (p *Processor) Process(ctx context.Context, row *record.ConsumedRow) error {
	partitionID := record.PartitionID{
		Topic:     row.Metadata.Topic,
		Partition: row.Metadata.Partition,
	}

	decoded, err := p.decoder.Decode(row.Payload)
	if err != nil {
		p.handleRowFailure(ctx, row, "decode", err)
		return nil
	}

	if err := p.validator.Validate(decoded); err != nil {
		p.handleRowFailure(ctx, row, "validate", err)
		return nil
	}

	start := time.Now()
	line, err := p.serializer.Serialize(decoded)
	if err != nil {
		p.handleRowFailure(ctx, row, "serialize", err)
		return nil
	}
	if p.metrics != nil {
		p.metrics.ObserveSerializeDuration(partitionID.Topic, time.Since(start).Seconds())
		p.metrics.IncRowsSerialized(partitionID.Topic)
	}

	buf := p.buffers.GetOrCreate(partitionID)

	state := p.batches[partitionID]
	if state == nil {
		state = &batchState{}
		p.batches[partitionID] = state
	}
	if buf.IsEmpty() {
		// Batches are routed by the event time of their first row.
		state.eventTime = row.Metadata.Timestamp
		if state.eventTime.IsZero() {
			state.eventTime = time.Now()
		}
	}

	if err := buf.Append(line); err != nil {
		// Buffer at capacity: flush the current batch, then retry once.
		if flushErr := p.flushPartition(ctx, partitionID); flushErr != nil {
			return flushErr
		}
		state.eventTime = row.Metadata.Timestamp
		if state.eventTime.IsZero() {
			state.eventTime = time.Now()
		}
		if err := buf.Append(line); err != nil {
			p.handleRowFailure(ctx, row, "buffer", err)
			return nil
		}
	}

	state.commit = row.CommitFunc
	state.offset = row.Metadata.Offset

	stats := buf.Stats()
	if p.metrics != nil {
		p.metrics.SetBufferStats(partitionID.Topic, partitionID.Partition,
			float64(stats.SizeBytes), float64(stats.RecordCount))
	}

	if p.policy.ShouldRotate(stats) {
		return p.flushPartition(ctx, partitionID)
	}
	return nil
}

// FlushAll drains and uploads every non-empty partition buffer. Used on
// shutdown and by the periodic age check. The first error is returned
// after all partitions have been attempted.
func (p *Processor) FlushAll(ctx context.Context) error {
	var firstErr error
	for _, partitionID := range p.buffers.Partitions() {
		if err := p.flushPartition(ctx, partitionID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// flushAged flushes only the partitions whose batch age satisfies the
// rotation policy.
func (p *Processor) flushAged(ctx context.Context) {
	for _, partitionID := range p.buffers.Partitions() {
		buf := p.buffers.GetOrCreate(partitionID)
		if buf.IsEmpty() {
			continue
		}
		if !p.policy.ShouldRotate(buf.Stats()) {
			continue
		}
		if err := p.flushPartition(ctx, partitionID); err != nil {
			p.logger.Error("periodic flush failed",
				"topic", partitionID.Topic,
				"partition", partitionID.Partition,
				"error", err,
			)
		}
	}
}

func (p *Processor) flushPartition(ctx context.Context, partitionID record.PartitionID) error {
	buf := p.buffers.GetOrCreate(partitionID)
	if buf.IsEmpty() {
		return nil
	}

	payload, stats := buf.Drain()
	if len(p.header) > 0 {
		headed := make([]byte, 0, len(p.header)+1+len(payload))
		headed = append(headed, p.header...)
		headed = append(headed, '\n')
		headed = append(headed, payload...)
		payload = headed
	}

	state := p.batches[partitionID]
	eventTime := time.Now()
	if state != nil && !state.eventTime.IsZero() {
		eventTime = state.eventTime
	}
	path := p.router.Route(partitionID, eventTime.Unix())

	bytesWritten, err := p.uploader.Upload(ctx, payload, path)
	if err != nil {
		// Offsets stay uncommitted so the batch is redelivered after a
		// restart or rebalance.
		p.logger.Error("failed to upload batch",
			"topic", partitionID.Topic,
			"partition", partitionID.Partition,
			"records", stats.RecordCount,
			"error", err,
		)
		return err
	}

	p.logger.Info("uploaded batch",
		"topic", partitionID.Topic,
		"partition", partitionID.Partition,
		"records", stats.RecordCount,
		"bytes", bytesWritten,
		"path", path,
	)

	if p.metrics != nil {
		p.metrics.SetBufferStats(partitionID.Topic, partitionID.Partition, 0, 0)
	}

	if state != nil && state.commit != nil {
		if err := state.commit(); err != nil {
			p.logger.Error("failed to commit offset",
				"topic", partitionID.Topic,
				"partition", partitionID.Partition,
				"offset", state.offset,
				"error", err,
			)
		}
		state.commit = nil
	}
	return nil
}

// handleRowFailure publishes a failed row to the DLQ. Its offset is
// committed immediately only when the partition has nothing buffered;
// otherwise the commit rides with the partition's next flush, because
// offset commits are cumulative and marking the failed row would
// implicitly commit every earlier buffered, not-yet-uploaded row.
func (p *Processor) handleRowFailure(ctx context.Context, row *record.ConsumedRow, stage string, cause error) {
	p.logger.Warn("row failed processing",
		"stage", stage,
		"topic", row.Metadata.Topic,
		"partition", row.Metadata.Partition,
		"offset", row.Metadata.Offset,
		"error", cause,
	)

	if p.metrics != nil {
		p.metrics.IncRowsFailed(row.Metadata.Topic, stage)
	}

	if p.dlq != nil {
		if err := p.dlq.Publish(ctx, row, stage+": "+cause.Error()); err != nil {
			p.logger.Error("failed to publish to DLQ",
				"topic", row.Metadata.Topic,
				"offset", row.Metadata.Offset,
				"error", err,
			)
		}
	}

	if row.CommitFunc == nil {
		return
	}

	partitionID := record.PartitionID{
		Topic:     row.Metadata.Topic,
		Partition: row.Metadata.Partition,
	}
	if p.buffers.GetOrCreate(partitionID).IsEmpty() {
		_ = row.CommitFunc()
		return
	}

	state := p.batches[partitionID]
	if state == nil {
		state = &batchState{}
		p.batches[partitionID] = state
	}
	state.commit = row.CommitFunc
	state.offset = row.Metadata.Offset
}

// Run consumes rows and errors until the context is cancelled or the
// row channel closes, then flushes the remaining buffers with a
// detached context so in-flight batches still land.
func (p *Processor) Run(ctx context.Context, rows <-chan *record.ConsumedRow, errs <-chan error) error {
	var ticker *time.Ticker
	var tick <-chan time.Time
	if p.config.FlushInterval > 0 {
		ticker = time.NewTicker(p.config.FlushInterval)
		tick = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("context cancelled, stopping processing")
			return p.finalFlush()
		case err := <-errs:
			if err != nil {
				p.logger.Error("consumer error", "error", err)
			}
		case <-tick:
			p.flushAged(ctx)
		case row, ok := <-rows:
			if !ok {
				p.logger.Info("row channel closed")
				return p.finalFlush()
			}
			if err := p.Process(ctx, row); err != nil {
				p.logger.Error("processing error",
					"topic", row.Metadata.Topic,
					"partition", row.Metadata.Partition,
					"error", err,
				)
			}
		}
	}
}

func (p *Processor) finalFlush() error {
	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return p.FlushAll(flushCtx)
}
