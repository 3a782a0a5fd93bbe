package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/streamhaus/csvrowstore/internal/buffer"
	"github.com/streamhaus/csvrowstore/internal/csv"
	"github.com/streamhaus/csvrowstore/internal/ingest"
	"github.com/streamhaus/csvrowstore/internal/sink"
	"github.com/streamhaus/csvrowstore/internal/validator"
	"github.com/streamhaus/csvrowstore/pkg/record"
	"github.com/streamhaus/csvrowstore/pkg/rowtype"
)

type stubUploader struct {
	payloads [][]byte
	paths    []string
	err      error
}

func (u *stubUploader) Upload(ctx context.Context, payload []byte, path string) (int64, error) {
	if u.err != nil {
		return 0, u.err
	}
	u.payloads = append(u.payloads, payload)
	u.paths = append(u.paths, path)
	return int64(len(payload)), nil
}

func (u *stubUploader) Close() error { return nil }

type stubDLQ struct {
	reasons []string
}

func (d *stubDLQ) Publish(ctx context.Context, row *record.ConsumedRow, reason string) error {
	d.reasons = append(d.reasons, reason)
	return nil
}

func (d *stubDLQ) Close() error { return nil }

func testRowType() *rowtype.RowType {
	return rowtype.New(
		rowtype.Field{Name: "id", Type: rowtype.Int64()},
		rowtype.Field{Name: "name", Type: rowtype.String()},
	)
}

func newTestProcessor(t *testing.T, uploader *stubUploader, dlq *stubDLQ, maxRecords int, config Config) (*Processor, *int) {
	t.Helper()

	rt := testRowType()

	decoder, err := ingest.NewDecoder(rt)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	rowValidator, err := validator.NewRowValidator(rt)
	if err != nil {
		t.Fatalf("NewRowValidator() error = %v", err)
	}

	builder, err := csv.NewSchemaBuilder(rt)
	if err != nil {
		t.Fatalf("NewSchemaBuilder() error = %v", err)
	}
	schema, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	ser, err := csv.NewRecordSerializer(schema)
	if err != nil {
		t.Fatalf("NewRecordSerializer() error = %v", err)
	}

	commits := 0

	p, err := New(context.Background(), Options{
		Decoder:    decoder,
		Validator:  rowValidator,
		Serializer: ser,
		Buffers:    buffer.NewManager(1024*1024, 0),
		Policy:     sink.NewPolicy(sink.PolicyConfig{MaxRecordsPerBatch: maxRecords}),
		Router:     sink.NewRouter("s3", "data-lake", "csv-rows"),
		Uploader:   uploader,
		DLQ:        dlq,
		Config:     config,
		Logger:     slog.Default(),
		Metrics:    nil,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p, &commits
}

func makeRow(id int, name string, commits *int) *record.ConsumedRow {
	return &record.ConsumedRow{
		Payload: []byte(fmt.Sprintf(`{"id": %d, "name": %q}`, id, name)),
		Metadata: record.KafkaMetadata{
			Topic:     "orders",
			Partition: 0,
			Offset:    int64(id),
			Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		CommitFunc: func() error {
			*commits++
			return nil
		},
	}
}

func TestProcessor_FlushOnRecordCount(t *testing.T) {
	uploader := &stubUploader{}
	p, commits := newTestProcessor(t, uploader, nil, 2, Config{})

	ctx := context.Background()
	if err := p.Process(ctx, makeRow(1, "alice", commits)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(uploader.payloads) != 0 {
		t.Fatal("should not flush before rotation threshold")
	}
	if err := p.Process(ctx, makeRow(2, "bob", commits)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(uploader.payloads) != 1 {
		t.Fatalf("got %d uploads, want 1", len(uploader.payloads))
	}
	if got := string(uploader.payloads[0]); got != "1,alice\n2,bob" {
		t.Errorf("payload = %q", got)
	}
	if !strings.Contains(uploader.paths[0], "orders/dt=2024-03-01/pid=0/") {
		t.Errorf("path = %q, want event-time partitioning", uploader.paths[0])
	}
	if *commits != 1 {
		t.Errorf("commits = %d, want 1 after flush", *commits)
	}
}

func TestProcessor_IncludeHeader(t *testing.T) {
	uploader := &stubUploader{}
	p, commits := newTestProcessor(t, uploader, nil, 1, Config{IncludeHeader: true})

	if err := p.Process(context.Background(), makeRow(1, "alice", commits)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(uploader.payloads) != 1 {
		t.Fatalf("got %d uploads, want 1", len(uploader.payloads))
	}
	if got := string(uploader.payloads[0]); got != "id,name\n1,alice" {
		t.Errorf("payload = %q, want header line first", got)
	}
}

func TestProcessor_DecodeFailureGoesToDLQ(t *testing.T) {
	uploader := &stubUploader{}
	dlq := &stubDLQ{}
	p, commits := newTestProcessor(t, uploader, dlq, 10, Config{})

	row := makeRow(1, "alice", commits)
	row.Payload = []byte(`{"id": "not a number"}`)

	if err := p.Process(context.Background(), row); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(dlq.reasons) != 1 || !strings.HasPrefix(dlq.reasons[0], "decode:") {
		t.Errorf("DLQ reasons = %v, want one decode failure", dlq.reasons)
	}
	if *commits != 1 {
		t.Errorf("commits = %d, want 1 (skip past bad row)", *commits)
	}
	if len(uploader.payloads) != 0 {
		t.Error("bad row must not reach the sink")
	}
}

func makeRowAt(offset int64, payload string, committed *[]int64) *record.ConsumedRow {
	return &record.ConsumedRow{
		Payload: []byte(payload),
		Metadata: record.KafkaMetadata{
			Topic:     "orders",
			Partition: 0,
			Offset:    offset,
			Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		CommitFunc: func() error {
			*committed = append(*committed, offset)
			return nil
		},
	}
}

func TestProcessor_PoisonRowCommitWaitsForFlush(t *testing.T) {
	uploader := &stubUploader{}
	dlq := &stubDLQ{}
	p, _ := newTestProcessor(t, uploader, dlq, 10, Config{})

	// Two good rows buffered, then a row that fails decoding. Committing
	// the bad row's offset here would implicitly commit the buffered rows.
	var committed []int64
	rows := []*record.ConsumedRow{
		makeRowAt(1, `{"id": 1, "name": "alice"}`, &committed),
		makeRowAt(2, `{"id": 2, "name": "bob"}`, &committed),
		makeRowAt(3, `{"id": "boom"}`, &committed),
	}

	ctx := context.Background()
	for _, row := range rows {
		if err := p.Process(ctx, row); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}

	if len(committed) != 0 {
		t.Fatalf("committed = %v, want no commits while rows are buffered", committed)
	}
	if len(dlq.reasons) != 1 {
		t.Fatalf("DLQ reasons = %v, want one decode failure", dlq.reasons)
	}

	if err := p.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll() error = %v", err)
	}
	if len(uploader.payloads) != 1 || string(uploader.payloads[0]) != "1,alice\n2,bob" {
		t.Errorf("payloads = %q, want the two buffered rows", uploader.payloads)
	}
	if len(committed) != 1 || committed[0] != 3 {
		t.Errorf("committed = %v, want [3] after flush", committed)
	}
}

func TestProcessor_PoisonRowOnEmptyPartitionCommitsImmediately(t *testing.T) {
	uploader := &stubUploader{}
	dlq := &stubDLQ{}
	p, _ := newTestProcessor(t, uploader, dlq, 10, Config{})

	var committed []int64
	if err := p.Process(context.Background(), makeRowAt(7, `not json`, &committed)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(committed) != 1 || committed[0] != 7 {
		t.Errorf("committed = %v, want [7]: nothing buffered to lose", committed)
	}
	if len(uploader.payloads) != 0 {
		t.Error("bad row must not reach the sink")
	}
}

func TestProcessor_FlushAll(t *testing.T) {
	uploader := &stubUploader{}
	p, commits := newTestProcessor(t, uploader, nil, 100, Config{})

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		if err := p.Process(ctx, makeRow(i, fmt.Sprintf("user%d", i), commits)); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}
	if len(uploader.payloads) != 0 {
		t.Fatal("should not flush below thresholds")
	}

	if err := p.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll() error = %v", err)
	}
	if len(uploader.payloads) != 1 {
		t.Fatalf("got %d uploads, want 1", len(uploader.payloads))
	}
	if got := string(uploader.payloads[0]); got != "1,user1\n2,user2\n3,user3" {
		t.Errorf("payload = %q", got)
	}
	if *commits != 1 {
		t.Errorf("commits = %d, want 1", *commits)
	}

	// Flushing empty buffers is a no-op.
	if err := p.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll() on empty buffers error = %v", err)
	}
	if len(uploader.payloads) != 1 {
		t.Error("empty flush must not upload")
	}
}

func TestProcessor_UploadFailureKeepsOffsetsUncommitted(t *testing.T) {
	uploader := &stubUploader{err: errors.New("connection reset")}
	p, commits := newTestProcessor(t, uploader, nil, 2, Config{})

	ctx := context.Background()
	if err := p.Process(ctx, makeRow(1, "alice", commits)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	err := p.Process(ctx, makeRow(2, "bob", commits))
	if err == nil {
		t.Fatal("expected flush error to surface")
	}
	if *commits != 0 {
		t.Errorf("commits = %d, want 0 after failed upload", *commits)
	}
}

func TestProcessor_RunDrainsAndFlushesOnCancel(t *testing.T) {
	uploader := &stubUploader{}
	p, commits := newTestProcessor(t, uploader, nil, 100, Config{})

	rows := make(chan *record.ConsumedRow, 2)
	errs := make(chan error)
	rows <- makeRow(1, "alice", commits)
	rows <- makeRow(2, "bob", commits)
	close(rows)

	if err := p.Run(context.Background(), rows, errs); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(uploader.payloads) != 1 {
		t.Fatalf("got %d uploads, want 1 from final flush", len(uploader.payloads))
	}
	if got := string(uploader.payloads[0]); got != "1,alice\n2,bob" {
		t.Errorf("payload = %q", got)
	}
}

func TestProcessor_SeparatePartitionsSeparateBatches(t *testing.T) {
	uploader := &stubUploader{}
	p, commits := newTestProcessor(t, uploader, nil, 1, Config{})

	ctx := context.Background()
	rowA := makeRow(1, "alice", commits)
	rowB := makeRow(2, "bob", commits)
	rowB.Metadata.Partition = 1

	if err := p.Process(ctx, rowA); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if err := p.Process(ctx, rowB); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(uploader.paths) != 2 {
		t.Fatalf("got %d uploads, want 2", len(uploader.paths))
	}
	if !strings.Contains(uploader.paths[0], "pid=0/") || !strings.Contains(uploader.paths[1], "pid=1/") {
		t.Errorf("paths = %v, want per-partition routing", uploader.paths)
	}
}
