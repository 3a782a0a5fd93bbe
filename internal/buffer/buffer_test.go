package buffer

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	apperrors "github.com/streamhaus/csvrowstore/internal/errors"
	"github.com/streamhaus/csvrowstore/pkg/record"
)

func testPartition() record.PartitionID {
	return record.PartitionID{Topic: "rows", Partition: 0}
}

func TestPartitionBuffer_AppendAndDrain(t *testing.T) {
	buf := New(testPartition(), 0, 0)

	lines := []string{"1,a", "2,b", "3,c"}
	for _, line := range lines {
		if err := buf.Append([]byte(line)); err != nil {
			t.Fatalf("Append(%q) error = %v", line, err)
		}
	}

	stats := buf.Stats()
	if stats.RecordCount != 3 {
		t.Errorf("RecordCount = %d, want 3", stats.RecordCount)
	}
	if stats.FirstWriteTime.IsZero() || stats.LastWriteTime.IsZero() {
		t.Error("write times should be set")
	}

	payload, drained := buf.Drain()
	if string(payload) != "1,a\n2,b\n3,c" {
		t.Errorf("payload = %q", payload)
	}
	if drained.RecordCount != 3 {
		t.Errorf("drained RecordCount = %d, want 3", drained.RecordCount)
	}
	if !buf.IsEmpty() {
		t.Error("buffer should be empty after drain")
	}
	if buf.Stats().RecordCount != 0 {
		t.Error("stats should reset after drain")
	}
}

func TestPartitionBuffer_NoTrailingNewline(t *testing.T) {
	buf := New(testPartition(), 0, 0)
	_ = buf.Append([]byte("only"))

	payload, _ := buf.Drain()
	if string(payload) != "only" {
		t.Errorf("single-line payload = %q, want no terminator", payload)
	}
}

func TestPartitionBuffer_CopiesLine(t *testing.T) {
	buf := New(testPartition(), 0, 0)

	line := []byte("1,a")
	_ = buf.Append(line)
	line[0] = 'X'

	payload, _ := buf.Drain()
	if string(payload) != "1,a" {
		t.Errorf("mutating the appended slice changed the buffer: %q", payload)
	}
}

func TestPartitionBuffer_MaxRecords(t *testing.T) {
	buf := New(testPartition(), 0, 2)

	_ = buf.Append([]byte("1"))
	_ = buf.Append([]byte("2"))

	err := buf.Append([]byte("3"))
	if !errors.Is(err, apperrors.ErrBufferFull) {
		t.Errorf("Append() error = %v, want ErrBufferFull", err)
	}
}

func TestPartitionBuffer_MaxSize(t *testing.T) {
	buf := New(testPartition(), 8, 0)

	if err := buf.Append([]byte("1234")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	// 4 bytes buffered + newline + 4 more would exceed 8.
	err := buf.Append([]byte("5678"))
	if !errors.Is(err, apperrors.ErrBufferFull) {
		t.Errorf("Append() error = %v, want ErrBufferFull", err)
	}
}

func TestPartitionBuffer_Reset(t *testing.T) {
	buf := New(testPartition(), 0, 0)
	_ = buf.Append([]byte("1,a"))

	buf.Reset()

	if !buf.IsEmpty() {
		t.Error("buffer should be empty after reset")
	}
	stats := buf.Stats()
	if stats.SizeBytes != 0 || !stats.FirstWriteTime.IsZero() {
		t.Errorf("stats after reset = %+v", stats)
	}
}

func TestPartitionBuffer_Concurrent(t *testing.T) {
	buf := New(testPartition(), 0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = buf.Append([]byte(fmt.Sprintf("%d,%d", n, j)))
			}
		}(i)
	}
	wg.Wait()

	if got := buf.Stats().RecordCount; got != 1000 {
		t.Errorf("RecordCount = %d, want 1000", got)
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	mgr := NewManager(0, 0)

	p0 := record.PartitionID{Topic: "rows", Partition: 0}
	p1 := record.PartitionID{Topic: "rows", Partition: 1}

	buf0 := mgr.GetOrCreate(p0)
	buf1 := mgr.GetOrCreate(p1)

	if buf0 == buf1 {
		t.Error("different partitions should get different buffers")
	}
	if mgr.GetOrCreate(p0) != buf0 {
		t.Error("same partition should get the same buffer")
	}

	ids := mgr.Partitions()
	if len(ids) != 2 {
		t.Errorf("Partitions() returned %d IDs, want 2", len(ids))
	}
}

func TestManager_ConcurrentGetOrCreate(t *testing.T) {
	mgr := NewManager(0, 0)
	pid := testPartition()

	var wg sync.WaitGroup
	buffers := make([]any, 20)
	for i := range buffers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			buffers[n] = mgr.GetOrCreate(pid)
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(buffers); i++ {
		if buffers[i] != buffers[0] {
			t.Fatal("concurrent GetOrCreate returned different buffers for one partition")
		}
	}
}
