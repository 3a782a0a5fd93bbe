// Package buffer provides thread-safe buffering for serialized CSV lines.
//
// This package implements in-memory buffering with size and count limits,
// designed for batching lines before uploading to a sink. The serializer
// emits one line per record with no trailing terminator; the buffer joins
// lines with '\n' so a drained payload is a well-formed text file body.
//
// # PartitionBuffer
//
// PartitionBuffer is a thread-safe buffer for a single Kafka partition:
//
//	buf := buffer.New(partitionID, maxSizeBytes, maxRecords)
//
//	if err := buf.Append(line); err != nil {
//	    if errors.Is(err, apperrors.ErrBufferFull) {
//	        payload, stats := buf.Drain()
//	        upload(payload, stats)
//	    }
//	}
//
// # Buffer Manager
//
// Manager handles multiple partition buffers with automatic creation:
//
//	manager := buffer.NewManager(maxSizeBytes, maxRecords)
//	buf := manager.GetOrCreate(partitionID)
//
// # Thread Safety
//
// All buffer operations are thread-safe using read-write mutexes:
//
//   - Append(), Drain(), Reset() use write locks
//   - Stats(), IsEmpty() use read locks
//   - Manager.GetOrCreate() uses double-checked locking
//
// # Statistics
//
// BatchStats provides buffer metrics for rotation decisions:
//
//	stats := buf.Stats()
//	fmt.Printf("Records: %d, Size: %d bytes\n",
//	    stats.RecordCount, stats.SizeBytes)
package buffer
