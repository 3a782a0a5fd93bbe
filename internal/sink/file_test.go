package sink

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/streamhaus/csvrowstore/internal/errors"
)

func newTestFileUploader(t *testing.T) (*FileUploader, string) {
	t.Helper()
	dir := t.TempDir()

	uploader, err := NewFileUploader(FileConfig{BasePath: dir}, ".csv", slog.Default(), nil)
	if err != nil {
		t.Fatalf("NewFileUploader() error = %v", err)
	}
	return uploader, dir
}

func TestFileUploader_Upload(t *testing.T) {
	uploader, dir := newTestFileUploader(t)

	payload := []byte("1,a\n2,b")
	n, err := uploader.Upload(context.Background(), payload, "rows/dt=2024-03-01/pid=0/")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("Upload() = %d bytes, want %d", n, len(payload))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "rows/dt=2024-03-01/pid=0", "rows_*.csv"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected exactly one uploaded file, got %v (err %v)", matches, err)
	}

	content, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) != "1,a\n2,b" {
		t.Errorf("file content = %q", content)
	}
}

func TestFileUploader_StripsProtocolPrefix(t *testing.T) {
	uploader, dir := newTestFileUploader(t)

	_, err := uploader.Upload(context.Background(), []byte("x"), "file://rows/dt=2024-03-01/pid=1/")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "rows/dt=2024-03-01/pid=1", "*.csv"))
	if len(matches) != 1 {
		t.Errorf("expected file under stripped path, got %v", matches)
	}
}

func TestFileUploader_SequencesWithinSameSecond(t *testing.T) {
	uploader, dir := newTestFileUploader(t)

	for i := 0; i < 3; i++ {
		if _, err := uploader.Upload(context.Background(), []byte("x"), "p/"); err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "p", "rows_*.csv"))
	if len(matches) != 3 {
		t.Fatalf("expected 3 distinct files, got %d: %v", len(matches), matches)
	}
	for _, m := range matches {
		if !strings.HasSuffix(m, ".csv") {
			t.Errorf("unexpected file name %q", m)
		}
	}
}

func TestFileUploader_EmptyPayload(t *testing.T) {
	uploader, dir := newTestFileUploader(t)

	n, err := uploader.Upload(context.Background(), nil, "p/")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Upload(nil) = %d bytes, want 0", n)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "p", "*"))
	if len(matches) != 0 {
		t.Errorf("empty payload should not create a file, got %v", matches)
	}
}

func TestFileUploader_Closed(t *testing.T) {
	uploader, _ := newTestFileUploader(t)

	if err := uploader.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err := uploader.Upload(context.Background(), []byte("x"), "p/")
	if !stderrors.Is(err, errors.ErrSinkClosed) {
		t.Errorf("Upload() after close error = %v, want ErrSinkClosed", err)
	}
}
