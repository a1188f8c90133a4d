package downloader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/DuyanhLexq/TikTokAPI/internal/utils"
)

// ChunkSize is the buffer size used when copying a stream to disk
const ChunkSize = 8192

// FileWriter writes streamed content to disk. Content goes to a temporary
// file next to the target and is renamed into place once complete.
type FileWriter struct {
	logger     zerolog.Logger
	onProgress func(written int64)
}

// NewFileWriter creates a file writer
func NewFileWriter() *FileWriter {
	return &FileWriter{
		logger: zerolog.New(os.Stderr).With().Timestamp().Str("component", "file_writer").Logger(),
	}
}

// SetLogger sets the logger for the writer
func (w *FileWriter) SetLogger(logger zerolog.Logger) {
	w.logger = logger.With().Str("component", "file_writer").Logger()
}

// OnProgress registers a callback invoked after every written chunk
func (w *FileWriter) OnProgress(fn func(written int64)) {
	w.onProgress = fn
}

// WriteStream copies r to path in ChunkSize chunks and returns the bytes written
func (w *FileWriter) WriteStream(r io.Reader, path string) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("error creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("error creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	reader := &ProgressReader{Reader: r, OnProgress: w.onProgress}
	start := time.Now()

	written, err := io.CopyBuffer(onlyWriter{tmp}, reader, make([]byte, ChunkSize))
	if err != nil {
		tmp.Close()
		return written, fmt.Errorf("error writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("error closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return written, fmt.Errorf("error moving file: %w", err)
	}

	w.logger.Info().
		Str("path", path).
		Str("file_size", utils.FormatBytes(written)).
		Str("duration", utils.FormatDuration(time.Since(start))).
		Msg("File written")

	return written, nil
}

// onlyWriter hides ReadFrom so io.CopyBuffer uses the chunk buffer
type onlyWriter struct {
	io.Writer
}

// ProgressReader is a reader that reports progress
type ProgressReader struct {
	Reader     io.Reader
	Completed  int64
	OnProgress func(int64)
}

// Read implements the io.Reader interface
func (pr *ProgressReader) Read(p []byte) (n int, err error) {
	n, err = pr.Reader.Read(p)
	if n > 0 {
		pr.Completed += int64(n)
		if pr.OnProgress != nil {
			pr.OnProgress(pr.Completed)
		}
	}
	return n, err
}
