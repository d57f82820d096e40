package views

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sync"

	"trigger-capture/models"
)

// CSVWriter is a concurrency-safe, buffered CSV writer.
//
// The bufio.Writer absorbs write syscall overhead; the mutex is held only for
// a single row encode. Encoding errors are sticky and reported by Flush/Close.
type CSVWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	csv  *csv.Writer
	rows uint64
}

// NewCSVWriter creates a new file and writes the CSV header row. The file
// must not exist yet: metadata files are never overwritten.
func NewCSVWriter(path string, bufSizeBytes int, writeHeader bool, header []string) (*CSVWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv create %s: %w", path, err)
	}
	w := newCSVWriter(f, bufSizeBytes)
	if writeHeader && len(header) > 0 {
		if err := w.csv.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv write header: %w", err)
		}
	}
	return w, nil
}

// AppendCSVWriter opens path for appending, creating it if needed. The header
// is written only when the file is empty, so an index can span sessions.
func AppendCSVWriter(path string, bufSizeBytes int, header []string) (*CSVWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv stat %s: %w", path, err)
	}
	w := newCSVWriter(f, bufSizeBytes)
	if st.Size() == 0 && len(header) > 0 {
		if err := w.csv.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv write header: %w", err)
		}
	}
	return w, nil
}

func newCSVWriter(f *os.File, bufSizeBytes int) *CSVWriter {
	if bufSizeBytes <= 0 {
		bufSizeBytes = 64 * 1024
	}
	bw := bufio.NewWriterSize(f, bufSizeBytes)
	return &CSVWriter{
		file: f,
		buf:  bw,
		csv:  csv.NewWriter(bw),
	}
}

// WriteRow appends a single CSV row. Thread-safe.
func (w *CSVWriter) WriteRow(row []string) {
	w.mu.Lock()
	_ = w.csv.Write(row) // error is sticky; surfaced on Flush
	w.rows++
	w.mu.Unlock()
}

// WriteRecord appends r's row.
func (w *CSVWriter) WriteRecord(r models.CSVRowWriter) { w.WriteRow(r.CSVRow()) }

// Flush pushes the buffered data to the OS.
func (w *CSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	return errors.Join(w.csv.Error(), w.buf.Flush())
}

// Close flushes remaining data and closes the file.
func (w *CSVWriter) Close() error {
	flushErr := w.Flush()
	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Join(flushErr, w.file.Close())
}

// Rows returns the number of data rows written (excludes header).
func (w *CSVWriter) Rows() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}
