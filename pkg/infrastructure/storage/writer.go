package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/WangYihang/url-dedup/pkg/domain/entity"
	"github.com/WangYihang/url-dedup/pkg/domain/repository"
)

// ResultWriter implements repository.ResultWriter as JSON lines
type ResultWriter struct {
	path    string
	file    *os.File
	buf     *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewResultWriter creates a new result writer (use "-" for stdout)
func NewResultWriter(path string) (repository.ResultWriter, error) {
	var file *os.File
	if path == "-" {
		file = os.Stdout
	} else {
		var err error
		file, err = os.Create(path)
		if err != nil {
			return nil, err
		}
	}

	buf := bufio.NewWriter(file)
	return &ResultWriter{
		path:    path,
		file:    file,
		buf:     buf,
		encoder: json.NewEncoder(buf),
	}, nil
}

// Write writes a single record
func (w *ResultWriter) Write(record *entity.URLRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.encoder.Encode(record)
}

// Flush ensures all buffered data is written
func (w *ResultWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.flush()
}

func (w *ResultWriter) flush() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.path == "-" {
		return nil
	}
	return w.file.Sync()
}

// Close flushes and closes the writer (does not close stdout)
func (w *ResultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.flush()
	if w.path == "-" {
		return err
	}
	return errors.Join(err, w.file.Close())
}
