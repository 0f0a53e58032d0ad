package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zemeslab/sslv-plots/models"
)

// MultiWriter fans every batch out to several writers so one run can
// produce CSV, JSONL, and XLSX output simultaneously.
type MultiWriter struct {
	writers []OutputWriter
	mu      sync.Mutex
}

// NewMultiWriter combines writers into one. At least one is required; on
// construction failure the caller keeps ownership of the writers passed in.
func NewMultiWriter(writers ...OutputWriter) (*MultiWriter, error) {
	if len(writers) == 0 {
		return nil, fmt.Errorf("multi writer needs at least one writer")
	}
	return &MultiWriter{writers: writers}, nil
}

// Write writes records to every underlying writer.
func (mw *MultiWriter) Write(records []*models.AdRecord) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for _, w := range mw.writers {
		if err := w.Write(records); err != nil {
			return fmt.Errorf("multi write failed: %w", err)
		}
	}
	return nil
}

// Close closes every underlying writer, reporting all failures.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []string
	for _, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates every underlying writer.
func (mw *MultiWriter) Validate() error {
	var errs []string
	for _, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
