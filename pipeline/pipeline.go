// Package pipeline coordinates validation, de-duplication, normalization,
// and output writing for extracted ad records.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zemeslab/sslv-plots/config"
	"github.com/zemeslab/sslv-plots/models"
	"github.com/zemeslab/sslv-plots/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.AdRecord) error
	Close() error
	Validate() error
}

// sequenced carries a record's submission position so the write loop can
// restore submission order after parallel preparation.
type sequenced struct {
	seq int64
	rec *models.AdRecord
}

// Pipeline coordinates record preparation and output writing. Preparation
// (validation + numeric normalization) fans out over workers; writing runs
// on a single loop that re-sequences records, so output order always
// matches submission order regardless of worker count.
type Pipeline struct {
	writer         OutputWriter
	recordCh       chan sequenced
	writeCh        chan sequenced
	batchSize      int
	collectionDate string

	seq int64

	wg       sync.WaitGroup
	writerWg sync.WaitGroup

	// seen is only touched by the write loop, after re-sequencing, so
	// first-occurrence-wins follows submission order.
	seen map[string]struct{}

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce      sync.Once
	writeCloseOnce sync.Once
	shutdown       chan struct{}
	shutdownOnce   sync.Once
}

// NewPipeline builds a pipeline writing through writer. The collection
// date every record is stamped with is fixed at construction, so all
// records of one run carry the same date even across midnight.
func NewPipeline(writer OutputWriter, cfg *config.Config) *Pipeline {
	buffer := cfg.PipelineBufferSize
	if buffer <= 0 {
		buffer = 512
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}

	return &Pipeline{
		writer:         writer,
		recordCh:       make(chan sequenced, buffer),
		writeCh:        make(chan sequenced, buffer),
		batchSize:      batch,
		collectionDate: parser.CollectionDate(time.Now()),
		seen:           make(map[string]struct{}),
		metrics:        newMetrics(),
		shutdown:       make(chan struct{}),
	}
}

// Start launches the preparation workers and the single ordered write loop.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.writerWg.Add(1)
	go p.writeLoop()
}

// Process enqueues a record for downstream processing.
func (p *Pipeline) Process(rec *models.AdRecord) error {
	if rec == nil {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	return p.enqueue(rec)
}

// Close waits for workers to finish and prevents more submissions.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.recordCh)
	})
	p.wg.Wait()

	p.writeCloseOnce.Do(func() {
		close(p.writeCh)
	})
	p.writerWg.Wait()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				processed := metrics["processed_ads"].(int64)
				validation := metrics["validation_errors"].(map[string]int)
				slog.Info("pipeline progress",
					slog.Int64("processed", processed),
					slog.Int("validation_errors", len(validation)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

// worker prepares records and forwards them, invalid ones included as nil
// so the write loop can account for every sequence number.
func (p *Pipeline) worker() {
	defer p.wg.Done()

	for sr := range p.recordCh {
		sr.rec = p.prepare(sr.rec)
		p.writeCh <- sr
	}
}

// writeLoop restores submission order, deduplicates, batches, and writes.
func (p *Pipeline) writeLoop() {
	defer p.writerWg.Done()

	pending := make(map[int64]*models.AdRecord)
	var next int64
	batch := make([]*models.AdRecord, 0, p.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if p.Err() == nil {
			if err := p.writer.Write(batch); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
			}
		}
		batch = batch[:0]
	}
	emit := func(rec *models.AdRecord) {
		if rec == nil {
			return
		}
		if _, dup := p.seen[rec.Link]; dup {
			p.metrics.addValidation("duplicate_link")
			return
		}
		p.seen[rec.Link] = struct{}{}
		p.metrics.incrementProcessed()
		batch = append(batch, rec)
		if len(batch) >= p.batchSize {
			flush()
		}
	}

	for sr := range p.writeCh {
		pending[sr.seq] = sr.rec
		for {
			rec, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			emit(rec)
		}
	}

	// A sequence number burned by an aborted submission leaves a gap;
	// step over gaps so records queued after it still come out, in order.
	for len(pending) > 0 {
		if rec, ok := pending[next]; ok {
			delete(pending, next)
			emit(rec)
		}
		next++
	}
	flush()
}

// prepare validates and normalizes a record. Deduplication happens later,
// in the ordered write loop, so first-occurrence-wins is deterministic.
func (p *Pipeline) prepare(rec *models.AdRecord) *models.AdRecord {
	if err := parser.ValidateRecord(rec); err != nil {
		p.metrics.addValidation("invalid_record")
		return nil
	}

	parser.NormalizeRecord(rec)
	rec.CollectionDate = p.collectionDate
	return rec
}

func (p *Pipeline) enqueue(rec *models.AdRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	sr := sequenced{seq: atomic.AddInt64(&p.seq, 1) - 1, rec: rec}
	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case p.recordCh <- sr:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.recordCh)
	})
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_ads":     m.processed,
		"validation_errors": copyValidation,
	}
}
