package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/trydo/wts-backend/pkg/logger"
)

// ErrWriterClosed is returned for mutations submitted after Close.
var ErrWriterClosed = errors.New("db writer closed")

const defaultWriterQueueSize = 64

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type writeJob struct {
	ctx    context.Context
	fn     func(tx *gorm.DB) error
	result chan error
}

// Writer serializes every mutation through a single goroutine. Each submitted
// closure runs inside its own transaction; at most one transaction is open at a
// time. Closures must not submit to the same Writer.
type Writer struct {
	runner  txRunner
	logg    *logger.Logger
	jobs    chan writeJob
	quit    chan struct{}
	stopped chan struct{}
}

// NewWriter starts the writer goroutine over runner.
func NewWriter(runner txRunner, queueSize int, logg *logger.Logger) (*Writer, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if queueSize <= 0 {
		queueSize = defaultWriterQueueSize
	}
	w := &Writer{
		runner:  runner,
		logg:    logg,
		jobs:    make(chan writeJob, queueSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// WithTx queues fn and blocks until it has been committed or rolled back, or
// until ctx is done.
func (w *Writer) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	job := writeJob{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case <-w.quit:
		return ErrWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	case w.jobs <- job:
	}

	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stopped:
		select {
		case err := <-job.result:
			return err
		default:
			return ErrWriterClosed
		}
	}
}

// Close stops accepting work and waits for the in-flight transaction to finish.
// Queued jobs that never started receive ErrWriterClosed.
func (w *Writer) Close() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
	<-w.stopped
}

func (w *Writer) run() {
	defer close(w.stopped)
	for {
		select {
		case job := <-w.jobs:
			w.execute(job)
		case <-w.quit:
			for {
				select {
				case job := <-w.jobs:
					job.result <- ErrWriterClosed
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) execute(job writeJob) {
	if err := job.ctx.Err(); err != nil {
		job.result <- err
		return
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("db writer: panic in transaction: %v", r)
			if w.logg != nil {
				w.logg.Error(job.ctx, "db.writer.panic", err)
			}
			job.result <- err
		}
	}()

	job.result <- w.runner.WithTx(job.ctx, job.fn)
}
