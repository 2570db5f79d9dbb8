package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor handles one batch of claimed work per call.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drives a JobProcessor on a fixed poll interval. Papers queue
// embedding jobs at ingest time; the worker picks them up in the background
// so API writes never wait on the embeddings provider.
type Worker struct {
	processor JobProcessor
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
}

func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor: processor,
		interval:  pollInterval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start polls until the context is cancelled or Stop is called. It runs one
// pass immediately so jobs queued before startup do not wait a full interval.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	log.Printf("embedding worker started, poll interval %v", w.interval)

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("embedding worker stopped: context cancelled")
			return
		case <-w.stop:
			log.Println("embedding worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("embedding worker pass failed: %v", err)
	}
}

// Stop signals the polling loop and blocks until it exits.
func (w *Worker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	<-w.done
}
