// Package storage defines interfaces and implementations for link result storage backends.
package storage

import (
	"context"
	"sync"

	"github.com/chrissnell/stormtrack/internal/analysis"
	"github.com/chrissnell/stormtrack/internal/log"
	"github.com/google/uuid"
)

// Sink persists link results
type Sink interface {
	StoreLink(ctx context.Context, runID uuid.UUID, res *analysis.LinkResult) error
	Close() error
}

// Engine feeds link results from a channel into a Sink, tagging each one
// with the engine's run ID
type Engine struct {
	sink  Sink
	runID uuid.UUID
}

// NewEngine creates an engine storing results under runID
func NewEngine(sink Sink, runID uuid.UUID) *Engine {
	return &Engine{
		sink:  sink,
		runID: runID,
	}
}

// RunID identifies the results stored by this engine
func (e *Engine) RunID() uuid.UUID {
	return e.runID
}

// StartStorageEngine creates a goroutine loop to receive link results and
// send them to the sink. The loop ends when the channel is closed or ctx is
// cancelled.
func (e *Engine) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- *analysis.LinkResult {
	log.Infow("starting link storage engine", "run_id", e.runID.String())
	resultChan := make(chan *analysis.LinkResult, 10)
	wg.Add(1)
	go e.processResults(ctx, wg, resultChan)
	return resultChan
}

func (e *Engine) processResults(ctx context.Context, wg *sync.WaitGroup, rchan <-chan *analysis.LinkResult) {
	defer wg.Done()

	for {
		select {
		case r, ok := <-rchan:
			if !ok {
				return
			}
			if err := e.sink.StoreLink(ctx, e.runID, r); err != nil {
				log.Errorw("could not store link result", "track", r.Track, "error", err)
			}
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling link result processor.")
			return
		}
	}
}

// LogSink writes link results to the application log
type LogSink struct{}

// StoreLink logs one link result
func (LogSink) StoreLink(ctx context.Context, runID uuid.UUID, res *analysis.LinkResult) error {
	log.Infow("track link",
		"run_id", runID.String(),
		"track", res.Track,
		"identifier", res.Identifier,
		"overlap", res.Alignment.Overlap(),
		"selected", res.Selected.String(),
		"pixels", res.PixelCount())
	return nil
}

// Close is a no-op for LogSink
func (LogSink) Close() error {
	return nil
}
