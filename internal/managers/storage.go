// Package managers wires storage backends to the link pipeline.
package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/stormtrack/internal/analysis"
	"github.com/chrissnell/stormtrack/internal/log"
	"github.com/chrissnell/stormtrack/internal/storage"
	"github.com/chrissnell/stormtrack/internal/storage/timescaledb"
	"github.com/chrissnell/stormtrack/pkg/config"
	"github.com/google/uuid"
)

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines           []StorageEngine
	ResultDistributor chan *analysis.LinkResult
	RunID             uuid.UUID
}

// StorageEngine holds a backend's sink as well as a channel for passing
// link results to it
type StorageEngine struct {
	Name string
	Sink storage.Sink
	C    chan<- *analysis.LinkResult
}

// NewStorageManager creates a StorageManager populated with every configured
// backend. Results are always logged; TimescaleDB is added when configured.
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c config.StorageData) (*StorageManager, error) {
	s := &StorageManager{
		ResultDistributor: make(chan *analysis.LinkResult, 20),
		RunID:             uuid.New(),
	}

	s.AddEngine(ctx, wg, "log", storage.LogSink{})

	if c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "" {
		t, err := timescaledb.New(ctx, c.TimescaleDB.ConnectionString)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not add TimescaleDB storage backend: %v", err)
		}
		s.AddEngine(ctx, wg, "timescaledb", t)
	}

	// Start our result distributor to distribute link results to storage
	// backends
	wg.Add(1)
	go s.startResultDistributor(ctx, wg)

	return s, nil
}

// AddEngine starts an engine for sink. Engines must be added before results
// are sent.
func (s *StorageManager) AddEngine(ctx context.Context, wg *sync.WaitGroup, name string, sink storage.Sink) {
	e := storage.NewEngine(sink, s.RunID)
	s.Engines = append(s.Engines, StorageEngine{
		Name: name,
		Sink: sink,
		C:    e.StartStorageEngine(ctx, wg),
	})
	log.Infow("storage backend enabled", "backend", name, "run_id", s.RunID.String())
}

func (s *StorageManager) startResultDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		for _, e := range s.Engines {
			close(e.C)
		}
	}()

	for {
		select {
		case r, ok := <-s.ResultDistributor:
			if !ok {
				return
			}
			for _, e := range s.Engines {
				select {
				case e.C <- r:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling result distributor.")
			return
		}
	}
}

// Close closes every backend
func (s *StorageManager) Close() error {
	var firstErr error
	for _, e := range s.Engines {
		if err := e.Sink.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", e.Name, err)
		}
	}
	return firstErr
}
