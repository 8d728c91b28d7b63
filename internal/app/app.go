// Package app runs stormtrack either as a one-shot linker or as a REST server.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/stormtrack/internal/analysis"
	"github.com/chrissnell/stormtrack/internal/controllers/restserver"
	"github.com/chrissnell/stormtrack/internal/log"
	"github.com/chrissnell/stormtrack/internal/managers"
	"github.com/chrissnell/stormtrack/pkg/cftime"
	"github.com/chrissnell/stormtrack/pkg/config"
	"go.uber.org/zap"
)

// AllTracks asks Link to process every track
const AllTracks = -1

// App represents the main application
type App struct {
	config *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		config: cfg,
		logger: logger,
	}
}

// Link links one track (or every track with AllTracks) at the mask step
// nearest to when, sends the results to the configured storage backends
// and returns them. An empty when selects each track's first aligned step.
func (a *App) Link(ctx context.Context, track int, when string) ([]*analysis.LinkResult, error) {
	session, err := analysis.Open(a.config)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	at := cftime.Invalid()
	if when != "" {
		if at, err = session.ParseTime(when); err != nil {
			return nil, fmt.Errorf("invalid -time: %w", err)
		}
	}

	tracks := []int{track}
	if track == AllTracks {
		tracks = make([]int, session.Tracks().NumTracks())
		for i := range tracks {
			tracks[i] = i
		}
	}

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sm, err := managers.NewStorageManager(ctx, &wg, a.config.Storage)
	if err != nil {
		return nil, err
	}
	defer sm.Close()

	results := make([]*analysis.LinkResult, 0, len(tracks))
	var linkErr error
	for _, i := range tracks {
		res, err := session.Link(ctx, i, at)
		if err != nil {
			linkErr = fmt.Errorf("track %d: %w", i, err)
			break
		}
		results = append(results, res)
		sm.ResultDistributor <- res
	}
	close(sm.ResultDistributor)

	// Wait for the backends to drain
	wg.Wait()
	a.logger.Infow("link run complete", "run_id", sm.RunID.String(), "tracks", len(results))
	return results, linkErr
}

// Serve runs the REST API and blocks until shutdown
func (a *App) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session, err := analysis.Open(a.config)
	if err != nil {
		return err
	}
	defer session.Close()

	ctrl := restserver.NewController(ctx, &wg, session, a.config.Server, log.Named("restserver"))
	if err := ctrl.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()

	log.Info("shutdown complete")
	return nil
}
