package managers

import (
	"context"
	"sync"
	"testing"

	"github.com/chrissnell/stormtrack/internal/analysis"
	"github.com/chrissnell/stormtrack/pkg/cftime"
	"github.com/chrissnell/stormtrack/pkg/config"
	"github.com/google/uuid"
	"go.uber.org/goleak"
)

type countingSink struct {
	mu     sync.Mutex
	count  int
	runID  uuid.UUID
	closed bool
}

func (c *countingSink) StoreLink(ctx context.Context, runID uuid.UUID, res *analysis.LinkResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	c.runID = runID
	return nil
}

func (c *countingSink) Close() error {
	c.closed = true
	return nil
}

func TestStorageManagerFanOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	var wg sync.WaitGroup

	sink := &countingSink{}
	m, err := NewStorageManager(ctx, &wg, config.StorageData{})
	if err != nil {
		t.Fatalf("NewStorageManager: %v", err)
	}
	// the distributor reads Engines only after the first result arrives
	m.AddEngine(ctx, &wg, "counting", sink)

	if len(m.Engines) != 2 || m.Engines[0].Name != "log" {
		t.Fatalf("engines = %+v", m.Engines)
	}

	for i := 0; i < 3; i++ {
		m.ResultDistributor <- &analysis.LinkResult{
			Track:     i,
			Alignment: &analysis.Alignment{Track: i, TrackSteps: []int{}, MaskSteps: []int{}},
			Selected:  cftime.Invalid(),
		}
	}
	close(m.ResultDistributor)
	wg.Wait()

	if sink.count != 3 {
		t.Errorf("sink stored %d results, expected 3", sink.count)
	}
	if sink.runID != m.RunID {
		t.Errorf("run ID %s, expected %s", sink.runID, m.RunID)
	}
	if err := m.Close(); err != nil || !sink.closed {
		t.Errorf("Close: %v (closed=%v)", err, sink.closed)
	}
}

func TestStorageManagerCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if _, err := NewStorageManager(ctx, &wg, config.StorageData{}); err != nil {
		t.Fatalf("NewStorageManager: %v", err)
	}
	cancel()
	wg.Wait()
}
