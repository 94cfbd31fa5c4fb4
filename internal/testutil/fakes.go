package testutil

import (
	"context"
	"sync"
	"testing"

	"forest-fashion/internal/models"
	"forest-fashion/internal/redisclient"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// RecordingPublisher keeps every published event in memory. Setting Err
// makes every publish fail with it.
type RecordingPublisher struct {
	mu     sync.Mutex
	Err    error
	Events []interface{}
}

func (p *RecordingPublisher) record(e interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, e)
	return nil
}

func (p *RecordingPublisher) PublishProductEvent(_ context.Context, e *models.ProductEvent) error {
	return p.record(e)
}

func (p *RecordingPublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	return p.record(e)
}

func (p *RecordingPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	return p.record(e)
}

func (p *RecordingPublisher) PublishStockLow(_ context.Context, e *models.StockLowEvent) error {
	return p.record(e)
}

// Types lists the event types recorded so far, in order.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		switch ev := e.(type) {
		case *models.ProductEvent:
			out = append(out, ev.EventType)
		case *models.OrderPlacedEvent:
			out = append(out, ev.EventType)
		case *models.OrderStatusChangedEvent:
			out = append(out, ev.EventType)
		case *models.StockLowEvent:
			out = append(out, ev.EventType)
		}
	}
	return out
}

// NewRedis starts a miniredis server for the test and returns a client on
// it, plus the server for inspection.
func NewRedis(t *testing.T) (*redisclient.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisclient.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c, mr
}
