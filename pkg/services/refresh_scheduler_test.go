package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
)

type countingRefreshService struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCountingRefreshService() *countingRefreshService {
	return &countingRefreshService{calls: make(map[string]int)}
}

func (c *countingRefreshService) Refresh(_ context.Context, name string) (*models.RefreshReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
	return &models.RefreshReport{StoreName: name}, nil
}

func (c *countingRefreshService) HydrateAll(_ context.Context) {}

func (c *countingRefreshService) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	refresh := newCountingRefreshService()
	scheduler := NewRefreshScheduler(refresh, zap.NewNop())
	defer scheduler.Shutdown()

	scheduler.ConfigChanged(&models.ValueStoreConfig{Name: "companies", Schedule: "10ms"})

	assert.Eventually(t, func() bool {
		return refresh.count("companies") >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_DeleteStopsLoop(t *testing.T) {
	refresh := newCountingRefreshService()
	scheduler := NewRefreshScheduler(refresh, zap.NewNop())
	defer scheduler.Shutdown()

	scheduler.ConfigChanged(&models.ValueStoreConfig{Name: "companies", Schedule: "10ms"})
	assert.Eventually(t, func() bool {
		return refresh.count("companies") >= 1
	}, time.Second, 5*time.Millisecond)

	scheduler.ConfigDeleted("companies")
	time.Sleep(30 * time.Millisecond)
	after := refresh.count("companies")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, refresh.count("companies"))
}

func TestScheduler_EmptyScheduleIsIgnored(t *testing.T) {
	refresh := newCountingRefreshService()
	scheduler := NewRefreshScheduler(refresh, zap.NewNop())
	defer scheduler.Shutdown()

	scheduler.ConfigChanged(&models.ValueStoreConfig{Name: "companies"})
	scheduler.ConfigChanged(&models.ValueStoreConfig{Name: "broken", Schedule: "often"})

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, refresh.count("companies"))
	assert.Zero(t, refresh.count("broken"))
}

func TestScheduler_ReconfigureReplacesInterval(t *testing.T) {
	refresh := newCountingRefreshService()
	scheduler := NewRefreshScheduler(refresh, zap.NewNop())
	defer scheduler.Shutdown()

	scheduler.ConfigChanged(&models.ValueStoreConfig{Name: "companies", Schedule: "10ms"})
	assert.Eventually(t, func() bool {
		return refresh.count("companies") >= 1
	}, time.Second, 5*time.Millisecond)

	// Reconfiguring to a long interval effectively pauses the loop.
	scheduler.ConfigChanged(&models.ValueStoreConfig{Name: "companies", Schedule: "1h"})
	time.Sleep(30 * time.Millisecond)
	after := refresh.count("companies")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, refresh.count("companies"))
}
