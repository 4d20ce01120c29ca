// Package monitortest runs the checks every scheduler.Monitor should pass.
package monitortest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lucid-vigil/flowguard/pkg/config"
	"github.com/lucid-vigil/flowguard/pkg/scheduler"
	"github.com/stretchr/testify/assert"
)

// MonitorTestSuite exercises a monitor through the scheduler.Monitor interface.
type MonitorTestSuite struct {
	t           *testing.T
	monitor     scheduler.Monitor
	testTimeout time.Duration
}

// NewMonitorTestSuite creates a new test suite
func NewMonitorTestSuite(t *testing.T, monitor scheduler.Monitor) *MonitorTestSuite {
	return &MonitorTestSuite{
		t:           t,
		monitor:     monitor,
		testTimeout: 5 * time.Second,
	}
}

// WithTimeout sets the bound on a single Run.
func (mts *MonitorTestSuite) WithTimeout(timeout time.Duration) *MonitorTestSuite {
	mts.testTimeout = timeout
	return mts
}

// RunBasicTests executes standard monitor tests
func (mts *MonitorTestSuite) RunBasicTests() {
	mts.t.Run("TestMonitorName", mts.testMonitorName)
	mts.t.Run("TestMonitorRun", mts.testMonitorRun)
	mts.t.Run("TestMonitorCancelledContext", mts.testMonitorCancelledContext)
	mts.t.Run("TestMonitorConcurrency", mts.testMonitorConcurrency)
	mts.t.Run("TestMonitorScheduled", mts.testMonitorScheduled)
}

func (mts *MonitorTestSuite) testMonitorName(t *testing.T) {
	name := mts.monitor.Name()
	assert.NotEmpty(t, name, "Monitor name should not be empty")
	assert.NotContains(t, name, " ", "Monitor name should not contain spaces")
}

func (mts *MonitorTestSuite) testMonitorRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), mts.testTimeout)
	defer cancel()

	start := time.Now()
	assert.NotPanics(t, func() {
		mts.monitor.Run(ctx)
	}, "Monitor Run should not panic")
	assert.Less(t, time.Since(start), mts.testTimeout, "Monitor should complete within the timeout")
}

func (mts *MonitorTestSuite) testMonitorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NotPanics(t, func() {
		mts.monitor.Run(ctx)
	}, "Monitor Run should tolerate a cancelled context")
}

func (mts *MonitorTestSuite) testMonitorConcurrency(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 5)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs <- fmt.Errorf("panic: %v", r)
				}
			}()
			mts.monitor.Run(context.Background())
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err, "Concurrent monitor execution should not error")
	}
}

// testMonitorScheduled registers the monitor with a real scheduler and lets
// it run briefly.
func (mts *MonitorTestSuite) testMonitorScheduled(t *testing.T) {
	cfg := &config.Config{
		Monitors: []config.MonitorConfig{
			{Name: mts.monitor.Name(), Enabled: true, Interval: "10ms"},
		},
	}
	sched := scheduler.NewScheduler(cfg)
	sched.RegisterMonitor(mts.monitor)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sched.Start(ctx)
	done := make(chan struct{})
	go func() {
		sched.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(mts.testTimeout):
		t.Fatal("scheduled monitor did not stop after cancellation")
	}
}

// LogCapture is a helper to capture zerolog output for testing.
type LogCapture struct {
	sync.Mutex
	logs []string
}

func (lc *LogCapture) Write(p []byte) (n int, err error) {
	lc.Lock()
	defer lc.Unlock()
	lc.logs = append(lc.logs, string(p))
	return len(p), nil
}

// GetLogs returns a copy of the captured lines.
func (lc *LogCapture) GetLogs() []string {
	lc.Lock()
	defer lc.Unlock()
	return append([]string(nil), lc.logs...)
}
