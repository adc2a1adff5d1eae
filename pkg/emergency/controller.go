// Package emergency implements the maintenance stop valve: a local file
// a field technician can touch to gate the destructive SOFT/HARD tiers
// without affecting monitoring or the NETWORK tier. The Engine's tick
// loop is single-threaded and has no goroutines of its own, so
// MaintenanceActive is a synchronous check the SOFT and HARD actions make
// each time they are invoked; the only goroutine here watches for OS
// termination signals,
// since asynchronous signal delivery is unavoidable.
package emergency

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/edgewatch/nwwatchdog/pkg/reporting"
)

// Config contains emergency controller configuration.
type Config struct {
	// StopFile is the path polled for the maintenance stop valve.
	StopFile string

	// EnableSignalHandlers starts the SIGINT/SIGTERM watcher goroutine.
	EnableSignalHandlers bool
}

// Controller gates destructive recovery actions behind a stop file and
// surfaces SIGINT/SIGTERM as a terminate request the run loop can poll.
type Controller struct {
	stopFile string
	logger   *reporting.Logger

	mu          sync.Mutex
	terminating bool
	terminateBy string
}

// New creates a Controller. If EnableSignalHandlers is set, a goroutine
// is started immediately to watch for SIGINT/SIGTERM.
func New(config Config, logger *reporting.Logger) *Controller {
	if config.StopFile == "" {
		config.StopFile = "/tmp/nwwatchdog-emergency-stop"
	}
	c := &Controller{stopFile: config.StopFile, logger: logger}
	if config.EnableSignalHandlers {
		go c.watchSignals()
	}
	return c
}

// watchSignals is the sole goroutine in this package: it only sets a
// flag the run loop polls via ShouldTerminate, never touches Engine
// state directly.
func (c *Controller) watchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	c.mu.Lock()
	c.terminating = true
	c.terminateBy = sig.String()
	c.mu.Unlock()
}

// ShouldTerminate reports whether a termination signal has arrived.
// Called once per tick from the run loop (never from inside
// Engine.Update, which has no knowledge of signals).
func (c *Controller) ShouldTerminate() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminating, c.terminateBy
}

// MaintenanceActive reports whether the stop file currently exists.
// Called synchronously by the SOFT and HARD actions at the start of each
// invocation, before they touch counters or the platform — a plain stat
// call inline in the tick, not a background poller.
func (c *Controller) MaintenanceActive() bool {
	_, err := os.Stat(c.stopFile)
	active := err == nil
	if active {
		c.logger.Warn("maintenance stop valve active, destructive actions suppressed", "stop_file", c.stopFile)
	}
	return active
}

// CreateStopFile creates the stop file, turning maintenance mode on.
func (c *Controller) CreateStopFile() error {
	f, err := os.Create(c.stopFile)
	if err != nil {
		return err
	}
	return f.Close()
}

// RemoveStopFile removes the stop file if present.
func (c *Controller) RemoveStopFile() error {
	err := os.Remove(c.stopFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// StopFilePath returns the configured stop file path.
func (c *Controller) StopFilePath() string {
	return c.stopFile
}
