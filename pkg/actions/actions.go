// Package actions implements the three members of the recovery
// ladder's action set: NETWORK, SOFT, and HARD. Each closes over a
// shared Context — an explicit object rather than a captured closure,
// so the action set stays easy to unit test in isolation.
package actions

import (
	"github.com/edgewatch/nwwatchdog/pkg/audit"
	"github.com/edgewatch/nwwatchdog/pkg/config"
	"github.com/edgewatch/nwwatchdog/pkg/counterstore"
	"github.com/edgewatch/nwwatchdog/pkg/emergency"
	"github.com/edgewatch/nwwatchdog/pkg/ladder"
	"github.com/edgewatch/nwwatchdog/pkg/platform"
	"github.com/edgewatch/nwwatchdog/pkg/reporting"
)

// Context bundles everything an action needs: configuration, the
// counter store, the platform capability object, the maintenance stop
// valve, the audit storage the pre-reboot shutdown coordinator writes
// to, and the logger. One Context is
// shared across all three actions for the lifetime of the process.
type Context struct {
	Config    *config.Config
	Counters  *counterstore.Store
	Platform  platform.Platform
	Emergency *emergency.Controller
	Audit     *audit.Storage
	Logger    *reporting.Logger

	// CurrentEpisode is the in-progress episode report for the failure
	// episode now escalating, set by the Engine before each Invoke call
	// so a terminating SOFT/HARD action can flush it to disk first. May
	// be nil if the Engine has not opened one.
	CurrentEpisode *audit.EpisodeReport
}

// Result describes what an action did, for the Engine's episode
// bookkeeping and logging. Suppressed is true when the maintenance stop
// valve blocked a destructive action from actually running.
type Result struct {
	Action     ladder.ActionID
	Suppressed bool
}

// Invoke dispatches to the concrete action named by id. It is the only
// entry point pkg/watchdog calls; the Engine never touches a concrete
// action function directly.
func (c *Context) Invoke(id ladder.ActionID) Result {
	switch id {
	case ladder.Network:
		c.runNetwork()
		return Result{Action: ladder.Network}
	case ladder.Soft:
		return c.runSoft()
	case ladder.Hard:
		return c.runHard()
	default:
		c.Logger.Error("unknown ladder action", "action", int(id))
		return Result{Action: id}
	}
}

// runNetwork fixes modem ports, restarts network services, and
// increments the network counter. Never gated by the maintenance stop
// valve: only SOFT/HARD are suppressed by it.
func (c *Context) runNetwork() {
	if err := c.Platform.FixModemPorts(); err != nil {
		c.Logger.Warn("fix modem ports failed", "error", err)
	}
	if err := c.Platform.RestartServices(c.Config.All.NetworkServices); err != nil {
		c.Logger.Warn("restart network services failed", "error", err)
	}
	c.Counters.Increment(c.Config.NetworkCounterPath())
	c.Logger.Info("NETWORK action fired")
}

// runSoft increments then reboots while under the limit; once at the
// limit, it logs and returns without incrementing, so the counter
// caps out rather than climbing forever past the threshold.
func (c *Context) runSoft() Result {
	if c.Emergency.MaintenanceActive() {
		return Result{Action: ladder.Soft, Suppressed: true}
	}

	path := c.Config.SoftCounterPath()
	n := c.Counters.Read(path)
	if n < int64(c.Config.SoftReboot.MaxResets) {
		c.Counters.Increment(path)
		c.Logger.Warn("SOFT action firing reboot", "prior_count", n)

		coord := newShutdownCoordinator(c.Logger, c.Audit)
		coord.flush(c.CurrentEpisode)
		_ = coord.run("reboot", c.Platform.Reboot)
		c.Logger.Info(coord.summary())

		return Result{Action: ladder.Soft}
	}

	c.Logger.Warn("soft limit reached, SOFT action suppressed this tick", "count", n, "max", c.Config.SoftReboot.MaxResets)
	return Result{Action: ladder.Soft}
}

// runHard increments the hard counter unconditionally (it records
// attempts including the final trigger). Ordering inside the
// media-switch branch is load-bearing: set-media → clear-counters →
// reboot, so a crash between any two steps never strands the node on
// an exhausted hard tier on the same broken medium.
func (c *Context) runHard() Result {
	if c.Emergency.MaintenanceActive() {
		return Result{Action: ladder.Hard, Suppressed: true}
	}

	path := c.Config.HardCounterPath()
	n := c.Counters.Read(path)
	c.Counters.Increment(path)

	coord := newShutdownCoordinator(c.Logger, c.Audit)
	coord.flush(c.CurrentEpisode)

	if n < int64(c.Config.HardReboot.MaxResets) {
		c.Logger.Warn("HARD action firing poweroff", "prior_count", n)
		_ = coord.run("poweroff", c.Platform.Poweroff)
		c.Logger.Info(coord.summary())
		return Result{Action: ladder.Hard}
	}

	c.Logger.Error("hard limit reached, switching boot media", "count", n, "max", c.Config.HardReboot.MaxResets)
	target := c.Platform.CurrentMedia().Other()

	// Ordering is load-bearing: commit the media selection, then clear
	// counters, then reboot — each run as its own audited step so a
	// crash between any two is visible in the coordinator's log.
	mediaErr := coord.run("set next boot media", func() error {
		return c.Platform.SetNextBootMedia(target)
	})
	if mediaErr != nil {
		c.Logger.Error("set next boot media failed; counters left intact for retry next boot", "target", target)
		c.Logger.Info(coord.summary())
		return Result{Action: ladder.Hard}
	}

	_ = coord.run("clear counters", func() error {
		c.Counters.Write(c.Config.NetworkCounterPath(), 0)
		c.Counters.Write(c.Config.SoftCounterPath(), 0)
		c.Counters.Write(path, 0)
		return nil
	})

	_ = coord.run("reboot", c.Platform.Reboot)
	c.Logger.Info(coord.summary())
	return Result{Action: ladder.Hard}
}
