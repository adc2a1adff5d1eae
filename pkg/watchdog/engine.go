// Package watchdog implements the Watchdog Engine: the tick loop that
// samples connectivity, classifies it against the hysteresis band, and
// escalates through the recovery ladder. This is the component every
// other package in this repository exists to serve.
package watchdog

import (
	"fmt"
	"time"

	"github.com/edgewatch/nwwatchdog/pkg/actions"
	"github.com/edgewatch/nwwatchdog/pkg/audit"
	"github.com/edgewatch/nwwatchdog/pkg/config"
	"github.com/edgewatch/nwwatchdog/pkg/health"
	"github.com/edgewatch/nwwatchdog/pkg/ladder"
	"github.com/edgewatch/nwwatchdog/pkg/platform"
	"github.com/edgewatch/nwwatchdog/pkg/reporting"
)

// Engine is the single-threaded state machine driving one node's
// recovery ladder. Exactly one Engine exists per process. All of its
// state is mutated only from Update, which the run loop calls
// synchronously, once per tick, with a sleep of Period between calls.
type Engine struct {
	cfg      *config.Config
	platform platform.Platform
	logger   *reporting.Logger
	auditLog *audit.Storage
	actions  *actions.Context

	history    *health.History
	classifier *health.Classifier
	ladder     *ladder.Ladder

	lastConnectionTime time.Time
	period             time.Duration

	episode *audit.EpisodeReport // non-nil while an episode is open
}

// New constructs an Engine anchored at the platform's current instant,
// with an empty fired set and a history window of
// max(1, floor(history_seconds/period)) samples. The recovery ladder is
// built once here from the configured tier thresholds.
func New(cfg *config.Config, p platform.Platform, actionCtx *actions.Context, auditLog *audit.Storage, logger *reporting.Logger) *Engine {
	period := cfg.All.HealthCheckPeriod
	n := int(cfg.All.HealthCheckHistory / period)
	if n < 1 {
		n = 1
	}

	l := ladder.Build(ladder.Params{
		SoftResetStart:       float64(cfg.SoftReboot.ResetStart),
		HardResetStart:       float64(cfg.HardReboot.ResetStart),
		NetworkResetStart:    float64(cfg.NetworkReboot.ResetStart),
		NetworkResetInterval: float64(cfg.NetworkReboot.ResetInterval),
	})

	return &Engine{
		cfg:                cfg,
		platform:           p,
		logger:             logger,
		auditLog:           auditLog,
		actions:            actionCtx,
		history:            health.New(n),
		classifier:         health.NewClassifier(cfg.All.HealthCheckHealthyPerc, cfg.All.HealthCheckRecoveryPerc),
		ladder:             l,
		lastConnectionTime: p.Now(),
		period:             time.Duration(period * float64(time.Second)),
	}
}

// Period returns the configured tick period, for the run loop's sleep.
func (e *Engine) Period() time.Duration {
	return e.period
}

// State returns the engine's current classification.
func (e *Engine) State() health.State {
	return e.classifier.Current()
}

// Update executes exactly one tick of the six-step sequence below. It
// never returns an error: every failure mode inside a tick is logged and
// absorbed, so the Engine loop itself is infallible by construction.
func (e *Engine) Update() {
	// Step 1: sample.
	ok := e.platform.Probe()

	// Step 2: now / elapsed.
	now := e.platform.Now()
	elapsed := now.Sub(e.lastConnectionTime).Seconds()

	// Step 3: update history, compute ratio.
	e.history.Add(ok)
	r := e.history.Ratio()

	if err := e.platform.StrokeSoftwareWatchdog(); err != nil {
		e.logger.Warn("stroke software watchdog failed", "error", err)
	}
	if err := e.platform.TouchHardwareWatchdogToken(); err != nil {
		e.logger.Warn("touch hardware watchdog token failed", "error", err)
	}

	state := e.classifier.Classify(r)

	switch {
	case state == health.Healthy:
		// Step 4: healthy branch. Resets counters, advances the
		// episode anchor, clears the fired set. Does not fall through
		// to the recovery branch on this tick.
		e.onPass(now, elapsed)
	case state == health.Recovering:
		// Step 5: recovery branch. At most one action per tick.
		e.onFail(elapsed)
		e.escalate(elapsed)
	default:
		// Step 6: hysteresis band (Degraded). No action beyond
		// logging; last_connection_time and fired are preserved.
		e.logger.Debug("hysteresis band, no action taken", "ratio", r, "elapsed", elapsed)
	}
}

// onPass resets each of the three counters via set_if_differs, advances
// last_connection_time, and clears the fired set. A transition into
// Healthy also closes any open episode report.
func (e *Engine) onPass(now time.Time, elapsed float64) {
	e.actions.Counters.SetIfDiffers(e.cfg.NetworkCounterPath(), 0)
	e.actions.Counters.SetIfDiffers(e.cfg.SoftCounterPath(), 0)
	e.actions.Counters.SetIfDiffers(e.cfg.HardCounterPath(), 0)

	e.lastConnectionTime = now
	e.ladder.ClearFired()

	e.closeEpisode(audit.StatusRecovered)
	e.logger.Info("healthy, counters reset", "elapsed", elapsed)
}

// onFail is the log-only failure callback; it opens an episode report
// on the first failing tick of a new episode.
func (e *Engine) onFail(elapsed float64) {
	if e.episode == nil {
		e.episode = &audit.EpisodeReport{
			StartTime: e.lastConnectionTime,
			Status:    audit.StatusOngoing,
		}
	}
	e.logger.Warn("recovering, connectivity degraded", "elapsed", elapsed)
}

// escalate consults the ladder for the next unfired due entry and
// invokes it, enforcing the "at most one action per tick" rule.
func (e *Engine) escalate(elapsed float64) {
	entry, ok := e.ladder.NextDue(elapsed)
	if !ok {
		return
	}
	e.ladder.MarkFired(entry)

	e.actions.CurrentEpisode = e.episode
	result := e.actions.Invoke(entry.Action)

	if e.episode != nil {
		e.episode.FiredActions = append(e.episode.FiredActions, audit.FiredAction{
			Action:        entry.Action.String(),
			ThresholdSecs: entry.Threshold,
			ElapsedSecs:   elapsed,
			FiredAt:       e.platform.Now(),
		})
	}

	if result.Suppressed {
		e.logger.Warn("action suppressed by maintenance stop valve", "action", entry.Action.String())
		return
	}

	if entry.Action == ladder.Hard {
		e.maybeCloseOnMediaSwitch()
	}
}

// maybeCloseOnMediaSwitch closes the episode report with the
// media_switch status when the HARD counter has just been reset to 0 by
// a media-switch firing, the operationally interesting boundary for an
// episode's outcome.
func (e *Engine) maybeCloseOnMediaSwitch() {
	if e.actions.Counters.Read(e.cfg.HardCounterPath()) == 0 {
		e.closeEpisode(audit.StatusMediaSwitch)
	}
}

// closeEpisode persists and clears the open episode report, if any.
func (e *Engine) closeEpisode(status audit.EpisodeStatus) {
	if e.episode == nil {
		return
	}
	e.episode.EndTime = e.platform.Now()
	e.episode.Status = status
	e.episode.NetworkCounterAtEnd = e.actions.Counters.Read(e.cfg.NetworkCounterPath())
	e.episode.SoftCounterAtEnd = e.actions.Counters.Read(e.cfg.SoftCounterPath())
	e.episode.HardCounterAtEnd = e.actions.Counters.Read(e.cfg.HardCounterPath())
	e.episode.CurrentMedia = e.platform.CurrentMedia().String()

	if _, err := e.auditLog.SaveReport(e.episode); err != nil {
		e.logger.Warn("failed to save episode report", "error", err)
	}
	e.episode = nil
	e.actions.CurrentEpisode = nil
}

// Scoreboard returns the current counters/media and ladder rows, in the
// same shape `nwwatchdogd status` builds for itself without an Engine.
func (e *Engine) Scoreboard() audit.Scoreboard {
	rows := make([]string, 0, len(e.ladder.Entries()))
	for _, entry := range e.ladder.Entries() {
		rows = append(rows, fmt.Sprintf("%6.0fs  %s", entry.Threshold, entry.Action))
	}
	return audit.Scoreboard{
		CurrentMedia:  e.platform.CurrentMedia().String(),
		NetworkResets: e.actions.Counters.Read(e.cfg.NetworkCounterPath()),
		SoftResets:    e.actions.Counters.Read(e.cfg.SoftCounterPath()),
		HardResets:    e.actions.Counters.Read(e.cfg.HardCounterPath()),
		Ladder:        rows,
	}
}
