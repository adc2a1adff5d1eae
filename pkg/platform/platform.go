// Package platform defines the capability interface the watchdog core
// depends on and ships two concrete implementations: LinuxPlatform for
// a real field node, and SimPlatform for driving the recovery ladder
// against disposable Docker containers in development.
package platform

import "time"

// Media identifies which bootable image the node is currently running
// from. The HARD action's terminal tier flips between the two.
type Media int

const (
	Primary Media = iota
	Recovery
)

// String renders the medium for logs.
func (m Media) String() string {
	if m == Recovery {
		return "RECOVERY"
	}
	return "PRIMARY"
}

// Other returns the medium the HARD action should switch to.
func (m Media) Other() Media {
	if m == Primary {
		return Recovery
	}
	return Primary
}

// Platform is the capability surface the watchdog core consumes. Every
// method is best-effort from the caller's point of view: failures are
// returned to the caller (or, where a method has no error result, logged
// by the implementation) and never panic or block past the operation's
// own timeout.
type Platform interface {
	// Now returns a monotonic instant, unaffected by wall-clock changes.
	Now() time.Time

	// Probe reports whether a healthy uplink is currently observable.
	// Must not block longer than roughly one tick period.
	Probe() bool

	// RestartServices best-effort restarts the named services/units and
	// returns once the attempt completes.
	RestartServices(services []string) error

	// FixModemPorts applies ownership/permission fixes to known modem
	// device nodes. No-op if none are present.
	FixModemPorts() error

	// Reboot requests an orderly reboot. Callers must assume the
	// process may not survive this call.
	Reboot() error

	// Poweroff requests an orderly poweroff. Same caveat as Reboot.
	Poweroff() error

	// SetNextBootMedia commits the next-boot medium selection durably
	// before returning. May fail, in which case the episode continues
	// and a later HARD firing will retry.
	SetNextBootMedia(target Media) error

	// CurrentMedia reports the medium the node is running from. The
	// commands query it at startup to place the counter files; the HARD
	// action queries it again to pick its switch target, and the Engine
	// queries it when it closes an episode report.
	CurrentMedia() Media

	// StrokeSoftwareWatchdog is called every tick; best-effort.
	StrokeSoftwareWatchdog() error

	// TouchHardwareWatchdogToken updates the mtime on a known path, if
	// one is configured.
	TouchHardwareWatchdogToken() error

	// PublishMetric is fire-and-forget; errors are logged, not raised.
	PublishMetric(name string, value float64, tags map[string]string)

	// MarkBootSuccessful tells the bootloader this boot should not be
	// rolled back on the next power cycle.
	MarkBootSuccessful() error
}
