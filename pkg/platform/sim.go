package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/edgewatch/nwwatchdog/pkg/config"
	"github.com/edgewatch/nwwatchdog/pkg/metrics"
	"github.com/edgewatch/nwwatchdog/pkg/reporting"
)

// SimPlatform drives the recovery ladder against disposable Docker
// containers instead of real hardware, for `nwwatchdogd simulate`. It
// drives the docker/docker client directly: network_services become
// named containers standing in for networkd/sshd/ModemManager, and a
// designated "host" container stands in for the node itself so a media
// switch and reboot/poweroff can be driven and observed without
// touching real hardware.
type SimPlatform struct {
	docker *client.Client
	cfg    *config.Config
	logger *reporting.Logger
	pub    *metrics.Publisher

	hostContainer string
	stateFile     string // persists the simulated current medium across process restarts

	mu    sync.Mutex
	media Media
}

// SimConfig configures a SimPlatform.
type SimConfig struct {
	// HostContainer is the name/ID of the container standing in for
	// the node. Reboot/Poweroff act on it; empty disables that action
	// (logged only).
	HostContainer string
	// StateDir holds the small state file recording the simulated
	// current boot medium across `nwwatchdogd simulate` invocations.
	StateDir string
}

// NewSimPlatform constructs a SimPlatform using an existing Docker
// client rather than building its own.
func NewSimPlatform(docker *client.Client, cfg *config.Config, sc SimConfig, pub *metrics.Publisher, logger *reporting.Logger) *SimPlatform {
	stateFile := filepath.Join(sc.StateDir, "sim-current-media")
	sp := &SimPlatform{
		docker:        docker,
		cfg:           cfg,
		logger:        logger,
		pub:           pub,
		hostContainer: sc.HostContainer,
		stateFile:     stateFile,
		media:         Primary,
	}
	sp.loadMedia()
	return sp
}

// Now uses the wall clock. Acceptable for a development simulator; the
// monotonic guarantee matters for production uptime math, not for
// exercising the ladder against short-lived containers.
func (s *SimPlatform) Now() time.Time {
	return time.Now()
}

// Probe considers the uplink healthy if every container named by
// cfg.All.NetworkServices is currently running — a simulated stand-in
// for "reverse SSH tunnel is up" that a developer can break with
// `docker stop <service>`.
func (s *SimPlatform) Probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(s.cfg.All.NetworkServices) == 0 {
		return true
	}
	for _, name := range s.cfg.All.NetworkServices {
		running, err := s.isRunning(ctx, name)
		if err != nil {
			s.logger.Warn("sim probe: inspect failed, treating as down", "container", name, "error", err)
			return false
		}
		if !running {
			return false
		}
	}
	return true
}

func (s *SimPlatform) isRunning(ctx context.Context, name string) (bool, error) {
	info, err := s.docker.ContainerInspect(ctx, name)
	if err != nil {
		return false, err
	}
	return info.State != nil && info.State.Running, nil
}

// RestartServices restarts each named container sequentially: one at a
// time, not as a synchronized fault injection.
func (s *SimPlatform) RestartServices(services []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var firstErr error
	timeout := 10
	for _, name := range services {
		s.logger.Info("sim: restarting container", "container", name)
		if err := s.docker.ContainerRestart(ctx, name, dockercontainer.StopOptions{Timeout: &timeout}); err != nil {
			s.logger.Warn("sim: container restart failed", "container", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("restart %s: %w", name, err)
			}
		}
	}
	return firstErr
}

// FixModemPorts has no simulated counterpart; real modem device nodes
// don't exist inside containers.
func (s *SimPlatform) FixModemPorts() error {
	s.logger.Debug("sim: fix modem ports is a no-op")
	return nil
}

// Reboot simulates a reboot by restarting the host container, the
// simulated analogue of `systemctl reboot`.
func (s *SimPlatform) Reboot() error {
	if s.hostContainer == "" {
		s.logger.Warn("sim: reboot requested but no host container configured")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	timeout := 10
	s.logger.Warn("sim: rebooting host container", "container", s.hostContainer)
	return s.docker.ContainerRestart(ctx, s.hostContainer, dockercontainer.StopOptions{Timeout: &timeout})
}

// Poweroff simulates a poweroff by stopping (not removing) the host
// container, leaving it for a developer to restart manually — the
// simulated analogue of the node sitting powered off until field power
// is cycled.
func (s *SimPlatform) Poweroff() error {
	if s.hostContainer == "" {
		s.logger.Warn("sim: poweroff requested but no host container configured")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	timeout := 10
	s.logger.Warn("sim: stopping host container", "container", s.hostContainer)
	return s.docker.ContainerStop(ctx, s.hostContainer, dockercontainer.StopOptions{Timeout: &timeout})
}

// SetNextBootMedia persists the simulated medium to the state file.
func (s *SimPlatform) SetNextBootMedia(target Media) error {
	s.mu.Lock()
	s.media = target
	s.mu.Unlock()
	return os.WriteFile(s.stateFile, []byte(target.String()), 0o644)
}

// CurrentMedia returns the simulated medium.
func (s *SimPlatform) CurrentMedia() Media {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media
}

func (s *SimPlatform) loadMedia() {
	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		return
	}
	if strings.TrimSpace(string(data)) == Recovery.String() {
		s.media = Recovery
	}
}

// StrokeSoftwareWatchdog and TouchHardwareWatchdogToken have no
// simulated hardware counterpart; logged at debug so a developer can
// still see the tick cadence.
func (s *SimPlatform) StrokeSoftwareWatchdog() error {
	s.logger.Debug("sim: stroke software watchdog (no-op)")
	return nil
}

func (s *SimPlatform) TouchHardwareWatchdogToken() error {
	s.logger.Debug("sim: touch hardware watchdog token (no-op)")
	return nil
}

// PublishMetric delegates to the configured metrics.Publisher, same as
// LinuxPlatform.
func (s *SimPlatform) PublishMetric(name string, value float64, tags map[string]string) {
	s.pub.Publish(name, value, tags)
}

// MarkBootSuccessful has no simulated counterpart; logged only.
func (s *SimPlatform) MarkBootSuccessful() error {
	s.logger.Debug("sim: mark boot successful (no-op)")
	return nil
}
