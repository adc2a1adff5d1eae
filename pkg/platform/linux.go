package platform

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/edgewatch/nwwatchdog/pkg/config"
	"github.com/edgewatch/nwwatchdog/pkg/metrics"
	"github.com/edgewatch/nwwatchdog/pkg/reporting"
)

// LinuxPlatform is the production Platform implementation for a real
// field node: systemd for service lifecycle, nvbootctrl for boot-slot
// selection, ss for liveness, systemd-notify for the software
// watchdog.
type LinuxPlatform struct {
	cfg       *config.Config
	logger    *reporting.Logger
	publisher *metrics.Publisher

	successivePasses int
	successiveWait   time.Duration
}

// LinuxConfig carries the few knobs LinuxPlatform needs beyond the
// shared *config.Config: the "successive passes" probe hardening that
// is left entirely up to the Platform implementation.
type LinuxConfig struct {
	SuccessivePasses int
	SuccessiveWait   time.Duration
}

// NewLinuxPlatform constructs a LinuxPlatform bound to cfg.
func NewLinuxPlatform(cfg *config.Config, lc LinuxConfig, publisher *metrics.Publisher, logger *reporting.Logger) *LinuxPlatform {
	if lc.SuccessivePasses < 1 {
		lc.SuccessivePasses = 1
	}
	return &LinuxPlatform{
		cfg:              cfg,
		logger:           logger,
		publisher:        publisher,
		successivePasses: lc.SuccessivePasses,
		successiveWait:   lc.SuccessiveWait,
	}
}

// Now returns CLOCK_MONOTONIC, unaffected by wall-clock changes (NTP
// step adjustments, manual clock sets) more directly than time.Now()
// alone, which is wall-clock on most platforms absent extra care.
func (p *LinuxPlatform) Now() time.Time {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		p.logger.Warn("clock_gettime(CLOCK_MONOTONIC) failed, falling back to wall clock", "error", err)
		return time.Now()
	}
	return time.Unix(ts.Sec, ts.Nsec)
}

// Probe checks every configured rssh_addrs alias plus the reverse
// tunnel from config.ini, healthy if any is up (logical OR). Each
// alias's result is also published as sys.rssh_up{server=<alias>}=0|1.
func (p *LinuxPlatform) Probe() bool {
	anyUp := false

	for _, addr := range p.cfg.All.RsshAddrs {
		up := p.checkSuccessivePasses(addr.Host, addr.Port)
		p.publisher.Publish("sys.rssh_up", boolToFloat(up), map[string]string{"server": addr.Alias})
		if up {
			anyUp = true
		}
	}

	if p.cfg.ReverseTunnel.Host != "" {
		up := p.checkSuccessivePasses(p.cfg.ReverseTunnel.Host, p.cfg.ReverseTunnel.Port)
		p.publisher.Publish("sys.rssh_up", boolToFloat(up), map[string]string{"server": "beekeeper"})
		if up {
			anyUp = true
		}
	}

	return anyUp
}

// checkSuccessivePasses requires SuccessivePasses consecutive
// successful sshConnectionOK calls, spaced SuccessiveWait apart,
// before declaring the address healthy.
func (p *LinuxPlatform) checkSuccessivePasses(host string, port int) bool {
	for i := 0; i < p.successivePasses; i++ {
		if !p.sshConnectionOK(host, port) {
			return false
		}
		if i < p.successivePasses-1 && p.successiveWait > 0 {
			time.Sleep(p.successiveWait)
		}
	}
	return true
}

// sshConnectionOK resolves host, then looks for an `established`
// socket to host:port in `ss -t state established`.
func (p *LinuxPlatform) sshConnectionOK(host string, port int) bool {
	ips, err := net.LookupHost(host)
	if err != nil || len(ips) == 0 {
		return false
	}
	want := fmt.Sprintf("%s:%d", ips[0], port)

	out, err := exec.Command("ss", "-t", "state", "established").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), want)
}

// RestartServices issues a single systemctl restart for all named units.
func (p *LinuxPlatform) RestartServices(services []string) error {
	if len(services) == 0 {
		return nil
	}
	args := append([]string{"restart"}, services...)
	return exec.Command("systemctl", args...).Run()
}

// FixModemPorts chowns/chmods every /dev/ttyACM* device node.
func (p *LinuxPlatform) FixModemPorts() error {
	ports, err := filepath.Glob("/dev/ttyACM*")
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		return nil
	}
	if err := exec.Command("chown", append([]string{"root:root"}, ports...)...).Run(); err != nil {
		return err
	}
	return exec.Command("chmod", append([]string{"660"}, ports...)...).Run()
}

// Reboot issues `systemctl reboot`, to allow shutdown units to clean
// up rather than a hard reset.
func (p *LinuxPlatform) Reboot() error {
	return exec.Command("systemctl", "reboot").Run()
}

// Poweroff issues `systemctl poweroff`.
func (p *LinuxPlatform) Poweroff() error {
	return exec.Command("systemctl", "poweroff").Run()
}

// SetNextBootMedia selects the next-boot slot via nvbootctrl.
func (p *LinuxPlatform) SetNextBootMedia(target Media) error {
	slot := "0"
	if target == Recovery {
		slot = "1"
	}
	return exec.Command("nvbootctrl", "set-active-boot-slot", slot).Run()
}

// CurrentMedia reads the active boot slot; slot "1" means Recovery.
func (p *LinuxPlatform) CurrentMedia() Media {
	out, err := exec.Command("nvbootctrl", "get-current-slot").Output()
	if err != nil {
		p.logger.Warn("nvbootctrl get-current-slot failed, assuming primary", "error", err)
		return Primary
	}
	if strings.Contains(string(out), "1") {
		return Recovery
	}
	return Primary
}

// StrokeSoftwareWatchdog notifies systemd's watchdog supervisor.
func (p *LinuxPlatform) StrokeSoftwareWatchdog() error {
	return exec.Command("systemd-notify", "WATCHDOG=1").Run()
}

// TouchHardwareWatchdogToken updates the mtime of config.ini's
// [watchdog] ssh_ok_file, a no-op if unconfigured.
func (p *LinuxPlatform) TouchHardwareWatchdogToken() error {
	path := p.cfg.Watchdog.SSHOkFile
	if path == "" {
		return nil
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		if os.IsNotExist(err) {
			f, createErr := os.Create(path)
			if createErr != nil {
				return createErr
			}
			return f.Close()
		}
		return err
	}
	return nil
}

// PublishMetric delegates to the configured metrics.Publisher.
func (p *LinuxPlatform) PublishMetric(name string, value float64, tags map[string]string) {
	p.publisher.Publish(name, value, tags)
}

// MarkBootSuccessful runs `nvbootctrl mark-boot-successful`: tells the
// bootloader this boot should not be rolled back on the next power cycle.
func (p *LinuxPlatform) MarkBootSuccessful() error {
	return exec.Command("nvbootctrl", "mark-boot-successful").Run()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
