// Package config loads the watchdog's two INI files into a validated,
// immutable Config: section sub-structs, a DefaultConfig, and an
// accumulate-then-report Validate pass that separates hard errors from
// soft warnings.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// RsshAddr is one reverse-SSH alias entry from the [all] section's
// rssh_addrs list: an "(alias, host, port)" triple.
type RsshAddr struct {
	Alias string
	Host  string
	Port  int
}

// AllSection mirrors the nw/config.ini [all] section.
type AllSection struct {
	HealthCheckPeriod       float64 `ini:"health_check_period"`
	HealthCheckHistory      float64 `ini:"health_check_history"`
	HealthCheckHealthyPerc  float64 `ini:"health_check_healthy_perc"`
	HealthCheckRecoveryPerc float64 `ini:"health_check_recovery_perc"`
	RsshAddrsRaw            string  `ini:"rssh_addrs"`
	NetworkServicesRaw      string  `ini:"network_services"`
	SdCardStorageLoc        string  `ini:"sd_card_storage_loc"`

	RsshAddrs       []RsshAddr `ini:"-"`
	NetworkServices []string   `ini:"-"`
}

// NetworkRebootSection mirrors nw/config.ini [network-reboot].
type NetworkRebootSection struct {
	ResetStart       int    `ini:"reset_start"`
	ResetInterval    int    `ini:"reset_interval"`
	CurrentResetFile string `ini:"current_reset_file"`
}

// SoftRebootSection mirrors nw/config.ini [soft-reboot].
type SoftRebootSection struct {
	ResetStart       int    `ini:"reset_start"`
	MaxResets        int    `ini:"max_resets"`
	CurrentResetFile string `ini:"current_reset_file"`
}

// HardRebootSection mirrors nw/config.ini [hard-reboot]. Same shape as
// SoftRebootSection but kept distinct so the two tiers can never be
// mixed up by the compiler.
type HardRebootSection struct {
	ResetStart       int    `ini:"reset_start"`
	MaxResets        int    `ini:"max_resets"`
	CurrentResetFile string `ini:"current_reset_file"`
}

// ReverseTunnelSection mirrors config.ini [reverse-tunnel].
type ReverseTunnelSection struct {
	Host string `ini:"host"`
	Port int    `ini:"port"`
}

// WatchdogSection mirrors config.ini [watchdog].
type WatchdogSection struct {
	SSHOkFile string `ini:"ssh_ok_file"`
}

// Config is the fully loaded, validated configuration consumed by
// pkg/watchdog and pkg/actions. Apart from CurrentMediaIsRecovery, which
// the caller sets once right after Load, it is not modified after Load
// returns.
type Config struct {
	All           AllSection
	NetworkReboot NetworkRebootSection
	SoftReboot    SoftRebootSection
	HardReboot    HardRebootSection
	ReverseTunnel ReverseTunnelSection
	Watchdog      WatchdogSection

	// CurrentMediaIsRecovery records which medium the node is currently
	// booted from, so the counter file paths below can apply the
	// sd_card_storage_loc prefix consistently.
	CurrentMediaIsRecovery bool

	// Warnings accumulates non-fatal validation findings. Populated by
	// Validate; callers decide whether to log and continue.
	Warnings []string
}

// DefaultConfig returns the documented defaults for the [all] section.
func DefaultConfig() *Config {
	return &Config{
		All: AllSection{
			HealthCheckPeriod:       15.0,
			HealthCheckHistory:      600.0,
			HealthCheckHealthyPerc:  0.7,
			HealthCheckRecoveryPerc: 0.3,
		},
	}
}

// Load reads nwPath and systemPath, applies ini.v1 section mapping, and
// runs Validate. Any error here is meant to be fatal to the caller:
// configuration errors at startup should log and exit non-zero.
func Load(nwPath, systemPath string) (*Config, error) {
	cfg := DefaultConfig()

	nwFile, err := ini.Load(nwPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", nwPath, err)
	}
	if err := nwFile.Section("all").MapTo(&cfg.All); err != nil {
		return nil, fmt.Errorf("failed to map [all] section: %w", err)
	}
	if err := nwFile.Section("network-reboot").MapTo(&cfg.NetworkReboot); err != nil {
		return nil, fmt.Errorf("failed to map [network-reboot] section: %w", err)
	}
	if err := nwFile.Section("soft-reboot").MapTo(&cfg.SoftReboot); err != nil {
		return nil, fmt.Errorf("failed to map [soft-reboot] section: %w", err)
	}
	if err := nwFile.Section("hard-reboot").MapTo(&cfg.HardReboot); err != nil {
		return nil, fmt.Errorf("failed to map [hard-reboot] section: %w", err)
	}

	cfg.All.RsshAddrs, err = parseRsshAddrs(cfg.All.RsshAddrsRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rssh_addrs: %w", err)
	}
	cfg.All.NetworkServices = splitList(cfg.All.NetworkServicesRaw)

	sysFile, err := ini.Load(systemPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", systemPath, err)
	}
	if err := sysFile.Section("reverse-tunnel").MapTo(&cfg.ReverseTunnel); err != nil {
		return nil, fmt.Errorf("failed to map [reverse-tunnel] section: %w", err)
	}
	if err := sysFile.Section("watchdog").MapTo(&cfg.Watchdog); err != nil {
		return nil, fmt.Errorf("failed to map [watchdog] section: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs the hard-error checks that must fail Load, and
// populates Warnings with soft issues a caller may log and proceed
// past.
func (c *Config) Validate() error {
	var errs []string
	c.Warnings = nil

	if c.All.HealthCheckPeriod <= 0 {
		errs = append(errs, "health_check_period must be positive")
	}
	if c.All.HealthCheckRecoveryPerc > c.All.HealthCheckHealthyPerc {
		errs = append(errs, "health_check_recovery_perc must be <= health_check_healthy_perc")
	}
	if len(c.All.RsshAddrs) == 0 {
		errs = append(errs, "rssh_addrs must list at least one reverse-SSH alias")
	}
	if c.SoftReboot.CurrentResetFile == "" {
		errs = append(errs, "soft-reboot.current_reset_file is required")
	}
	if c.HardReboot.CurrentResetFile == "" {
		errs = append(errs, "hard-reboot.current_reset_file is required")
	}
	if c.NetworkReboot.CurrentResetFile == "" {
		errs = append(errs, "network-reboot.current_reset_file is required")
	}

	last := float64(c.SoftReboot.ResetStart)
	if hard := float64(c.HardReboot.ResetStart); hard < last {
		last = hard
	}
	if float64(c.NetworkReboot.ResetStart) >= last {
		c.Warnings = append(c.Warnings,
			"network-reboot.reset_start is >= the sooner of soft/hard reset_start; the network tier will never fire")
	}
	if c.NetworkReboot.ResetInterval <= 0 {
		c.Warnings = append(c.Warnings,
			"network-reboot.reset_interval is non-positive; no network tier entries will be scheduled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NetworkCounterPath, SoftCounterPath, and HardCounterPath apply the
// sd_card_storage_loc prefix only when the node is currently running
// from the primary medium.
func (c *Config) NetworkCounterPath() string { return c.prefixed(c.NetworkReboot.CurrentResetFile) }
func (c *Config) SoftCounterPath() string    { return c.prefixed(c.SoftReboot.CurrentResetFile) }
func (c *Config) HardCounterPath() string    { return c.prefixed(c.HardReboot.CurrentResetFile) }

func (c *Config) prefixed(path string) string {
	if c.CurrentMediaIsRecovery || c.All.SdCardStorageLoc == "" {
		return path
	}
	return filepath.Join(c.All.SdCardStorageLoc, path)
}

func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseRsshAddrs parses a comma-separated list of "alias:host:port"
// triples.
func parseRsshAddrs(raw string) ([]RsshAddr, error) {
	var out []RsshAddr
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("rssh_addrs entry %q must be alias:host:port", entry)
		}
		var port int
		if _, err := fmt.Sscanf(parts[2], "%d", &port); err != nil {
			return nil, fmt.Errorf("rssh_addrs entry %q has a non-numeric port: %w", entry, err)
		}
		out = append(out, RsshAddr{Alias: parts[0], Host: parts[1], Port: port})
	}
	return out, nil
}
