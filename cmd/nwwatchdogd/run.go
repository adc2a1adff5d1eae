package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/edgewatch/nwwatchdog/pkg/platform"
	"github.com/edgewatch/nwwatchdog/pkg/watchdog"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Run the watchdog tick loop against the real platform",
	Long:  `Loads configuration, marks the current boot successful, and runs the Engine's tick loop until a termination signal is received or a recovery action reboots/powers off the node.`,
	RunE:  runWatchdog,
}

func init() {
	runCmd.Flags().Int("successive-passes", 1, "number of consecutive successful probes required before declaring an alias healthy")
	runCmd.Flags().Duration("successive-wait", 0, "delay between successive probe passes")
}

func runWatchdog(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	logger.Info("nwwatchdogd starting", "version", version)

	successivePasses, _ := cmd.Flags().GetInt("successive-passes")
	successiveWait, _ := cmd.Flags().GetDuration("successive-wait")

	pub := newMetricsPublisher(logger)

	// current_media is queried once at startup.
	bootstrap := platform.NewLinuxPlatform(nil, platform.LinuxConfig{SuccessivePasses: successivePasses, SuccessiveWait: successiveWait}, pub, logger)
	currentMedia := bootstrap.CurrentMedia()

	cfg, err := loadConfig(logger, currentMedia)
	if err != nil {
		logger.Fatal("configuration error", "error", err)
		return err
	}

	p := platform.NewLinuxPlatform(cfg, platform.LinuxConfig{SuccessivePasses: successivePasses, SuccessiveWait: successiveWait}, pub, logger)

	// An unmarked boot can itself be rolled back by the bootloader on
	// the next power cycle, which is what makes the HARD media-switch
	// fallback meaningful.
	if err := p.MarkBootSuccessful(); err != nil {
		logger.Warn("mark boot successful failed", "error", err)
	}

	actionCtx, err := buildActionContext(cfg, p, logger)
	if err != nil {
		logger.Fatal("failed to build action context", "error", err)
		return err
	}

	engine := watchdog.New(cfg, p, actionCtx, actionCtx.Audit, logger.Named("engine"))

	logger.Info("entering tick loop", "period_seconds", cfg.All.HealthCheckPeriod)
	for {
		engine.Update()

		if terminating, reason := actionCtx.Emergency.ShouldTerminate(); terminating {
			logger.Info("termination signal received, exiting tick loop", "reason", reason)
			return nil
		}

		time.Sleep(engine.Period())
	}
}
