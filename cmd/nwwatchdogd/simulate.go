package main

import (
	"time"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"

	"github.com/edgewatch/nwwatchdog/pkg/platform"
	"github.com/edgewatch/nwwatchdog/pkg/watchdog"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Args:  cobra.NoArgs,
	Short: "Run the watchdog against Docker containers instead of real hardware",
	Long:  `Builds the Engine over platform.SimPlatform, driving the recovery ladder against disposable Docker containers standing in for network services and the node itself. Intended for exercising the ladder on a development workstation.`,
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().String("host-container", "", "name of the container standing in for the node (reboot/poweroff targets)")
	simulateCmd.Flags().String("state-dir", "/tmp/nwwatchdogd-sim", "directory for the simulator's persisted boot-medium state")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	logger.Info("nwwatchdogd simulate starting", "version", version)

	hostContainer, _ := cmd.Flags().GetString("host-container")
	stateDir, _ := cmd.Flags().GetString("state-dir")

	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		logger.Fatal("failed to create docker client", "error", err)
		return err
	}
	defer docker.Close()

	pub := newMetricsPublisher(logger)

	bootstrapSim := platform.NewSimPlatform(docker, nil, platform.SimConfig{HostContainer: hostContainer, StateDir: stateDir}, pub, logger)
	currentMedia := bootstrapSim.CurrentMedia()

	cfg, err := loadConfig(logger, currentMedia)
	if err != nil {
		logger.Fatal("configuration error", "error", err)
		return err
	}

	p := platform.NewSimPlatform(docker, cfg, platform.SimConfig{HostContainer: hostContainer, StateDir: stateDir}, pub, logger)

	actionCtx, err := buildActionContext(cfg, p, logger)
	if err != nil {
		logger.Fatal("failed to build action context", "error", err)
		return err
	}

	engine := watchdog.New(cfg, p, actionCtx, actionCtx.Audit, logger.Named("engine"))

	logger.Info("entering simulated tick loop", "period_seconds", cfg.All.HealthCheckPeriod)
	for {
		engine.Update()

		if terminating, reason := actionCtx.Emergency.ShouldTerminate(); terminating {
			logger.Info("termination signal received, exiting simulated tick loop", "reason", reason)
			return nil
		}

		time.Sleep(engine.Period())
	}
}
