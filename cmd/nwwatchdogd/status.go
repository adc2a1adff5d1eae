package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgewatch/nwwatchdog/pkg/audit"
	"github.com/edgewatch/nwwatchdog/pkg/counterstore"
	"github.com/edgewatch/nwwatchdog/pkg/ladder"
	"github.com/edgewatch/nwwatchdog/pkg/platform"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Args:  cobra.NoArgs,
	Short: "Print the current scoreboard: boot medium and reset counters",
	Long:  `One-shot command that loads configuration and prints the current_media, network/soft/hard reset counts, and recovery ladder contents.`,
	RunE:  printStatus,
}

func printStatus(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	bootstrap := platform.NewLinuxPlatform(nil, platform.LinuxConfig{}, newMetricsPublisher(logger), logger)
	currentMedia := bootstrap.CurrentMedia()

	cfg, err := loadConfig(logger, currentMedia)
	if err != nil {
		return err
	}

	l := ladder.Build(ladder.Params{
		SoftResetStart:       float64(cfg.SoftReboot.ResetStart),
		HardResetStart:       float64(cfg.HardReboot.ResetStart),
		NetworkResetStart:    float64(cfg.NetworkReboot.ResetStart),
		NetworkResetInterval: float64(cfg.NetworkReboot.ResetInterval),
	})
	rows := make([]string, 0, len(l.Entries()))
	for _, entry := range l.Entries() {
		rows = append(rows, fmt.Sprintf("%6.0fs  %s", entry.Threshold, entry.Action))
	}

	counters := counterstore.New(logger)
	sb := audit.Scoreboard{
		CurrentMedia:  currentMedia.String(),
		NetworkResets: counters.Read(cfg.NetworkCounterPath()),
		SoftResets:    counters.Read(cfg.SoftCounterPath()),
		HardResets:    counters.Read(cfg.HardCounterPath()),
		Ladder:        rows,
	}

	fmt.Print(audit.FormatText(sb))
	return nil
}
