// Command nwwatchdogd runs the network-connectivity watchdog daemon
// for field-deployed edge nodes. It ships three subcommands: run (the
// real tick loop), status (a one-shot scoreboard dump), and simulate
// (drives the ladder against Docker containers instead of real
// hardware).
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	nwConfigPath     string
	systemConfigPath string
	verbose          bool
	version          = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "nwwatchdogd",
	Short:   "Network-connectivity watchdog daemon for field-deployed edge nodes",
	Long:    `nwwatchdogd autonomously escalates through a recovery ladder — network service restart, soft reboot, hard power-cycle, boot-medium switch — when an edge node's reverse SSH tunnel stays unhealthy.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&nwConfigPath, "nw-config", "/etc/waggle/nw/config.ini", "path to the network watchdog INI config")
	rootCmd.PersistentFlags().StringVar(&systemConfigPath, "system-config", "/etc/waggle/config.ini", "path to the system INI config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
