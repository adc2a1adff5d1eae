package main

import (
	"fmt"
	"os"

	"github.com/edgewatch/nwwatchdog/pkg/actions"
	"github.com/edgewatch/nwwatchdog/pkg/audit"
	"github.com/edgewatch/nwwatchdog/pkg/config"
	"github.com/edgewatch/nwwatchdog/pkg/counterstore"
	"github.com/edgewatch/nwwatchdog/pkg/emergency"
	"github.com/edgewatch/nwwatchdog/pkg/metrics"
	"github.com/edgewatch/nwwatchdog/pkg/platform"
	"github.com/edgewatch/nwwatchdog/pkg/reporting"
)

func newLogger() *reporting.Logger {
	level := reporting.LogLevelInfo
	if verbose {
		level = reporting.LogLevelDebug
	}
	format := reporting.LogFormatText
	if os.Getenv("NWWATCHDOG_LOG_FORMAT") == "json" {
		format = reporting.LogFormatJSON
	}
	return reporting.NewLogger(reporting.LoggerConfig{Level: level, Format: format, Output: os.Stdout})
}

func loadConfig(logger *reporting.Logger, currentMedia platform.Media) (*config.Config, error) {
	cfg, err := config.Load(nwConfigPath, systemConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.CurrentMediaIsRecovery = currentMedia == platform.Recovery
	for _, w := range cfg.Warnings {
		logger.Warn("configuration warning", "warning", w)
	}
	return cfg, nil
}

// buildActionContext wires pkg/counterstore, pkg/emergency, pkg/audit,
// and the given Platform into a single actions.Context shared by the
// Engine for the process lifetime.
func buildActionContext(cfg *config.Config, p platform.Platform, logger *reporting.Logger) (*actions.Context, error) {
	auditDir := cfg.All.SdCardStorageLoc
	if auditDir == "" {
		auditDir = "/var/lib/nwwatchdogd"
	}
	auditLog, err := audit.NewStorage(auditDir+"/episodes", 100, logger.Named("audit"))
	if err != nil {
		return nil, fmt.Errorf("failed to create audit storage: %w", err)
	}

	emergencyCtl := emergency.New(emergency.Config{
		StopFile:             "/run/nwwatchdogd/maintenance-stop",
		EnableSignalHandlers: true,
	}, logger.Named("emergency"))

	return &actions.Context{
		Config:    cfg,
		Counters:  counterstore.New(logger.Named("counters")),
		Platform:  p,
		Emergency: emergencyCtl,
		Audit:     auditLog,
		Logger:    logger,
	}, nil
}

func newMetricsPublisher(logger *reporting.Logger) *metrics.Publisher {
	return metrics.New(metrics.Config{
		PushgatewayURL: os.Getenv("NWWATCHDOG_PUSHGATEWAY_URL"),
		Job:            "nwwatchdogd",
	}, logger)
}
