package actions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/nwwatchdog/pkg/actions"
	"github.com/edgewatch/nwwatchdog/pkg/audit"
	"github.com/edgewatch/nwwatchdog/pkg/config"
	"github.com/edgewatch/nwwatchdog/pkg/counterstore"
	"github.com/edgewatch/nwwatchdog/pkg/emergency"
	"github.com/edgewatch/nwwatchdog/pkg/ladder"
	"github.com/edgewatch/nwwatchdog/pkg/platform"
	"github.com/edgewatch/nwwatchdog/pkg/reporting"
)

func newTestLogger() *reporting.Logger {
	return reporting.NewLogger(reporting.LoggerConfig{Level: reporting.LogLevelError, Format: reporting.LogFormatText})
}

func newTestContext(t *testing.T, p platform.Platform) (*actions.Context, string) {
	t.Helper()
	dir := t.TempDir()
	logger := newTestLogger()

	cfg := config.DefaultConfig()
	cfg.SoftReboot.MaxResets = 2
	cfg.HardReboot.MaxResets = 2
	cfg.SoftReboot.CurrentResetFile = dir + "/soft"
	cfg.HardReboot.CurrentResetFile = dir + "/hard"
	cfg.NetworkReboot.CurrentResetFile = dir + "/network"
	cfg.All.NetworkServices = []string{"modem-manager"}

	store, err := audit.NewStorage(dir+"/episodes", 10, logger)
	require.NoError(t, err)

	ctx := &actions.Context{
		Config:    cfg,
		Counters:  counterstore.New(logger),
		Platform:  p,
		Emergency: emergency.New(emergency.Config{StopFile: dir + "/stop"}, logger),
		Audit:     store,
		Logger:    logger,
	}
	return ctx, dir
}

func TestRunNetworkRestartsServicesAndIncrements(t *testing.T) {
	p := platform.NewFakePlatform(time.Unix(0, 0))
	ctx, _ := newTestContext(t, p)

	result := ctx.Invoke(ladder.Network)

	assert.Equal(t, ladder.Network, result.Action)
	assert.False(t, result.Suppressed)
	require.Len(t, p.RestartedServices, 1)
	assert.Equal(t, []string{"modem-manager"}, p.RestartedServices[0])
	assert.Equal(t, int64(1), ctx.Counters.Read(ctx.Config.NetworkCounterPath()))
}

func TestRunSoftIncrementsThenRebootsUnderLimit(t *testing.T) {
	p := platform.NewFakePlatform(time.Unix(0, 0))
	ctx, _ := newTestContext(t, p)

	result := ctx.Invoke(ladder.Soft)

	assert.Equal(t, ladder.Soft, result.Action)
	assert.False(t, result.Suppressed)
	assert.Equal(t, int64(1), ctx.Counters.Read(ctx.Config.SoftCounterPath()))
	assert.Contains(t, p.Calls, "Reboot")
}

func TestRunSoftSuppressesIncrementAtLimit(t *testing.T) {
	p := platform.NewFakePlatform(time.Unix(0, 0))
	ctx, _ := newTestContext(t, p)
	ctx.Counters.Write(ctx.Config.SoftCounterPath(), int64(ctx.Config.SoftReboot.MaxResets))

	ctx.Invoke(ladder.Soft)

	assert.Equal(t, int64(ctx.Config.SoftReboot.MaxResets), ctx.Counters.Read(ctx.Config.SoftCounterPath()))
	assert.NotContains(t, p.Calls, "Reboot")
}

func TestRunSoftSuppressedDuringMaintenance(t *testing.T) {
	p := platform.NewFakePlatform(time.Unix(0, 0))
	ctx, _ := newTestContext(t, p)
	ctx.Emergency.CreateStopFile()
	defer ctx.Emergency.RemoveStopFile()

	result := ctx.Invoke(ladder.Soft)

	assert.True(t, result.Suppressed)
	assert.NotContains(t, p.Calls, "Reboot")
	assert.Equal(t, int64(0), ctx.Counters.Read(ctx.Config.SoftCounterPath()))
}

func TestRunHardIncrementsUnconditionallyAndPowersOffUnderLimit(t *testing.T) {
	p := platform.NewFakePlatform(time.Unix(0, 0))
	ctx, _ := newTestContext(t, p)

	ctx.Invoke(ladder.Hard)

	assert.Equal(t, int64(1), ctx.Counters.Read(ctx.Config.HardCounterPath()))
	assert.Contains(t, p.Calls, "Poweroff")
	assert.NotContains(t, p.Calls, "SetNextBootMedia")
}

func TestRunHardSwitchesMediaAndClearsCountersAtLimit(t *testing.T) {
	p := platform.NewFakePlatform(time.Unix(0, 0))
	ctx, _ := newTestContext(t, p)
	ctx.Counters.Write(ctx.Config.NetworkCounterPath(), 5)
	ctx.Counters.Write(ctx.Config.SoftCounterPath(), 3)
	ctx.Counters.Write(ctx.Config.HardCounterPath(), int64(ctx.Config.HardReboot.MaxResets))

	ctx.Invoke(ladder.Hard)

	assert.Contains(t, p.Calls, "SetNextBootMedia")
	assert.Contains(t, p.Calls, "Reboot")
	assert.NotContains(t, p.Calls, "Poweroff")
	assert.Equal(t, platform.Recovery, p.Media)
	assert.Equal(t, int64(0), ctx.Counters.Read(ctx.Config.NetworkCounterPath()))
	assert.Equal(t, int64(0), ctx.Counters.Read(ctx.Config.SoftCounterPath()))
	assert.Equal(t, int64(0), ctx.Counters.Read(ctx.Config.HardCounterPath()))
}

func TestRunHardAbortsCounterClearWhenMediaSwitchFails(t *testing.T) {
	p := platform.NewFakePlatform(time.Unix(0, 0))
	p.SetNextBootMediaErr = assertError{}
	ctx, _ := newTestContext(t, p)
	ctx.Counters.Write(ctx.Config.HardCounterPath(), int64(ctx.Config.HardReboot.MaxResets))

	ctx.Invoke(ladder.Hard)

	assert.NotContains(t, p.Calls, "Reboot")
	assert.Equal(t, int64(ctx.Config.HardReboot.MaxResets)+1, ctx.Counters.Read(ctx.Config.HardCounterPath()))
}

func TestRunHardSuppressedDuringMaintenance(t *testing.T) {
	p := platform.NewFakePlatform(time.Unix(0, 0))
	ctx, _ := newTestContext(t, p)
	ctx.Emergency.CreateStopFile()
	defer ctx.Emergency.RemoveStopFile()

	result := ctx.Invoke(ladder.Hard)

	assert.True(t, result.Suppressed)
	assert.Empty(t, p.Calls)
	assert.Equal(t, int64(0), ctx.Counters.Read(ctx.Config.HardCounterPath()))
}

func TestRunSoftFlushesCurrentEpisodeBeforeReboot(t *testing.T) {
	p := platform.NewFakePlatform(time.Unix(0, 0))
	ctx, dir := newTestContext(t, p)
	ctx.CurrentEpisode = &audit.EpisodeReport{
		StartTime: time.Unix(100, 0),
		Status:    audit.StatusOngoing,
	}

	ctx.Invoke(ladder.Soft)

	entries, err := ctx.Audit.ListReports()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	_ = dir
}

type assertError struct{}

func (assertError) Error() string { return "set next boot media failed" }
