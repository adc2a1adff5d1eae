package watchdog_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/nwwatchdog/pkg/actions"
	"github.com/edgewatch/nwwatchdog/pkg/audit"
	"github.com/edgewatch/nwwatchdog/pkg/config"
	"github.com/edgewatch/nwwatchdog/pkg/counterstore"
	"github.com/edgewatch/nwwatchdog/pkg/emergency"
	"github.com/edgewatch/nwwatchdog/pkg/platform"
	"github.com/edgewatch/nwwatchdog/pkg/reporting"
	"github.com/edgewatch/nwwatchdog/pkg/watchdog"
)

// baseConfig builds the shared scenario configuration: period=15,
// history=60 (N=4), healthy=0.7, recovery=0.3, soft_start=100,
// hard_start=200, network_start=30, network_interval=15.
func baseConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.All.HealthCheckPeriod = 15
	cfg.All.HealthCheckHistory = 60
	cfg.All.HealthCheckHealthyPerc = 0.7
	cfg.All.HealthCheckRecoveryPerc = 0.3
	cfg.All.NetworkServices = []string{"modem-manager"}
	cfg.NetworkReboot.ResetStart = 30
	cfg.NetworkReboot.ResetInterval = 15
	cfg.NetworkReboot.CurrentResetFile = dir + "/network"
	cfg.SoftReboot.ResetStart = 100
	cfg.SoftReboot.MaxResets = 1
	cfg.SoftReboot.CurrentResetFile = dir + "/soft"
	cfg.HardReboot.ResetStart = 200
	cfg.HardReboot.MaxResets = 1
	cfg.HardReboot.CurrentResetFile = dir + "/hard"
	return cfg
}

// testRig is one "boot": a freshly constructed Engine over counter files
// that may already hold state from a prior rig, standing in for a
// process restart after a terminating Reboot/Poweroff call.
type testRig struct {
	engine    *watchdog.Engine
	fake      *platform.FakePlatform
	actionCtx *actions.Context
}

func newRig(t *testing.T, cfg *config.Config, probeResults []bool) *testRig {
	t.Helper()
	logger := reporting.NewLogger(reporting.LoggerConfig{Level: reporting.LogLevelError, Format: reporting.LogFormatText})

	fake := platform.NewFakePlatform(time.Unix(0, 0))
	fake.ProbeResults = probeResults

	testDir := t.TempDir()
	store, err := audit.NewStorage(testDir+"/episodes", 10, logger)
	require.NoError(t, err)

	actionCtx := &actions.Context{
		Config:    cfg,
		Counters:  counterstore.New(logger),
		Platform:  fake,
		Emergency: emergency.New(emergency.Config{StopFile: testDir + "/stop"}, logger),
		Audit:     store,
		Logger:    logger,
	}

	engine := watchdog.New(cfg, fake, actionCtx, store, logger)
	return &testRig{engine: engine, fake: fake, actionCtx: actionCtx}
}

// tick advances the fake clock by the engine's period and runs one Update.
func (r *testRig) tick() {
	r.fake.Advance(r.engine.Period())
	r.engine.Update()
}

func (r *testRig) tickN(n int) {
	for i := 0; i < n; i++ {
		r.tick()
	}
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}

// Always healthy: zero actions fire, counters stay at zero.
func TestScenarioAlwaysHealthy(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)
	rig := newRig(t, cfg, []bool{true})

	rig.tickN(100)

	assert.Zero(t, countCalls(rig.fake.Calls, "RestartServices"))
	assert.Zero(t, countCalls(rig.fake.Calls, "Reboot"))
	assert.Zero(t, countCalls(rig.fake.Calls, "Poweroff"))
	assert.Equal(t, int64(0), rig.actionCtx.Counters.Read(cfg.NetworkCounterPath()))
	assert.Equal(t, int64(0), rig.actionCtx.Counters.Read(cfg.SoftCounterPath()))
	assert.Equal(t, int64(0), rig.actionCtx.Counters.Read(cfg.HardCounterPath()))
}

// Immediate total failure, carried across three simulated boots: the
// first run escalates NETWORK x5, then SOFT (reboot); the second boot's
// SOFT firing is skipped once the limit is reached, then HARD fires as a
// poweroff; the third boot's HARD firing hits the limit and performs the
// media switch, clearing all three counters.
func TestScenarioImmediateTotalFailureThroughMediaSwitch(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)

	boot1 := newRig(t, cfg, []bool{false})
	boot1.tickN(7) // elapsed reaches 105: NETWORK at 30,45,60,75,90 then SOFT at 100

	assert.Equal(t, 5, countCalls(boot1.fake.Calls, "RestartServices"))
	assert.Equal(t, 1, countCalls(boot1.fake.Calls, "Reboot"))
	assert.Equal(t, int64(1), boot1.actionCtx.Counters.Read(cfg.SoftCounterPath()))

	boot2 := newRig(t, cfg, []bool{false})
	boot2.tickN(14) // walks back through NETWORK and SOFT (now skipped) up to HARD at 200

	assert.Zero(t, countCalls(boot2.fake.Calls, "Reboot"), "soft limit already reached, no further reboot")
	assert.Equal(t, int64(1), boot2.actionCtx.Counters.Read(cfg.SoftCounterPath()), "soft counter not incremented once the limit is reached")
	assert.Equal(t, 1, countCalls(boot2.fake.Calls, "Poweroff"))
	assert.Equal(t, int64(1), boot2.actionCtx.Counters.Read(cfg.HardCounterPath()))

	boot3 := newRig(t, cfg, []bool{false})
	boot3.tickN(14)

	assert.Equal(t, 1, countCalls(boot3.fake.Calls, "SetNextBootMedia"))
	assert.Equal(t, 1, countCalls(boot3.fake.Calls, "Reboot"))
	assert.Zero(t, countCalls(boot3.fake.Calls, "Poweroff"))
	assert.Equal(t, platform.Recovery, boot3.fake.Media)
	assert.Equal(t, int64(0), boot3.actionCtx.Counters.Read(cfg.NetworkCounterPath()))
	assert.Equal(t, int64(0), boot3.actionCtx.Counters.Read(cfg.SoftCounterPath()))
	assert.Equal(t, int64(0), boot3.actionCtx.Counters.Read(cfg.HardCounterPath()))
}

// Flapping in the hysteresis band: an alternating probe holds the
// ratio at 0.5, between recovery (0.3) and healthy (0.7), so the engine
// stays Degraded and never fires an action or advances its anchor.
func TestScenarioFlappingInHysteresisBand(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)
	// N=2 so each alternating sample replaces exactly half the window:
	// the ratio locks onto 0.5 from the very first tick, with no cold-start
	// dip below the recovery threshold.
	cfg.All.HealthCheckHistory = 30
	rig := newRig(t, cfg, []bool{true, false})

	rig.tickN(20)

	assert.Zero(t, countCalls(rig.fake.Calls, "RestartServices"))
	assert.Zero(t, countCalls(rig.fake.Calls, "Reboot"))
	assert.Zero(t, countCalls(rig.fake.Calls, "Poweroff"))
	assert.Equal(t, int64(0), rig.actionCtx.Counters.Read(cfg.NetworkCounterPath()))
}

// Brief recovery cancels escalation: a failure burst fires NETWORK
// at least once, a short recovery clears the fired set, and once failure
// resumes the same NETWORK threshold fires again instead of staying
// suppressed.
func TestScenarioBriefRecoveryCancelsEscalation(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)

	probes := make([]bool, 0, 20)
	for i := 0; i < 9; i++ {
		probes = append(probes, false)
	}
	for i := 0; i < 4; i++ {
		probes = append(probes, true)
	}
	for i := 0; i < 10; i++ {
		probes = append(probes, false)
	}
	rig := newRig(t, cfg, probes)

	rig.tickN(9)
	firstBurstNetworkFires := countCalls(rig.fake.Calls, "RestartServices")
	require.GreaterOrEqual(t, firstBurstNetworkFires, 1)

	rig.tickN(4) // recovers: ratio climbs back to 1.0, fired set clears and the anchor advances

	rig.tickN(3) // resumes failing; ratio falls from Healthy through Degraded back into Recovering
	secondBurstNetworkFires := countCalls(rig.fake.Calls, "RestartServices") - firstBurstNetworkFires
	assert.GreaterOrEqual(t, secondBurstNetworkFires, 1, "NETWORK must fire again after the fired set was cleared by recovery")
}

// Simultaneous thresholds: two ladder entries sharing a threshold
// resolve one per tick, in construction order, never both in the same
// tick.
func TestScenarioSimultaneousThresholds(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)
	cfg.SoftReboot.ResetStart = 50
	cfg.HardReboot.ResetStart = 50
	cfg.NetworkReboot.ResetInterval = 0

	rig := newRig(t, cfg, []bool{false})

	rig.tick()
	rig.tick()
	rig.tick() // elapsed = 45, nothing due yet
	assert.Zero(t, countCalls(rig.fake.Calls, "Reboot"))
	assert.Zero(t, countCalls(rig.fake.Calls, "Poweroff"))

	rig.tick() // elapsed = 60, both SOFT and HARD are due: only one fires
	afterFirst := append([]string(nil), rig.fake.Calls...)
	softFired := countCalls(afterFirst, "Reboot") == 1
	hardFired := countCalls(afterFirst, "Poweroff") == 1
	assert.True(t, softFired != hardFired, "exactly one of SOFT/HARD should fire on the shared threshold tick")

	rig.tick() // the other fires on the next failing tick
	assert.Equal(t, 1, countCalls(rig.fake.Calls, "Reboot"))
	assert.Equal(t, 1, countCalls(rig.fake.Calls, "Poweroff"))
}

// Counter file corruption: a pre-seeded garbage soft counter reads
// as zero, the SOFT action proceeds as if starting fresh, and writes a
// clean "1" back.
func TestScenarioCounterFileCorruption(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.SoftCounterPath()), 0o755))
	require.NoError(t, os.WriteFile(cfg.SoftCounterPath(), []byte("garbage"), 0o644))

	rig := newRig(t, cfg, []bool{false})
	rig.tickN(7) // reaches the SOFT threshold at 100

	assert.Equal(t, int64(1), rig.actionCtx.Counters.Read(cfg.SoftCounterPath()))
	assert.Equal(t, 1, countCalls(rig.fake.Calls, "Reboot"))
}
