package ladder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/nwwatchdog/pkg/ladder"
)

func scenarioParams() ladder.Params {
	return ladder.Params{
		SoftResetStart:       100,
		HardResetStart:       200,
		NetworkResetStart:    30,
		NetworkResetInterval: 15,
	}
}

func TestBuildOrdersByThresholdThenInsertion(t *testing.T) {
	l := ladder.Build(scenarioParams())
	entries := l.Entries()

	var thresholds []float64
	for _, e := range entries {
		thresholds = append(thresholds, e.Threshold)
	}
	assert.Equal(t, []float64{30, 45, 60, 75, 90, 100, 200}, thresholds)
	assert.Equal(t, ladder.Soft, entries[5].Action)
	assert.Equal(t, ladder.Hard, entries[6].Action)
}

func TestNextDueReturnsEarliestUnfired(t *testing.T) {
	l := ladder.Build(scenarioParams())

	entry, ok := l.NextDue(35)
	require.True(t, ok)
	assert.Equal(t, 30.0, entry.Threshold)

	l.MarkFired(entry)
	_, ok = l.NextDue(35)
	assert.False(t, ok)
}

func TestNextDueNoneWhenNothingDue(t *testing.T) {
	l := ladder.Build(scenarioParams())
	_, ok := l.NextDue(10)
	assert.False(t, ok)
}

func TestOnlyOneEntryFiresPerSimultaneousThreshold(t *testing.T) {
	l := ladder.Build(ladder.Params{SoftResetStart: 50, HardResetStart: 50})
	entry1, ok := l.NextDue(60)
	require.True(t, ok)
	assert.Equal(t, ladder.Soft, entry1.Action)

	l.MarkFired(entry1)
	entry2, ok := l.NextDue(60)
	require.True(t, ok)
	assert.Equal(t, ladder.Hard, entry2.Action)
}

func TestClearFiredResetsEpisodeState(t *testing.T) {
	l := ladder.Build(scenarioParams())
	entry, ok := l.NextDue(35)
	require.True(t, ok)
	l.MarkFired(entry)
	assert.Equal(t, 1, l.FiredCount())

	l.ClearFired()
	assert.Equal(t, 0, l.FiredCount())
	_, ok = l.NextDue(35)
	assert.True(t, ok)
}

func TestNonPositiveIntervalSchedulesNoNetworkEntries(t *testing.T) {
	l := ladder.Build(ladder.Params{SoftResetStart: 100, HardResetStart: 200, NetworkResetStart: 30, NetworkResetInterval: 0})
	networkEntries := 0
	for _, e := range l.Entries() {
		if e.Action == ladder.Network {
			networkEntries++
		}
	}
	assert.Equal(t, 0, networkEntries)
}
