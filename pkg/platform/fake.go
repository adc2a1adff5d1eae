package platform

import (
	"sync"
	"time"
)

// FakePlatform is a Platform implementation for tests: it never touches
// real hardware, records every call it receives, and plays back a
// scripted sequence of Probe results.
type FakePlatform struct {
	mu sync.Mutex

	// ProbeResults is consumed in order by Probe and then cycles back to
	// the start. If empty, Probe always returns true.
	ProbeResults []bool
	probeIdx     int

	// clock backs Now: a fixed instant that only moves when Advance is
	// called, so tests control elapsed time exactly.
	clock time.Time

	Media Media

	// Calls records the name of every method invoked, in order.
	Calls []string

	RestartServicesErr    error
	FixModemPortsErr      error
	RebootErr             error
	PoweroffErr           error
	SetNextBootMediaErr   error
	StrokeErr             error
	TouchWatchdogErr      error
	MarkBootSuccessfulErr error

	RestartedServices [][]string
	PublishedMetrics  []PublishedMetric
}

// PublishedMetric records one PublishMetric call.
type PublishedMetric struct {
	Name  string
	Value float64
	Tags  map[string]string
}

// NewFakePlatform returns a FakePlatform with its clock seeded at t.
func NewFakePlatform(t time.Time) *FakePlatform {
	return &FakePlatform{clock: t, Media: Primary}
}

// Advance moves the fake clock forward, as real time elapsing between
// ticks would.
func (f *FakePlatform) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(d)
}

func (f *FakePlatform) record(name string) {
	f.Calls = append(f.Calls, name)
}

func (f *FakePlatform) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Now")
	return f.clock
}

func (f *FakePlatform) Probe() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Probe")
	if len(f.ProbeResults) == 0 {
		return true
	}
	v := f.ProbeResults[f.probeIdx%len(f.ProbeResults)]
	f.probeIdx++
	return v
}

func (f *FakePlatform) RestartServices(services []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RestartServices")
	f.RestartedServices = append(f.RestartedServices, services)
	return f.RestartServicesErr
}

func (f *FakePlatform) FixModemPorts() error {
	f.record("FixModemPorts")
	return f.FixModemPortsErr
}

func (f *FakePlatform) Reboot() error {
	f.record("Reboot")
	return f.RebootErr
}

func (f *FakePlatform) Poweroff() error {
	f.record("Poweroff")
	return f.PoweroffErr
}

func (f *FakePlatform) SetNextBootMedia(target Media) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetNextBootMedia")
	if f.SetNextBootMediaErr != nil {
		return f.SetNextBootMediaErr
	}
	f.Media = target
	return nil
}

func (f *FakePlatform) CurrentMedia() Media {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CurrentMedia")
	return f.Media
}

func (f *FakePlatform) StrokeSoftwareWatchdog() error {
	f.record("StrokeSoftwareWatchdog")
	return f.StrokeErr
}

func (f *FakePlatform) TouchHardwareWatchdogToken() error {
	f.record("TouchHardwareWatchdogToken")
	return f.TouchWatchdogErr
}

func (f *FakePlatform) PublishMetric(name string, value float64, tags map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PublishMetric")
	f.PublishedMetrics = append(f.PublishedMetrics, PublishedMetric{Name: name, Value: value, Tags: tags})
}

func (f *FakePlatform) MarkBootSuccessful() error {
	f.record("MarkBootSuccessful")
	return f.MarkBootSuccessfulErr
}

var _ Platform = (*FakePlatform)(nil)
