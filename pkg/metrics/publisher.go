// Package metrics implements the emission side of the Platform metric
// contract: it wraps client_golang's prometheus/push subpackage to push
// named gauges to a Pushgateway instance.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/edgewatch/nwwatchdog/pkg/reporting"
)

// Config configures a Publisher.
type Config struct {
	// PushgatewayURL is the base URL of the Pushgateway instance.
	// Publishing is a no-op (logged at debug level on each call) when
	// empty.
	PushgatewayURL string
	// Job is the Pushgateway job label.
	Job string
	// Timeout bounds each push call; publishing is fire-and-forget, so a
	// failed push is logged, never raised.
	Timeout time.Duration
}

// Publisher implements the Publish side of the Platform metric contract.
// It is safe for concurrent use, though in this daemon it is only ever
// called from the single-threaded Engine tick.
type Publisher struct {
	cfg    Config
	logger *reporting.Logger

	mu     sync.Mutex
	gauges map[string]*prometheus.GaugeVec
}

// New creates a Publisher. A zero-value PushgatewayURL is valid: Publish
// becomes a logged no-op, useful for `nwwatchdogd simulate` runs that
// don't have a Pushgateway handy.
func New(cfg Config, logger *reporting.Logger) *Publisher {
	if cfg.Job == "" {
		cfg.Job = "nwwatchdogd"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Publisher{cfg: cfg, logger: logger, gauges: make(map[string]*prometheus.GaugeVec)}
}

// Publish emits name=value with tags as labels, e.g.
// sys.rssh_up{server="uplink-a"} = 1. Errors are logged and swallowed,
// never returned to the caller.
func (p *Publisher) Publish(name string, value float64, tags map[string]string) {
	if p.cfg.PushgatewayURL == "" {
		p.logger.Debug("metric publish skipped, no pushgateway configured", "name", name, "value", value)
		return
	}

	labelNames := make([]string, 0, len(tags))
	labels := make(prometheus.Labels, len(tags))
	for k, v := range tags {
		labelNames = append(labelNames, k)
		labels[k] = v
	}

	gauge := p.gaugeVecFor(name, labelNames)
	gauge.With(labels).Set(value)

	pusher := push.New(p.cfg.PushgatewayURL, p.cfg.Job).
		Client(&http.Client{Timeout: p.cfg.Timeout}).
		Collector(gauge).
		Grouping("instance", p.cfg.Job)

	if err := pusher.Push(); err != nil {
		p.logger.Warn("metric push failed", "name", name, "error", err)
	}
}

// gaugeVecFor returns the cached GaugeVec for name, creating it with
// labelNames on first use. The vector is cached per metric name for
// the process lifetime, the same shape as a package-level
// prometheus.NewGaugeVec registration, just done lazily since label
// names (per-alias tags) aren't known until the first publish.
func (p *Publisher) gaugeVecFor(name string, labelNames []string) *prometheus.GaugeVec {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := fmt.Sprintf("%s|%v", name, labelNames)
	if g, ok := p.gauges[key]; ok {
		return g
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: metricSafeName(name),
		Help: "nwwatchdogd emitted metric " + name,
	}, labelNames)
	p.gauges[key] = g
	return g
}

// metricSafeName rewrites dotted metric names like "sys.rssh_up" into
// the underscore form Prometheus metric names require.
func metricSafeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '.' || r == '-' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
