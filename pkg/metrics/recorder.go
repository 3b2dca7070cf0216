// Package metrics exposes estimator internals as Prometheus collectors.
//
// Components depend on the Recorder interface; Noop is used when no registry
// is configured.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Cache names used as label values.
const (
	CacheGroundTruth = "ground_truth"
	CacheText        = "text"
	CacheState       = "conversation_state"
)

// Recorder receives estimator events.
type Recorder interface {
	CacheLookup(cache string, hit bool)
	CacheEviction(cache string, n int)
	ConversationLookup(result string)
	TokenizerFallback(family string)
	Calibration(family string, factor float64, sampleCount int)
}

// Noop discards everything.
type Noop struct{}

func (Noop) CacheLookup(string, bool)         {}
func (Noop) CacheEviction(string, int)        {}
func (Noop) ConversationLookup(string)        {}
func (Noop) TokenizerFallback(string)         {}
func (Noop) Calibration(string, float64, int) {}

// OrNoop returns r, or Noop when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}

// Config names the metric namespace and subsystem.
type Config struct {
	Namespace string
	Subsystem string
}

// Prometheus implements Recorder with client_golang collectors.
//
// Metrics:
//   - <ns>_<sub>_cache_hits_total{cache}
//   - <ns>_<sub>_cache_misses_total{cache}
//   - <ns>_<sub>_cache_evictions_total{cache}
//   - <ns>_<sub>_conversation_lookups_total{result}
//   - <ns>_<sub>_tokenizer_fallbacks_total{family}
//   - <ns>_<sub>_calibration_factor{family}
//   - <ns>_<sub>_calibration_samples{family}
type Prometheus struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	evictions   *prometheus.CounterVec
	lookups     *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	factor      *prometheus.GaugeVec
	sampleCount *prometheus.GaugeVec
}

// NewPrometheus creates the collectors and registers them with registerer.
func NewPrometheus(cfg Config, registerer prometheus.Registerer) *Prometheus {
	if cfg.Namespace == "" {
		cfg.Namespace = "tokenest"
	}
	counter := func(name, help, label string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, []string{label})
	}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, []string{"family"})
	}

	p := &Prometheus{
		hits:        counter("cache_hits_total", "Total number of cache hits", "cache"),
		misses:      counter("cache_misses_total", "Total number of cache misses", "cache"),
		evictions:   counter("cache_evictions_total", "Total number of cache evictions", "cache"),
		lookups:     counter("conversation_lookups_total", "Conversation state lookups by result", "result"),
		fallbacks:   counter("tokenizer_fallbacks_total", "Texts counted with the character-ratio fallback", "family"),
		factor:      gauge("calibration_factor", "Current calibration correction factor"),
		sampleCount: gauge("calibration_samples", "Number of calibration samples observed"),
	}

	registerer.MustRegister(p.hits, p.misses, p.evictions, p.lookups, p.fallbacks, p.factor, p.sampleCount)
	return p
}

func (p *Prometheus) CacheLookup(cache string, hit bool) {
	if hit {
		p.hits.WithLabelValues(cache).Inc()
		return
	}
	p.misses.WithLabelValues(cache).Inc()
}

func (p *Prometheus) CacheEviction(cache string, n int) {
	if n <= 0 {
		return
	}
	p.evictions.WithLabelValues(cache).Add(float64(n))
}

func (p *Prometheus) ConversationLookup(result string) {
	p.lookups.WithLabelValues(result).Inc()
}

func (p *Prometheus) TokenizerFallback(family string) {
	p.fallbacks.WithLabelValues(family).Inc()
}

func (p *Prometheus) Calibration(family string, factor float64, sampleCount int) {
	p.factor.WithLabelValues(family).Set(factor)
	p.sampleCount.WithLabelValues(family).Set(float64(sampleCount))
}
