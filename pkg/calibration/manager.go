// Package calibration learns, per model family, how far raw counter
// estimates are from the token counts the provider actually reports.
package calibration

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/wycats/SferaDev-sub001/pkg/estimate"
	"github.com/wycats/SferaDev-sub001/pkg/logging"
	"github.com/wycats/SferaDev-sub001/pkg/metrics"
	"github.com/wycats/SferaDev-sub001/pkg/storage"
)

const (
	// Alpha is the EMA weight of the newest observation.
	Alpha = 0.2

	// StorageKey is the key the calibration table is persisted under.
	StorageKey = "tokenCalibration"

	highConfidenceSamples   = 10
	highConfidenceDrift     = 0.10
	mediumConfidenceSamples = 3
)

// State is the learned correction for one model family.
type State struct {
	ModelFamily      string    `json:"modelFamily"`
	CorrectionFactor float64   `json:"correctionFactor"`
	SampleCount      int       `json:"sampleCount"`
	Drift            float64   `json:"drift"`
	LastCalibrated   time.Time `json:"lastCalibrated"`
}

// Manager owns the calibration table. The whole table is loaded at
// construction and rewritten after every change; storage failures are logged
// and otherwise ignored. It is not safe for concurrent use.
type Manager struct {
	states  map[string]*State
	store   storage.Store
	now     func() time.Time
	logger  logging.Logger
	metrics metrics.Recorder
}

// Config configures a Manager. Store may be nil for in-memory operation.
type Config struct {
	Store   storage.Store
	Now     func() time.Time
	Logger  logging.Logger
	Metrics metrics.Recorder
}

// NewManager creates a Manager and loads any persisted table.
func NewManager(cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &Manager{
		states:  make(map[string]*State),
		store:   cfg.Store,
		now:     cfg.Now,
		logger:  logging.OrDisabled(cfg.Logger).With("component", "calibration"),
		metrics: metrics.OrNoop(cfg.Metrics),
	}
	m.load()
	return m
}

// Calibrate folds one (estimated, actual) observation into family's factor.
// Non-positive inputs are rejected with a warning and leave state unchanged.
func (m *Manager) Calibrate(family string, estimated, actual int) {
	if estimated <= 0 || actual <= 0 {
		m.logger.Warn("ignoring invalid calibration sample",
			"family", family, "estimated", estimated, "actual", actual)
		return
	}

	ratio := float64(actual) / float64(estimated)
	s, ok := m.states[family]
	if !ok {
		s = &State{ModelFamily: family, CorrectionFactor: 1.0}
		m.states[family] = s
	}
	s.CorrectionFactor = Alpha*ratio + (1-Alpha)*s.CorrectionFactor
	s.Drift = math.Abs(1 - ratio)
	s.SampleCount++
	s.LastCalibrated = m.now()

	m.logger.Debug("calibrated",
		"family", family, "ratio", ratio, "factor", s.CorrectionFactor,
		"drift", s.Drift, "samples", s.SampleCount)
	m.metrics.Calibration(family, s.CorrectionFactor, s.SampleCount)
	m.save()
}

// Calibration returns a copy of family's state.
func (m *Manager) Calibration(family string) (State, bool) {
	s, ok := m.states[family]
	if !ok {
		return State{}, false
	}
	return *s, true
}

// CorrectionFactor returns family's factor, 1.0 when uncalibrated.
func (m *Manager) CorrectionFactor(family string) float64 {
	if s, ok := m.states[family]; ok {
		return s.CorrectionFactor
	}
	return 1.0
}

// Confidence is high when more than 10 samples have been seen and the latest
// drift is under 10%, medium after more than 3 samples, low otherwise.
func (m *Manager) Confidence(family string) estimate.Confidence {
	s, ok := m.states[family]
	if !ok {
		return estimate.ConfidenceLow
	}
	switch {
	case s.SampleCount > highConfidenceSamples && s.Drift < highConfidenceDrift:
		return estimate.ConfidenceHigh
	case s.SampleCount > mediumConfidenceSamples:
		return estimate.ConfidenceMedium
	default:
		return estimate.ConfidenceLow
	}
}

// All returns every state ordered by family.
func (m *Manager) All() []State {
	out := make([]State, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelFamily < out[j].ModelFamily })
	return out
}

// Reset forgets family's calibration.
func (m *Manager) Reset(family string) {
	if _, ok := m.states[family]; !ok {
		return
	}
	delete(m.states, family)
	m.save()
}

// ResetAll forgets every calibration.
func (m *Manager) ResetAll() {
	m.states = make(map[string]*State)
	m.save()
}

func (m *Manager) load() {
	if m.store == nil {
		return
	}
	data, err := m.store.Get(context.Background(), StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("failed to load calibration state", "error", err)
		}
		return
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		m.logger.Warn("discarding unreadable calibration state", "error", err)
		return
	}
	for i, raw := range records {
		s, ok := decodeState(raw)
		if !ok {
			m.logger.Warn("skipping unreadable calibration record", "index", i)
			continue
		}
		m.states[s.ModelFamily] = s
	}
	m.logger.Debug("loaded calibration state", "families", len(m.states))
}

// decodeState reads one persisted record field by field. A missing or
// malformed field gets its most conservative value: factor 1.0, no samples,
// drift 1.0, zero time. A record without a family is unusable.
func decodeState(raw json.RawMessage) (*State, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	s := &State{CorrectionFactor: 1.0, Drift: 1.0}
	if err := json.Unmarshal(fields["modelFamily"], &s.ModelFamily); err != nil || s.ModelFamily == "" {
		return nil, false
	}

	var factor float64
	if json.Unmarshal(fields["correctionFactor"], &factor) == nil && factor > 0 && !math.IsInf(factor, 0) {
		s.CorrectionFactor = factor
	}
	var samples int
	if json.Unmarshal(fields["sampleCount"], &samples) == nil && samples > 0 {
		s.SampleCount = samples
	}
	drift := -1.0
	if json.Unmarshal(fields["drift"], &drift) == nil && drift >= 0 && !math.IsInf(drift, 0) {
		s.Drift = drift
	}
	var last time.Time
	if json.Unmarshal(fields["lastCalibrated"], &last) == nil {
		s.LastCalibrated = last
	}
	return s, true
}

func (m *Manager) save() {
	if m.store == nil {
		return
	}
	data, err := json.Marshal(m.All())
	if err != nil {
		m.logger.Warn("failed to encode calibration state", "error", err)
		return
	}
	if err := m.store.Set(context.Background(), StorageKey, data); err != nil {
		m.logger.Warn("failed to persist calibration state", "error", err)
	}
}
