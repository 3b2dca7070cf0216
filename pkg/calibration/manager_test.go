package calibration

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wycats/SferaDev-sub001/pkg/estimate"
	"github.com/wycats/SferaDev-sub001/pkg/logging"
	"github.com/wycats/SferaDev-sub001/pkg/storage"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(store storage.Store) *Manager {
	return NewManager(Config{Store: store, Now: func() time.Time { return fixedNow }})
}

type failingStore struct {
	sets int
}

func (s *failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (s *failingStore) Set(context.Context, string, []byte) error {
	s.sets++
	return errors.New("disk on fire")
}

func (s *failingStore) Delete(context.Context, string) error { return nil }
func (s *failingStore) Close() error                         { return nil }

func TestManager_Defaults(t *testing.T) {
	m := newManager(nil)

	assert.Equal(t, estimate.ConfidenceLow, m.Confidence("claude"))
	assert.Equal(t, 1.0, m.CorrectionFactor("claude"))
	_, ok := m.Calibration("claude")
	assert.False(t, ok)
}

func TestManager_SingleCalibration(t *testing.T) {
	m := newManager(nil)

	m.Calibrate("claude", 100, 150)

	s, ok := m.Calibration("claude")
	require.True(t, ok)
	assert.InDelta(t, 0.2*1.5+0.8*1.0, s.CorrectionFactor, 1e-9)
	assert.InDelta(t, 0.5, s.Drift, 1e-9)
	assert.Equal(t, 1, s.SampleCount)
	assert.Equal(t, fixedNow, s.LastCalibrated)
}

func TestManager_SequentialCalibrations(t *testing.T) {
	m := newManager(nil)

	m.Calibrate("claude", 100, 110)
	assert.InDelta(t, 1.02, m.CorrectionFactor("claude"), 1e-9)

	m.Calibrate("claude", 100, 120)
	assert.InDelta(t, 1.056, m.CorrectionFactor("claude"), 1e-9)
}

func TestManager_RejectsInvalidInput(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: slog.LevelWarn, Output: &buf})
	m := NewManager(Config{Logger: logger})

	m.Calibrate("claude", 0, 100)
	m.Calibrate("claude", 100, 0)
	m.Calibrate("claude", -5, 100)

	_, ok := m.Calibration("claude")
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "ignoring invalid calibration sample")
}

func TestManager_Confidence(t *testing.T) {
	tests := []struct {
		name    string
		samples int
		ratio   float64
		want    estimate.Confidence
	}{
		{name: "few samples", samples: 3, ratio: 1.0, want: estimate.ConfidenceLow},
		{name: "medium after four", samples: 4, ratio: 1.0, want: estimate.ConfidenceMedium},
		{name: "ten accurate samples is still medium", samples: 10, ratio: 1.0, want: estimate.ConfidenceMedium},
		{name: "high after eleven accurate", samples: 11, ratio: 1.05, want: estimate.ConfidenceHigh},
		{name: "high requires low drift", samples: 20, ratio: 1.10, want: estimate.ConfidenceMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(nil)
			for i := 0; i < tt.samples; i++ {
				m.Calibrate("claude", 1000, int(1000*tt.ratio))
			}
			assert.Equal(t, tt.want, m.Confidence("claude"))
		})
	}
}

func TestManager_LatestDriftDrivesConfidence(t *testing.T) {
	m := newManager(nil)
	for i := 0; i < 15; i++ {
		m.Calibrate("claude", 1000, 1000)
	}
	require.Equal(t, estimate.ConfidenceHigh, m.Confidence("claude"))

	m.Calibrate("claude", 1000, 2000)

	assert.Equal(t, estimate.ConfidenceMedium, m.Confidence("claude"))
}

func TestManager_FamiliesIndependent(t *testing.T) {
	m := newManager(nil)

	m.Calibrate("claude", 100, 200)

	assert.Equal(t, 1.0, m.CorrectionFactor("gpt-4o"))
	assert.Len(t, m.All(), 1)
}

func TestManager_PersistsAndReloads(t *testing.T) {
	store := storage.NewMemoryStore()
	m := newManager(store)
	m.Calibrate("claude", 100, 110)
	m.Calibrate("gpt-4o", 100, 90)

	reloaded := newManager(store)

	all := reloaded.All()
	require.Len(t, all, 2)
	assert.Equal(t, "claude", all[0].ModelFamily)
	assert.InDelta(t, 1.02, all[0].CorrectionFactor, 1e-9)
	assert.Equal(t, "gpt-4o", all[1].ModelFamily)
	assert.Equal(t, 1, all[1].SampleCount)
}

func TestManager_LoadDefaultsBadFields(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), StorageKey,
		[]byte(`[{"modelFamily":"claude","correctionFactor":0,"sampleCount":4,"extra":"ignored"},{"correctionFactor":2}]`)))

	m := newManager(store)

	assert.Equal(t, 1.0, m.CorrectionFactor("claude"))
	assert.Equal(t, estimate.ConfidenceMedium, m.Confidence("claude"))
	assert.Len(t, m.All(), 1)
}

func TestManager_LoadMissingDriftIsConservative(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), StorageKey,
		[]byte(`[{"modelFamily":"claude","correctionFactor":1.1,"sampleCount":20},{"modelFamily":"gpt-4o","sampleCount":20,"drift":null}]`)))

	m := newManager(store)

	for _, family := range []string{"claude", "gpt-4o"} {
		s, ok := m.Calibration(family)
		require.True(t, ok, family)
		assert.Equal(t, 1.0, s.Drift, family)
		assert.Equal(t, estimate.ConfidenceMedium, m.Confidence(family), family)
	}
	assert.InDelta(t, 1.1, m.CorrectionFactor("claude"), 1e-9)
}

func TestManager_LoadKeepsRecordsAroundAMalformedOne(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), StorageKey, []byte(`[
		{"modelFamily":"claude","correctionFactor":1.2,"sampleCount":5,"drift":0.05,"lastCalibrated":"2025-01-01T00:00:00Z"},
		{"modelFamily":"gpt-4o","correctionFactor":0.9,"sampleCount":2,"drift":0.1,"lastCalibrated":12345},
		"not an object",
		{"modelFamily":7}
	]`)))

	m := newManager(store)

	require.Len(t, m.All(), 2)
	claude, ok := m.Calibration("claude")
	require.True(t, ok)
	assert.InDelta(t, 1.2, claude.CorrectionFactor, 1e-9)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), claude.LastCalibrated.UTC())

	gpt, ok := m.Calibration("gpt-4o")
	require.True(t, ok)
	assert.InDelta(t, 0.9, gpt.CorrectionFactor, 1e-9)
	assert.Equal(t, 2, gpt.SampleCount)
	assert.True(t, gpt.LastCalibrated.IsZero())
}

func TestManager_LoadIgnoresGarbage(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), StorageKey, []byte(`{"not":"a list"}`)))

	m := newManager(store)

	assert.Empty(t, m.All())
}

func TestManager_StorageFailuresAreSwallowed(t *testing.T) {
	store := &failingStore{}
	m := newManager(store)

	require.NotPanics(t, func() { m.Calibrate("claude", 100, 120) })

	assert.Equal(t, 1, store.sets)
	assert.InDelta(t, 1.04, m.CorrectionFactor("claude"), 1e-9)
}

func TestManager_Reset(t *testing.T) {
	store := storage.NewMemoryStore()
	m := newManager(store)
	m.Calibrate("claude", 100, 110)
	m.Calibrate("gpt-4o", 100, 110)

	m.Reset("claude")
	assert.Equal(t, 1.0, m.CorrectionFactor("claude"))
	assert.Len(t, newManager(store).All(), 1)

	m.ResetAll()
	assert.Empty(t, m.All())
	assert.Empty(t, newManager(store).All())
}
