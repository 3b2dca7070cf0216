package di

import (
	"fmt"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wycats/SferaDev-sub001/pkg/calibration"
	"github.com/wycats/SferaDev-sub001/pkg/config"
	"github.com/wycats/SferaDev-sub001/pkg/conversation"
	"github.com/wycats/SferaDev-sub001/pkg/estimator"
	"github.com/wycats/SferaDev-sub001/pkg/groundtruth"
	"github.com/wycats/SferaDev-sub001/pkg/logging"
	"github.com/wycats/SferaDev-sub001/pkg/metrics"
	"github.com/wycats/SferaDev-sub001/pkg/models"
	"github.com/wycats/SferaDev-sub001/pkg/sequence"
	"github.com/wycats/SferaDev-sub001/pkg/storage"
	"github.com/wycats/SferaDev-sub001/pkg/tokens"
)

// App bundles what the command-line tool needs.
type App struct {
	Estimator *estimator.Hybrid
	Models    *models.Registry
	Metrics   *prometheus.Registry
	Settings  config.Settings
}

// NewApp assembles an App.
func NewApp(h *estimator.Hybrid, registry *models.Registry, metricsRegistry *prometheus.Registry, settings config.Settings) *App {
	return &App{Estimator: h, Models: registry, Metrics: metricsRegistry, Settings: settings}
}

// ProviderSet holds every provider used by InitializeApp.
var ProviderSet = wire.NewSet(
	ProvideConfigManager,
	ProvideSettings,
	ProvideLogger,
	ProvideStore,
	ProvideModelRegistry,
	ProvideMetricsRegistry,
	ProvideRecorder,
	ProvideCounter,
	ProvideGroundTruth,
	ProvideConversations,
	ProvideCalibration,
	ProvideSequences,
	ProvideEstimator,
	NewApp,
)

func ProvideConfigManager() config.Manager {
	return config.NewConfigManager()
}

func ProvideSettings(mgr config.Manager) (config.Settings, error) {
	return config.Load(mgr)
}

func ProvideLogger() logging.Logger {
	return logging.GetGlobalLogger()
}

// ProvideStore opens the configured persistence backend. The cleanup closes it.
func ProvideStore(settings config.Settings) (storage.Store, func(), error) {
	store, err := storage.Open(settings.StoreBackend, settings.StorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", settings.StoreBackend, err)
	}
	return store, func() { store.Close() }, nil
}

func ProvideModelRegistry(settings config.Settings) (*models.Registry, error) {
	registry := models.NewRegistry()
	if settings.ModelsFile != "" {
		if err := registry.LoadOverrides(settings.ModelsFile); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func ProvideMetricsRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func ProvideRecorder(registry *prometheus.Registry) metrics.Recorder {
	return metrics.NewPrometheus(metrics.Config{Namespace: "tokenest"}, registry)
}

func ProvideCounter(settings config.Settings, logger logging.Logger, recorder metrics.Recorder) *tokens.Counter {
	return tokens.NewCounter(tokens.CounterConfig{
		MemoCapacity: settings.TextCacheCapacity,
		Logger:       logger,
		Metrics:      recorder,
	})
}

func ProvideGroundTruth(settings config.Settings, recorder metrics.Recorder) *groundtruth.Cache {
	return groundtruth.New(settings.CacheCapacity, recorder)
}

func ProvideConversations(settings config.Settings, logger logging.Logger, recorder metrics.Recorder) *conversation.Tracker {
	return conversation.NewTracker(conversation.Config{
		Capacity: settings.StateCapacity,
		TTL:      settings.StateTTL,
		Logger:   logger,
		Metrics:  recorder,
	})
}

func ProvideCalibration(store storage.Store, logger logging.Logger, recorder metrics.Recorder) *calibration.Manager {
	return calibration.NewManager(calibration.Config{Store: store, Logger: logger, Metrics: recorder})
}

func ProvideSequences(settings config.Settings) *sequence.Tracker {
	return sequence.NewTracker(settings.SequenceGap, nil)
}

func ProvideEstimator(
	counter *tokens.Counter,
	cache *groundtruth.Cache,
	conversations *conversation.Tracker,
	calib *calibration.Manager,
	sequences *sequence.Tracker,
	logger logging.Logger,
) *estimator.Hybrid {
	return estimator.New(estimator.Config{
		Counter:       counter,
		Cache:         cache,
		Conversations: conversations,
		Calibration:   calib,
		Sequences:     sequences,
		Logger:        logger,
	})
}
