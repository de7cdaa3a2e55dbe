package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"voice-analyze/config"
	"voice-analyze/health"
	"voice-analyze/inference"
	"voice-analyze/observe"
	"voice-analyze/service"
	"voice-analyze/speakers"
	"voice-analyze/utils"
	"voice-analyze/voice"

	"github.com/mdobak/go-xerrors"
)

// app owns everything built at startup.
type app struct {
	cfg       *config.Config
	svc       *service.Service
	metrics   *observe.Metrics
	provider  *observe.Provider
	sentiment *inference.TFServingClient
}

// newApp loads models and opens the speaker store. Missing model files are
// logged and leave the matching pipeline disabled; a store that cannot be
// opened is fatal.
func newApp(ctx context.Context, cfg *config.Config, withMetrics bool) (*app, error) {
	logger := utils.GetLogger()
	a := &app{cfg: cfg, metrics: observe.NewNoopMetrics()}

	if withMetrics && cfg.Server.Metrics {
		provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		metrics, err := observe.NewMetrics(provider.MeterProvider)
		if err != nil {
			_ = provider.Shutdown(ctx)
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		a.provider, a.metrics = provider, metrics
	}

	backend, err := speakers.OpenBackend(ctx, speakers.BackendConfig{
		Kind:       cfg.Store.Backend,
		Path:       cfg.Store.Path,
		DSN:        cfg.Store.DSN,
		Database:   cfg.Store.Database,
		Collection: cfg.Store.Collection,
	})
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("open speaker store: %w", err)
	}
	store, err := speakers.Open(ctx, backend)
	if err != nil {
		_ = backend.Close()
		a.close(ctx)
		return nil, err
	}
	logger.InfoContext(ctx, "speaker store opened",
		slog.String("backend", cfg.Store.Backend),
		slog.Int("speakers", store.Len()),
	)

	deps := service.Dependencies{
		Store:   store,
		Decoder: voice.NewWAVDecoder(cfg.Pipeline.TargetSampleRate),
	}

	if deps.RecognitionParams, err = voice.LoadPreprocessingParams(cfg.Models.RecognitionParams); err != nil {
		logger.WarnContext(ctx, "recognition pipeline disabled", slog.Any("error", xerrors.New(err)))
	}
	if deps.SentimentParams, err = voice.LoadPreprocessingParams(cfg.Models.SentimentParams); err != nil {
		logger.WarnContext(ctx, "sentiment preprocessing disabled", slog.Any("error", xerrors.New(err)))
	}

	codec, err := voice.LoadLabelCodec(cfg.Models.SentimentLabels)
	if err != nil {
		logger.WarnContext(ctx, "sentiment label codec not loaded", slog.Any("error", xerrors.New(err)))
	}
	var model voice.Model
	if cfg.Models.SentimentURL != "" {
		a.sentiment = inference.NewTFServingClient(cfg.Models.SentimentURL, cfg.Models.SentimentModel)
		model = a.sentiment
	} else {
		logger.WarnContext(ctx, "no sentiment model endpoint configured")
	}
	if codec != nil && model != nil {
		deps.Classifier = voice.NewClassifier(model, codec)
	}

	svc, err := service.New(deps, service.Options{
		Workers:        cfg.Pipeline.Workers,
		RequestTimeout: cfg.Pipeline.RequestTimeout,
		Threshold:      cfg.Pipeline.IdentifyThreshold,
		Metrics:        a.metrics,
		Logger:         logger,
	})
	if err != nil {
		_ = store.Close()
		a.close(ctx)
		return nil, err
	}
	a.svc = svc

	if a.provider != nil {
		if err := a.metrics.ObserveSpeakers(store.Len); err != nil {
			logger.WarnContext(ctx, "speaker gauge not registered", slog.Any("error", err))
		}
	}

	ready := svc.Ready()
	logger.InfoContext(ctx, "pipelines loaded",
		slog.Bool("sentiment", ready.Sentiment),
		slog.Bool("recognition", ready.Recognition),
	)
	return a, nil
}

// healthHandler reports the store as required and the models as optional.
func (a *app) healthHandler() *health.Handler {
	checkers := []health.Checker{
		{Name: "speaker_store", Check: a.svc.Store().Ping},
		{Name: "recognition", Optional: true, Check: func(context.Context) error {
			if !a.svc.Ready().Recognition {
				return voice.ErrModelNotLoaded
			}
			return nil
		}},
		{Name: "sentiment", Optional: true, Check: func(ctx context.Context) error {
			if !a.svc.Ready().Sentiment {
				return voice.ErrModelNotLoaded
			}
			if a.sentiment != nil {
				return a.sentiment.HealthCheck(ctx)
			}
			return nil
		}},
	}
	return health.New(checkers...)
}

func (a *app) close(ctx context.Context) {
	var errs []error
	if a.svc != nil {
		errs = append(errs, a.svc.Close())
	}
	if a.provider != nil {
		errs = append(errs, a.provider.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		utils.GetLogger().ErrorContext(ctx, "shutdown failed", slog.Any("error", xerrors.New(err)))
	}
}
