package cctv

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/u2s/internal/core"
	"github.com/yourusername/u2s/internal/models"
	"github.com/yourusername/u2s/internal/reconcile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CycleRecorder receives the record of every finished cycle
type CycleRecorder interface {
	Record(record core.CycleRecord)
}

// CycleObserver is notified of every finished cycle (metrics)
type CycleObserver interface {
	ObserveCycle(record core.CycleRecord)
}

// Config holds the configuration for Syncer
type Config struct {
	Source       CameraSource
	Store        MonitorStore
	Reconciler   *reconcile.Reconciler
	Recorder     CycleRecorder
	Observer     CycleObserver
	Logger       *zap.Logger
	CycleTimeout time.Duration // 0이면 제한 없음
}

// Syncer runs one reconciliation cycle: authenticate, fetch both sides, reconcile
type Syncer struct {
	source       CameraSource
	store        MonitorStore
	reconciler   *reconcile.Reconciler
	recorder     CycleRecorder
	observer     CycleObserver
	logger       *zap.Logger
	cycleTimeout time.Duration
}

// NewSyncer creates a new Syncer
func NewSyncer(config Config) (*Syncer, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("camera source is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("monitor store is required")
	}
	if config.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Syncer{
		source:       config.Source,
		store:        config.Store,
		reconciler:   config.Reconciler,
		recorder:     config.Recorder,
		observer:     config.Observer,
		logger:       logger,
		cycleTimeout: config.CycleTimeout,
	}, nil
}

// RunCycle performs one cycle. Fetch and auth errors fail the cycle;
// per-camera apply errors are only logged by the reconciler.
func (s *Syncer) RunCycle(ctx context.Context) error {
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cycleTimeout)
		defer cancel()
	}

	record := core.CycleRecord{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}
	logger := s.logger.With(zap.String("cycle_id", record.ID))
	logger.Info("Starting sync cycle")

	result, cameras, monitors, err := s.sync(ctx, logger)

	record.FinishedAt = time.Now()
	record.Duration = record.FinishedAt.Sub(record.StartedAt)
	record.Cameras = cameras
	record.Monitors = monitors
	if err != nil {
		record.Outcome = core.OutcomeFailure
		record.Error = err.Error()
	} else {
		record.Outcome = core.OutcomeSuccess
		record.Created = result.Created
		record.Updated = result.Updated
		record.Unchanged = result.Unchanged
		record.Failed = result.Failed
	}

	if s.recorder != nil {
		s.recorder.Record(record)
	}
	if s.observer != nil {
		s.observer.ObserveCycle(record)
	}

	if err != nil {
		return err
	}

	logger.Info("Sync cycle completed",
		zap.Duration("duration", record.Duration),
		zap.Int("cameras", cameras),
		zap.Int("monitors", monitors),
	)
	return nil
}

// sync authenticates, fetches cameras and monitors in parallel and reconciles them
func (s *Syncer) sync(ctx context.Context, logger *zap.Logger) (reconcile.Result, int, int, error) {
	if err := s.source.Authenticate(ctx); err != nil {
		return reconcile.Result{}, 0, 0, fmt.Errorf("authentication failed: %w", err)
	}
	logger.Debug("Authentication successful")

	var (
		cameras  []models.Camera
		monitors []models.Monitor
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cameras, err = s.source.FetchCameras(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch cameras: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		monitors, err = s.store.FetchMonitors(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch monitors: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return reconcile.Result{}, len(cameras), len(monitors), err
	}

	logger.Info("Inventory fetched",
		zap.Int("cameras", len(cameras)),
		zap.Int("monitors", len(monitors)),
	)

	result := s.reconciler.Reconcile(ctx, cameras, monitors)
	return result, len(cameras), len(monitors), nil
}
