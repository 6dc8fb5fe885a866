package reconcile

import (
	"context"

	"github.com/yourusername/u2s/internal/hls"
	"github.com/yourusername/u2s/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Action is what reconciliation does for one camera
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// MonitorWriter applies monitors to the CCTV platform
type MonitorWriter interface {
	CreateMonitor(ctx context.Context, monitor models.Monitor) error
	UpdateMonitor(ctx context.Context, monitor models.Monitor) error
}

// StreamProber checks a camera stream before its monitor is applied
type StreamProber interface {
	Probe(ctx context.Context, url string) (*hls.ProbeResult, error)
}

// ApplyObserver is notified of every apply
type ApplyObserver interface {
	ObserveApply(action string, err error)
}

// Change is the planned operation for one camera
type Change struct {
	Camera  models.Camera
	Monitor models.Monitor
	Action  Action
}

// Outcome is the result of applying one change
type Outcome struct {
	MID    string
	Action Action
	Err    error
}

// Result summarizes a reconciliation pass
type Result struct {
	Created   int
	Updated   int
	Unchanged int
	Failed    int
	Outcomes  []Outcome
}

// Config holds the Reconciler dependencies and options
type Config struct {
	Writer        MonitorWriter
	Template      models.Monitor
	Logger        *zap.Logger
	Concurrency   int
	SkipUnchanged bool
	Prober        StreamProber
	Observer      ApplyObserver
}

// Reconciler makes the platform monitors match the provider cameras.
// It only creates and updates; monitors without a camera are left alone.
type Reconciler struct {
	writer        MonitorWriter
	template      models.Monitor
	logger        *zap.Logger
	concurrency   int
	skipUnchanged bool
	prober        StreamProber
	observer      ApplyObserver
}

// New creates a Reconciler
func New(config Config) *Reconciler {
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		writer:        config.Writer,
		template:      config.Template.Clone(),
		logger:        logger,
		concurrency:   concurrency,
		skipUnchanged: config.SkipUnchanged,
		prober:        config.Prober,
		observer:      config.Observer,
	}
}

// Plan matches cameras against monitors and computes the target monitor of
// every camera. It performs no I/O and does not modify its inputs.
func (r *Reconciler) Plan(cameras []models.Camera, monitors []models.Monitor) []Change {
	index := make(map[string]int, len(monitors))
	for i, monitor := range monitors {
		// first match wins
		if _, exists := index[monitor.MID]; !exists {
			index[monitor.MID] = i
		}
	}

	changes := make([]Change, 0, len(cameras))
	for _, camera := range cameras {
		mid := models.MonitorID(camera.Number)

		i, found := index[mid]
		if !found {
			target := r.template.Clone()
			target.ApplyCamera(camera)
			changes = append(changes, Change{Camera: camera, Monitor: target, Action: ActionCreate})
			continue
		}

		existing := monitors[i]
		target := existing.Clone()
		target.ApplyCamera(camera)

		action := ActionUpdate
		if r.skipUnchanged && target.Equal(existing) {
			action = ActionSkip
		}
		changes = append(changes, Change{Camera: camera, Monitor: target, Action: action})
	}

	return changes
}

// Reconcile plans and applies every change. Apply failures are logged and
// counted but never returned: one failing camera does not stop the others.
func (r *Reconciler) Reconcile(ctx context.Context, cameras []models.Camera, monitors []models.Monitor) Result {
	changes := r.Plan(cameras, monitors)
	outcomes := make([]Outcome, len(changes))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, change := range changes {
		i, change := i, change
		g.Go(func() error {
			outcomes[i] = r.apply(ctx, change)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Outcomes: outcomes}
	for _, outcome := range outcomes {
		switch {
		case outcome.Err != nil:
			result.Failed++
		case outcome.Action == ActionCreate:
			result.Created++
		case outcome.Action == ActionUpdate:
			result.Updated++
		case outcome.Action == ActionSkip:
			result.Unchanged++
		}
	}

	r.logger.Info("Reconciliation finished",
		zap.Int("cameras", len(cameras)),
		zap.Int("monitors", len(monitors)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("failed", result.Failed),
	)

	return result
}

// apply sends one change to the platform
func (r *Reconciler) apply(ctx context.Context, change Change) Outcome {
	mid := change.Monitor.MID
	logger := r.logger.With(
		zap.String("mid", mid),
		zap.String("camera", change.Camera.Number),
		zap.String("action", string(change.Action)),
	)

	if r.prober != nil {
		if _, err := r.prober.Probe(ctx, change.Monitor.Details.AutoHost); err != nil {
			logger.Warn("Camera stream probe failed",
				zap.String("title", change.Camera.Title),
				zap.String("host", change.Monitor.Host),
				zap.Error(err),
			)
		}
	}

	var err error
	switch change.Action {
	case ActionCreate:
		err = r.writer.CreateMonitor(ctx, change.Monitor)
	case ActionUpdate:
		err = r.writer.UpdateMonitor(ctx, change.Monitor)
	case ActionSkip:
		logger.Debug("Monitor unchanged, update skipped")
	}

	if r.observer != nil {
		r.observer.ObserveApply(string(change.Action), err)
	}

	if err != nil {
		logger.Error("Monitor apply failed", zap.Error(err))
		return Outcome{MID: mid, Action: change.Action, Err: err}
	}

	if change.Action != ActionSkip {
		logger.Info("Monitor applied", zap.String("host", change.Monitor.Host))
	}
	return Outcome{MID: mid, Action: change.Action}
}
