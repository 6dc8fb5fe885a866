package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/yourusername/u2s/internal/api"
	"github.com/yourusername/u2s/internal/cctv"
	"github.com/yourusername/u2s/internal/client"
	"github.com/yourusername/u2s/internal/core"
	"github.com/yourusername/u2s/internal/events"
	"github.com/yourusername/u2s/internal/hls"
	"github.com/yourusername/u2s/internal/metrics"
	"github.com/yourusername/u2s/internal/models"
	"github.com/yourusername/u2s/internal/reconcile"
	"github.com/yourusername/u2s/internal/scheduler"
	"github.com/yourusername/u2s/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "./config/u2s-config.yaml"
	version           = "1.0.0"
)

func main() {
	// 커맨드라인 플래그 파싱
	configPath := flag.String("config", defaultConfigPath, "설정 파일 경로")
	templatePath := flag.String("template", core.DefaultTemplatePath, "모니터 템플릿 경로")
	showVersion := flag.Bool("version", false, "버전 정보 출력")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Ufanet to Shinobi sync v%s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// 설정 로드
	config, err := core.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 로거 초기화
	if err := logger.InitLogger(logger.LogConfig{
		Level:      config.General.LogLevel,
		FilePath:   config.General.LogFile,
		MaxSize:    config.General.LogMaxSize,
		MaxBackups: config.General.LogMaxBackups,
		MaxAge:     config.General.LogMaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Info("Starting Ufanet to Shinobi sync",
		zap.String("version", version),
		zap.String("go_version", runtime.Version()),
	)

	// 템플릿은 프로세스당 한 번만 로드
	template, err := core.LoadTemplate(*templatePath, logger.Log)
	if err != nil {
		logger.Error("Failed to load monitor template", zap.Error(err))
		logger.Close()
		os.Exit(1)
	}

	logger.Info("Sync configuration",
		zap.Duration("update_timeout", config.General.UpdateTimeout.Std()),
		zap.Duration("retry_timeout", config.General.RetryTimeout.Std()),
		zap.Duration("cycle_timeout", config.General.CycleTimeout.Std()),
		zap.Int("apply_concurrency", config.General.ApplyConcurrency),
		zap.Bool("skip_unchanged", config.General.SkipUnchanged),
		zap.Bool("probe_streams", config.Ufanet.ProbeStreams),
		zap.Bool("status_enabled", config.Status.Enabled),
	)

	app, err := initializeApplication(config, *template)
	if err != nil {
		logger.Error("Failed to initialize application", zap.Error(err))
		logger.Close()
		os.Exit(1)
	}
	defer app.cleanup()

	logger.Info("All components initialized successfully")

	// 종료 시그널 대기
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Scheduler stopped unexpectedly", zap.Error(err))
	}

	logger.Info("Sync stopped gracefully")
}

// Application은 애플리케이션 컴포넌트들을 관리합니다
type Application struct {
	config    *core.Config
	status    *core.StatusStore
	metrics   *metrics.Metrics
	hub       *events.Hub
	apiServer *api.Server
	scheduler *scheduler.Scheduler
}

// initializeApplication은 애플리케이션을 초기화합니다
func initializeApplication(config *core.Config, template models.Monitor) (*Application, error) {
	app := &Application{
		config:  config,
		status:  core.NewStatusStore(config.General.HistorySize, logger.Log),
		metrics: metrics.New(),
	}

	// 1. 공유 HTTP 클라이언트 (연결 풀)
	httpClient := client.NewHTTPClient(client.HTTPConfig{
		Timeout:            config.General.RequestTimeout.Std(),
		InsecureSkipVerify: *config.General.InsecureSkipVerify,
	})

	ufanet := client.NewUfanetClient(httpClient, client.UfanetConfig{
		ServiceURL: config.Ufanet.ServiceURL,
		CloudURL:   config.Ufanet.CloudURL,
		User:       config.Ufanet.User,
		Password:   config.Ufanet.Password,
		PageSize:   config.Ufanet.PageSize,
		MaxPages:   config.Ufanet.MaxPages,
	}, logger.Log)

	shinobi := client.NewShinobiClient(httpClient, client.ShinobiConfig{
		CCTVURL:  config.Shinobi.CCTVURL,
		APIKey:   config.Shinobi.APIKey,
		GroupKey: config.Shinobi.GroupKey,
	}, logger.Log)
	logger.Info("API clients initialized")

	// 2. 리컨실러
	reconcilerConfig := reconcile.Config{
		Writer:        shinobi,
		Template:      template,
		Logger:        logger.Log,
		Concurrency:   config.General.ApplyConcurrency,
		SkipUnchanged: config.General.SkipUnchanged,
		Observer:      app.metrics,
	}
	if config.Ufanet.ProbeStreams {
		reconcilerConfig.Prober = hls.NewProber(httpClient, config.Ufanet.ProbeTimeout.Std(), logger.Log)
	}
	reconciler := reconcile.New(reconcilerConfig)

	// 3. 사이클 실행기
	syncer, err := cctv.NewSyncer(cctv.Config{
		Source:       ufanet,
		Store:        shinobi,
		Reconciler:   reconciler,
		Recorder:     app.status,
		Observer:     app.metrics,
		Logger:       logger.Log,
		CycleTimeout: config.General.CycleTimeout.Std(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create syncer: %w", err)
	}

	// 4. 스케줄러
	app.scheduler, err = scheduler.New(scheduler.Config{
		Cycle:         syncer.RunCycle,
		UpdateTimeout: config.General.UpdateTimeout.Std(),
		RetryTimeout:  config.General.RetryTimeout.Std(),
		Logger:        logger.Log,
		Recorder:      app.status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	// 5. 상태 서버 (선택)
	if config.Status.Enabled {
		app.hub = events.NewHub(events.HubConfig{
			Logger:   logger.Log,
			Snapshot: app.status.Snapshot,
		})
		app.status.Subscribe(app.hub)

		app.apiServer = api.NewServer(api.ServerConfig{
			Port:             config.Status.Port,
			Production:       config.Status.Production,
			Version:          version,
			Logger:           logger.Log,
			StatusHandler:    app.status.Snapshot,
			MetricsHandler:   app.metrics.Handler(),
			WebSocketHandler: app.hub.HandleWebSocket,
		})
		if err := app.apiServer.Start(); err != nil {
			return nil, fmt.Errorf("failed to start status server: %w", err)
		}
	}

	return app, nil
}

// cleanup은 리소스를 정리합니다
func (app *Application) cleanup() {
	logger.Info("Cleaning up resources")

	if app.hub != nil {
		app.status.Unsubscribe(app.hub.GetID())
		app.hub.Close()
	}

	if app.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.apiServer.Stop(ctx); err != nil {
			logger.Warn("Failed to stop status server", zap.Error(err))
		}
	}
}
