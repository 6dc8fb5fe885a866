package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/u2s/internal/core"
	"go.uber.org/zap"
)

// Server는 상태 조회용 HTTP 서버입니다
type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
	listener   net.Listener
	router     *gin.Engine
	port       int
	version    string
	startedAt  time.Time

	// 핸들러
	statusHandler    func() core.StatusSnapshot
	metricsHandler   http.Handler
	websocketHandler func(http.ResponseWriter, *http.Request)
}

// ServerConfig는 상태 서버 설정
type ServerConfig struct {
	Port             int
	Production       bool
	Version          string
	Logger           *zap.Logger
	StatusHandler    func() core.StatusSnapshot
	MetricsHandler   http.Handler
	WebSocketHandler func(http.ResponseWriter, *http.Request)
}

// NewServer는 새로운 상태 서버를 생성합니다
func NewServer(config ServerConfig) *Server {
	if !config.Production {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggerMiddleware(logger))

	server := &Server{
		logger:           logger,
		router:           router,
		port:             config.Port,
		version:          config.Version,
		startedAt:        time.Now(),
		statusHandler:    config.StatusHandler,
		metricsHandler:   config.MetricsHandler,
		websocketHandler: config.WebSocketHandler,
	}

	server.setupRoutes()

	return server
}

// setupRoutes는 라우트를 설정합니다
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)
	}

	if s.metricsHandler != nil {
		s.router.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	// 사이클 이벤트 피드
	if s.websocketHandler != nil {
		s.router.GET("/ws", gin.WrapF(s.websocketHandler))
	}
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start는 포트를 바인딩한 뒤 상태 서버를 시작합니다.
// 바인딩 실패는 호출자에게 바로 반환됩니다.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("Starting status server",
		zap.String("addr", listener.Addr().String()),
	)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop은 상태 서버를 종료합니다
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping status server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth는 헬스 체크를 처리합니다
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
		"time":    time.Now().UTC(),
	})
}

// handleStatus는 최근 사이클 상태를 반환합니다
func (s *Server) handleStatus(c *gin.Context) {
	if s.statusHandler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status not available"})
		return
	}

	c.JSON(http.StatusOK, s.statusHandler())
}

// corsMiddleware는 CORS 미들웨어입니다
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// loggerMiddleware는 로깅 미들웨어입니다
func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		// 스크레이프 요청이 잦으므로 debug 레벨
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
