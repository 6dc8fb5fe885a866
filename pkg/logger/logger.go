package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Log는 전역 로거 인스턴스
	Log *zap.Logger = zap.NewNop()
	// fileWriter는 현재 파일 writer
	fileWriter *lumberjack.Logger
)

// LogConfig는 로거 설정
type LogConfig struct {
	Level      string
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// levelAliases maps the level names used by older configs
var levelAliases = map[string]zapcore.Level{
	"WARNING":  zapcore.WarnLevel,
	"CRITICAL": zapcore.FatalLevel,
	"NOTSET":   zapcore.DebugLevel,
}

// ParseLevel parses zap level names and the upper-case names of older configs.
// Unknown names fall back to info.
func ParseLevel(name string) zapcore.Level {
	name = strings.TrimSpace(name)
	if level, ok := levelAliases[strings.ToUpper(name)]; ok {
		return level
	}
	level, err := zapcore.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// InitLogger는 zap 로거를 초기화합니다.
// 콘솔에는 설정된 레벨로, 파일에는 최소 INFO 레벨로 기록합니다.
func InitLogger(cfg LogConfig) error {
	Log = New(cfg)
	return nil
}

// New builds a logger without touching the global one
func New(cfg LogConfig) *zap.Logger {
	level := ParseLevel(cfg.Level)

	// 인코더 설정
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	if cfg.FilePath == "" {
		return zap.New(consoleCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}

	fileLevel := level
	if fileLevel < zapcore.InfoLevel {
		fileLevel = zapcore.InfoLevel
	}

	fileWriter = getFileWriter(cfg)
	core := zapcore.NewTee(
		consoleCore,
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(fileWriter), fileLevel),
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// getFileWriter는 로테이션되는 로그 파일 writer를 생성합니다
func getFileWriter(cfg LogConfig) *lumberjack.Logger {
	// 로그 디렉토리 생성
	logDir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "cant write to log file %q: %v\n", cfg.FilePath, err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,    // MB
		MaxBackups: cfg.MaxBackups, // 보관할 최대 파일 개수
		MaxAge:     cfg.MaxAge,     // 일 단위
		LocalTime:  true,
		Compress:   true,
	}
}

// Close는 로거를 종료하고 리소스를 정리합니다
func Close() {
	_ = Log.Sync()
	if fileWriter != nil {
		_ = fileWriter.Close()
	}
}

// Sync는 로거 버퍼를 플러시합니다
func Sync() {
	_ = Log.Sync()
}

// Info는 info 레벨 로그를 출력합니다
func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

// Debug는 debug 레벨 로그를 출력합니다
func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

// Warn는 warn 레벨 로그를 출력합니다
func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

// Error는 error 레벨 로그를 출력합니다
func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

// Fatal는 fatal 레벨 로그를 출력하고 프로그램을 종료합니다
func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}
