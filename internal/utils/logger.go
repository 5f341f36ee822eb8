package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects level and encoding of the process logger
type LogConfig struct {
	Level       string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format      string `yaml:"format" json:"format"` // json, console
	ServiceName string `yaml:"serviceName" json:"serviceName"`
}

var (
	loggerMu    sync.RWMutex
	globalLog   = zap.NewNop()
	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// InitLogger builds the global logger. Until it is called every logger is a no-op.
func InitLogger(cfg LogConfig) error {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}
	atomicLevel.SetLevel(level)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), atomicLevel)
	logger := zap.New(core, zap.AddCaller())
	if cfg.ServiceName != "" {
		logger = logger.With(zap.String("service", cfg.ServiceName))
	}

	loggerMu.Lock()
	globalLog = logger
	loggerMu.Unlock()
	return nil
}

// L returns the global logger
func L() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLog
}

// Component returns a named logger for one part of the system
func Component(name string) *zap.Logger {
	return L().Named(name)
}

// Component names used across the service
const (
	ComponentEngine      = "ENGINE"
	ComponentStorage     = "STORAGE"
	ComponentCache       = "CACHE"
	ComponentServer      = "SERVER"
	ComponentIngest      = "INGEST"
	ComponentLive        = "LIVE"
	ComponentBroadcaster = "BROADCASTER"
	ComponentScheduler   = "SCHEDULER"
	ComponentPipeline    = "PIPELINE"
	ComponentConfig      = "CONFIG"
)

// SyncLogger flushes buffered log entries
func SyncLogger() {
	_ = L().Sync()
}
