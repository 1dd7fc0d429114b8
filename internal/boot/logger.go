package boot

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/grpclog"

	"github.com/r-heap47/gamehost/internal/config"
	"github.com/r-heap47/gamehost/internal/pkg/logwriter"
)

// newLogger builds the daemon logger from the log section.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	return zcfg.Build()
}

// redirectGRPCLogs routes grpc's internal logging into logger. grpc info lines land at debug.
func redirectGRPCLogs(logger *zap.Logger) {
	grpclog.SetLoggerV2(grpclog.NewLoggerV2(
		logwriter.Lines(logger, zapcore.DebugLevel, "grpc"),
		logwriter.Lines(logger, zapcore.WarnLevel, "grpc"),
		logwriter.Lines(logger, zapcore.ErrorLevel, "grpc"),
	))
}
