// Package logging bootstraps Kaze's structured logger, following the
// teacher's common/go/logging package: a zap.Config with TTY-aware level
// encoding, generalized to optionally also fan out to a rotated file.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init builds the logger described by cfg. The returned zap.AtomicLevel lets
// callers change the level at runtime (e.g. from a SIGHUP handler or an
// admin endpoint).
func Init(cfg Config) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()

	if term.IsTerminal(int(os.Stderr.Fd())) {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level := zap.NewAtomicLevelAt(cfg.Level)
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		fileEncoder := zap.NewProductionEncoderConfig()
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoder),
			zapcore.AddSync(rotator),
			level,
		))
	}

	core := zapcore.NewTee(cores...)
	logger := zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr)))

	return logger.Sugar(), level, nil
}
