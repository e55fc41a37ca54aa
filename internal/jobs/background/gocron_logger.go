package background

import (
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type gocronLogger struct {
	sugar *zap.SugaredLogger
}

// NewGocronLogger routes gocron's key/value logging into zap.
func NewGocronLogger(logger *zap.Logger) gocron.Logger {
	return &gocronLogger{sugar: logger.Named("gocron").Sugar()}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
