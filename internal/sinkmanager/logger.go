package sinkmanager

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultLogger is a zerolog-backed streamgate.Logger. It carries a level
// floor (STREAMGATE_LOG_LEVEL) and optional Warn/Error sampling
// (STREAMGATE_LOG_SAMPLE_N) so one noisy connector can't drown the rest of
// a fleet sharing the same stderr.
type DefaultLogger struct {
	logger  zerolog.Logger
	sampler zerolog.Sampler
	sampled zerolog.Logger
}

// NewDefaultLogger creates a DefaultLogger writing to stderr with
// timestamps at the level named by STREAMGATE_LOG_LEVEL (debug/info/warn/
// error, default info). STREAMGATE_LOG_SAMPLE_N, if set to an integer > 1,
// enables random sampling of Warn/Error at that rate.
func NewDefaultLogger() *DefaultLogger {
	l := zerolog.New(os.Stderr).Level(levelFromEnv()).With().Timestamp().Logger()
	return newDefaultLogger(l)
}

func newDefaultLogger(l zerolog.Logger) *DefaultLogger {
	var samp zerolog.Sampler
	if v := os.Getenv("STREAMGATE_LOG_SAMPLE_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			samp = zerolog.RandomSampler(n)
		}
	}
	var sampled zerolog.Logger
	if samp != nil {
		sampled = l.Sample(samp)
	}
	return &DefaultLogger{logger: l, sampler: samp, sampled: sampled}
}

func levelFromEnv() zerolog.Level {
	switch strings.ToLower(os.Getenv("STREAMGATE_LOG_LEVEL")) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// With binds keysAndValues onto every subsequent log line written through
// the returned logger. New in manager.go uses this so the manager's
// error logs don't have to repeat "connector_id" at every call site.
func (l *DefaultLogger) With(keysAndValues ...interface{}) *DefaultLogger {
	ctx := l.logger.With()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		ctx = ctx.Interface(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1])
	}
	return newDefaultLogger(ctx.Logger())
}

func (l *DefaultLogger) log(event *zerolog.Event, msg string, keysAndValues ...interface{}) {
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			event.Interface(key, keysAndValues[i+1])
		} else {
			event.Interface(key, nil)
		}
	}
	event.Msg(msg)
}

func (l *DefaultLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Debug(), msg, keysAndValues...)
}

func (l *DefaultLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Info(), msg, keysAndValues...)
}

func (l *DefaultLogger) Warn(msg string, keysAndValues ...interface{}) {
	if l.sampler != nil {
		l.log(l.sampled.Warn(), msg, keysAndValues...)
		return
	}
	l.log(l.logger.Warn(), msg, keysAndValues...)
}

func (l *DefaultLogger) Error(msg string, keysAndValues ...interface{}) {
	if l.sampler != nil {
		l.log(l.sampled.Error(), msg, keysAndValues...)
		return
	}
	l.log(l.logger.Error(), msg, keysAndValues...)
}
