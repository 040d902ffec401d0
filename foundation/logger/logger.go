// Package logger provides a convenience function to constructing a logger
// for use. This is required not just for applications but for testing.
package logger

import (
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings for file output.
const (
	maxSizeMB  = 100
	maxBackups = 7
	maxAgeDays = 28
)

var registerOnce sync.Once

// New constructs a Sugared Logger that writes to stdout and provides human
// readable timestamps. Every extra output path is a file rotated by
// lumberjack.
func New(service string, outputPaths ...string) (*zap.SugaredLogger, error) {
	var regErr error
	registerOnce.Do(func() {
		regErr = zap.RegisterSink("lumberjack", newRotatingSink)
	})
	if regErr != nil {
		return nil, fmt.Errorf("register rotating sink: %w", regErr)
	}

	config := zap.NewProductionConfig()

	config.OutputPaths = []string{"stdout"}
	for _, path := range outputPaths {
		if path != "" {
			config.OutputPaths = append(config.OutputPaths, "lumberjack:"+path)
		}
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]any{
		"service": service,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}

// =============================================================================

// rotatingSink adapts a lumberjack logger to the zap.Sink interface.
type rotatingSink struct {
	*lumberjack.Logger
}

// Sync implements zap.Sink. Lumberjack writes through to the file.
func (rotatingSink) Sync() error {
	return nil
}

// newRotatingSink builds a sink for a "lumberjack:<path>?maxsize=N" url.
func newRotatingSink(u *url.URL) (zap.Sink, error) {
	path := u.Opaque
	if path == "" {
		path = u.Path
	}

	lj := lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}

	if v := u.Query().Get("maxsize"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("maxsize %q: %w", v, err)
		}
		lj.MaxSize = size
	}

	return rotatingSink{&lj}, nil
}
