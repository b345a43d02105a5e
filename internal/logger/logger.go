// Package logger wraps logrus with fields carried on a context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level  string
	Format string
	File   string
}

type fieldsKey struct{}

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05"})
	return l
}

// Configure applies level, format and optional rotating file output.
func Configure(opts Options) error {
	level := strings.TrimSpace(opts.Level)
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	base.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05"})
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("log format %q: expected text|json", opts.Format)
	}

	var out io.Writer = os.Stdout
	if f := strings.TrimSpace(opts.File); f != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   f,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
		})
	}
	base.SetOutput(out)
	return nil
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// WithField returns a context whose log lines carry key=value.
func WithField(ctx context.Context, key string, value any) context.Context {
	return WithFields(ctx, logrus.Fields{key: value})
}

func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	merged := logrus.Fields{}
	for k, v := range fieldsFrom(ctx) {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

func fieldsFrom(ctx context.Context) logrus.Fields {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(fieldsKey{}).(logrus.Fields)
	return f
}

// Entry returns a logrus entry with the context fields attached.
func Entry(ctx context.Context) *logrus.Entry {
	return base.WithFields(fieldsFrom(ctx))
}

func Debugf(ctx context.Context, format string, args ...any) {
	Entry(ctx).Debugf(format, args...)
}

func Infof(ctx context.Context, format string, args ...any) {
	Entry(ctx).Infof(format, args...)
}

func Warnf(ctx context.Context, format string, args ...any) {
	Entry(ctx).Warnf(format, args...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	Entry(ctx).Errorf(format, args...)
}
