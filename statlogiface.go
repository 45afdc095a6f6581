package brewery

import (
	"io"
	"log"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Statter is the interface that stats collectors must implement to get stats
// out of a pipeline run.
type Statter interface {
	Count(name string, value int64, rate float64, tags ...string)
	Gauge(name string, value float64, rate float64, tags ...string)
	Histogram(name string, value float64, rate float64, tags ...string)
	Set(name string, value string, rate float64, tags ...string)
	Timing(name string, value time.Duration, rate float64, tags ...string)
}

// NopStatter does nothing.
type NopStatter struct{}

// Count does nothing.
func (NopStatter) Count(name string, value int64, rate float64, tags ...string) {}

// Gauge does nothing.
func (NopStatter) Gauge(name string, value float64, rate float64, tags ...string) {}

// Histogram does nothing.
func (NopStatter) Histogram(name string, value float64, rate float64, tags ...string) {}

// Set does nothing.
func (NopStatter) Set(name string, value string, rate float64, tags ...string) {}

// Timing does nothing.
func (NopStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {}

// Logger is the interface that loggers must implement to get pipeline logs.
type Logger interface {
	Printf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
}

// NopLogger logs nothing.
type NopLogger struct{}

// Printf does nothing.
func (NopLogger) Printf(format string, v ...interface{}) {}

// Debugf does nothing.
func (NopLogger) Debugf(format string, v ...interface{}) {}

// StdLogger only prints on Printf.
type StdLogger struct {
	*log.Logger
}

// NewStdLogger returns a StdLogger writing to w.
func NewStdLogger(w io.Writer) StdLogger {
	return StdLogger{log.New(w, "", log.LstdFlags)}
}

// Printf implements Logger interface.
func (s StdLogger) Printf(format string, v ...interface{}) {
	s.Logger.Printf(format, v...)
}

// Debugf implements Logger interface, but prints nothing.
func (StdLogger) Debugf(format string, v ...interface{}) {}

// VerboseLogger prints on both Printf and Debugf.
type VerboseLogger struct {
	*log.Logger
}

// NewVerboseLogger returns a VerboseLogger writing to w.
func NewVerboseLogger(w io.Writer) VerboseLogger {
	return VerboseLogger{log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
}

// Printf implements Logger interface.
func (s VerboseLogger) Printf(format string, v ...interface{}) {
	s.Logger.Printf(format, v...)
}

// Debugf implements Logger interface.
func (s VerboseLogger) Debugf(format string, v ...interface{}) {
	s.Logger.Printf("DEBUG "+format, v...)
}

// ZapLogger writes json log lines through zap.
type ZapLogger struct {
	*zap.SugaredLogger
}

// NewZapLogger returns a ZapLogger writing to w. Debugf lines are only
// written when verbose is set.
func NewZapLogger(w io.Writer, verbose bool) ZapLogger {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		level.SetLevel(zap.DebugLevel)
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		level,
	)
	return ZapLogger{zap.New(core).Sugar()}
}

// Printf implements Logger interface.
func (z ZapLogger) Printf(format string, v ...interface{}) {
	z.SugaredLogger.Infof(format, v...)
}

// Debugf implements Logger interface.
func (z ZapLogger) Debugf(format string, v ...interface{}) {
	z.SugaredLogger.Debugf(format, v...)
}
