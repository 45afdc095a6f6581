package mock

import (
	"fmt"
	"sync"
	"time"
)

// RecordingStatter is used for testing. It is safe for concurrent use, but
// its maps should only be read once the code under test is done with it.
type RecordingStatter struct {
	mu      sync.Mutex
	Counts  map[string]int64
	Gauges  map[string]float64
	Timings map[string][]time.Duration
}

// Count implements Count.
func (r *RecordingStatter) Count(name string, value int64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Counts == nil {
		r.Counts = make(map[string]int64)
	}
	r.Counts[name] += value
}

// Gauge implements Gauge.
func (r *RecordingStatter) Gauge(name string, value float64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Gauges == nil {
		r.Gauges = make(map[string]float64)
	}
	r.Gauges[name] = value
}

// Histogram implements Histogram.
func (r *RecordingStatter) Histogram(name string, value float64, rate float64, tags ...string) {}

// Set implements Set.
func (r *RecordingStatter) Set(name string, value string, rate float64, tags ...string) {}

// Timing implements Timing.
func (r *RecordingStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Timings == nil {
		r.Timings = make(map[string][]time.Duration)
	}
	r.Timings[name] = append(r.Timings[name], value)
}

// RecordingLogger keeps every line logged through it.
type RecordingLogger struct {
	mu    sync.Mutex
	Lines []string
	Debug []string
}

// Printf implements Logger.
func (l *RecordingLogger) Printf(format string, v ...interface{}) {
	l.mu.Lock()
	l.Lines = append(l.Lines, fmt.Sprintf(format, v...))
	l.mu.Unlock()
}

// Debugf implements Logger.
func (l *RecordingLogger) Debugf(format string, v ...interface{}) {
	l.mu.Lock()
	l.Debug = append(l.Debug, fmt.Sprintf(format, v...))
	l.mu.Unlock()
}
