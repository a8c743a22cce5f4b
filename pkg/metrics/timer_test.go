package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewTimer tests timer creation
func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer == nil {
		t.Fatal("NewTimer() returned nil")
	}

	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}

	if time.Since(timer.start) > time.Second {
		t.Error("NewTimer() start time is not recent")
	}
}

// TestTimerDuration tests duration measurement
func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleepDuration := 50 * time.Millisecond
	time.Sleep(sleepDuration)

	duration := timer.Duration()

	if duration < sleepDuration {
		t.Errorf("Timer.Duration() = %v, want >= %v", duration, sleepDuration)
	}
}

// TestTimerDurationIncreases tests that Duration can be read repeatedly
func TestTimerDurationIncreases(t *testing.T) {
	timer := NewTimer()

	time.Sleep(20 * time.Millisecond)
	first := timer.Duration()

	time.Sleep(20 * time.Millisecond)
	second := timer.Duration()

	if second <= first {
		t.Errorf("second Duration() call should be longer: first=%v, second=%v", first, second)
	}
}

// TestTimerObserveDuration tests histogram observation
func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)

	// Must not panic
	timer.ObserveDuration(histogram)

	if timer.Duration() == 0 {
		t.Error("Timer.ObserveDuration() recorded zero duration")
	}
}

// TestTimerObserveDurationVec tests labeled histogram observation
func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration_vec_seconds",
			Help:    "Test duration histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "state"},
	)

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)

	// Must not panic
	timer.ObserveDurationVec(histogramVec, "build-image", "succeeded")

	if timer.Duration() == 0 {
		t.Error("Timer.ObserveDurationVec() recorded zero duration")
	}
}

// TestMultipleTimers tests that timers run independently
func TestMultipleTimers(t *testing.T) {
	first := NewTimer()
	time.Sleep(30 * time.Millisecond)

	second := NewTimer()
	time.Sleep(30 * time.Millisecond)

	if first.Duration() <= second.Duration() {
		t.Errorf("first timer should be running longer: first=%v, second=%v",
			first.Duration(), second.Duration())
	}
}
