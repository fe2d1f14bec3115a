// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is an adjustable time source for deterministic tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var errBackend = errors.New("backend down")

func newTestBreaker(clock *fakeClock) *Breaker {
	return newBreakerWithClock("weather-api", BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
		OpenTimeout:      5 * time.Minute,
		MonitoringWindow: time.Minute,
	}, clock.now)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		err := b.Execute(func() error { return errBackend })
		require.ErrorIs(t, err, errBackend)
	}

	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_OpenRejectsWithoutInvoking(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return errBackend })
	}
	require.Equal(t, BreakerOpen, b.State())

	invoked := false
	clock.advance(10 * time.Second) // still inside the reset timeout
	err := b.Execute(func() error {
		invoked = true
		return nil
	})

	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, invoked, "open breaker must not attempt the call")
}

func TestBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return errBackend })
	}

	clock.advance(31 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())
}

func TestBreaker_ClosesAfterHalfOpenSuccesses(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return errBackend })
	}
	clock.advance(31 * time.Second)

	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, BreakerHalfOpen, b.State())
	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return errBackend })
	}
	clock.advance(31 * time.Second)

	_ = b.Execute(func() error { return errBackend })
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_SuccessResetsClosedFailureCount(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	_ = b.Execute(func() error { return errBackend })
	_ = b.Execute(func() error { return errBackend })
	require.NoError(t, b.Execute(func() error { return nil }))
	_ = b.Execute(func() error { return errBackend })
	_ = b.Execute(func() error { return errBackend })

	assert.Equal(t, BreakerClosed, b.State(), "non-consecutive failures must not trip the breaker")
}

func TestBreaker_StaleFailuresRestartCount(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	_ = b.Execute(func() error { return errBackend })
	_ = b.Execute(func() error { return errBackend })
	clock.advance(2 * time.Minute) // past the monitoring window
	_ = b.Execute(func() error { return errBackend })

	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 1, b.Failures())
}

func TestBreaker_OpenTimeoutFullyCloses(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return errBackend })
	}

	clock.advance(6 * time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreaker_Reset(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return errBackend })
	}
	require.Equal(t, BreakerOpen, b.State())

	b.Reset()
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}
