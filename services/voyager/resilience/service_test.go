// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	s := NewService(Config{
		Breaker: BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1},
		Limiter: LimiterConfig{Reservoir: 100, RefreshAmount: 100, RefreshInterval: time.Second, MaxConcurrent: 10},
		Scheduler: SchedulerConfig{
			Defaults: HostLimits{MinTime: time.Nanosecond, MaxConcurrent: 8},
		},
		BlockTTL: time.Minute,
	})
	s.Init()
	return s
}

func TestService_DoPassesThrough(t *testing.T) {
	s := newTestService()
	invoked := false

	err := s.Do(context.Background(), "weather-api", "api.open-meteo.com", func(context.Context) error {
		invoked = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, invoked)
}

func TestService_DoTripsBreakerPerTarget(t *testing.T) {
	s := newTestService()

	for i := 0; i < 2; i++ {
		_ = s.Do(context.Background(), "flights-api", "partners.api.example.com", func(context.Context) error {
			return errBackend
		})
	}

	err := s.Do(context.Background(), "flights-api", "partners.api.example.com", func(context.Context) error {
		t.Fatal("open breaker must not invoke fn")
		return nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)

	// Other targets are unaffected.
	err = s.Do(context.Background(), "weather-api", "api.open-meteo.com", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestService_RepeatedHostFailuresBlockHost(t *testing.T) {
	s := newTestService()
	s.cfg.Breaker.FailureThreshold = 100 // keep the breaker out of the way
	s.Init()

	for i := 0; i < blockAfterFailures; i++ {
		_ = s.Do(context.Background(), "websearch", "flaky.example.com", func(context.Context) error {
			return errBackend
		})
	}

	err := s.Do(context.Background(), "websearch", "flaky.example.com", func(context.Context) error {
		t.Fatal("blocked host must not be called")
		return nil
	})
	assert.ErrorIs(t, err, ErrHostBlocked)
	assert.True(t, s.Blocklist().Blocked("flaky.example.com"))
}

func TestService_ResetClosesBreakers(t *testing.T) {
	s := newTestService()
	for i := 0; i < 2; i++ {
		_ = s.Do(context.Background(), "flights-api", "h", func(context.Context) error { return errBackend })
	}
	require.Equal(t, BreakerOpen, s.Breaker("flights-api").State())

	s.Reset()

	assert.Equal(t, BreakerClosed, s.Breaker("flights-api").State())
	err := s.Do(context.Background(), "flights-api", "h", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestService_ShutdownRejectsCalls(t *testing.T) {
	s := newTestService()
	s.Shutdown()

	err := s.Do(context.Background(), "weather-api", "h", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestBlocklist_LazyExpiry(t *testing.T) {
	clock := newFakeClock()
	b := newBlocklistWithClock(clock.now)

	b.Block("slow.example.com", time.Minute)
	require.True(t, b.Blocked("slow.example.com"))

	clock.advance(61 * time.Second)
	assert.False(t, b.Blocked("slow.example.com"))
	assert.Equal(t, 0, b.Len(), "expired entry must be removed on lookup")
}

func TestHostScheduler_ConcurrencyAndOverrides(t *testing.T) {
	s := NewHostScheduler(SchedulerConfig{
		Defaults: HostLimits{MinTime: time.Nanosecond, MaxConcurrent: 1},
		Overrides: map[string]HostLimits{
			"fast.example.com": {MinTime: time.Nanosecond, MaxConcurrent: 2},
		},
	})

	require.True(t, s.Acquire("slow.example.com"))
	assert.False(t, s.Acquire("slow.example.com"), "default cap is one in-flight call")

	require.True(t, s.Acquire("fast.example.com"), "overrides are independent of other hosts")
	time.Sleep(time.Microsecond)
	assert.True(t, s.Acquire("fast.example.com"))

	s.Release("slow.example.com")
	time.Sleep(time.Microsecond)
	assert.True(t, s.Acquire("slow.example.com"))
}
