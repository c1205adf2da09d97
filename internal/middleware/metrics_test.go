package middleware

import (
	"testing"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	for _, c := range m.Collectors() {
		if c == nil {
			t.Fatal("NewMetrics() produced a nil collector")
		}
	}
}

func TestMetrics_Register(t *testing.T) {
	m, reg := registeredMetrics(t)

	m.IncRateLimitRequests("/api/ranking", "user")
	m.IncRateLimitBlocked("/api/ranking", "ip")

	for _, name := range []string{MetricRateLimitRequests, MetricRateLimitBlocked} {
		if gatherFamily(t, reg, name) == nil {
			t.Errorf("metric %s not found in registry", name)
		}
	}
}

func TestMetrics_IncRateLimitRequests(t *testing.T) {
	m, reg := registeredMetrics(t)

	m.IncRateLimitRequests("/api/match/scores", "user")
	m.IncRateLimitRequests("/api/match/scores", "user")
	m.IncRateLimitRequests("/api/ranking", "ip")

	family := gatherFamily(t, reg, MetricRateLimitRequests)
	if family == nil {
		t.Fatal("rate_limit_requests_total metric not found")
	}
	// Two label sets: scores/user and ranking/ip.
	if len(family.GetMetric()) != 2 {
		t.Errorf("expected 2 metric entries, got %d", len(family.GetMetric()))
	}
}

func TestMetrics_IncRateLimitBlocked(t *testing.T) {
	m, reg := registeredMetrics(t)

	m.IncRateLimitBlocked("/api/match/scores", "user")
	m.IncRateLimitBlocked("/api/ranking/batch", "user")
	m.IncRateLimitBlocked("/api/ranking/batch", "user")

	family := gatherFamily(t, reg, MetricRateLimitBlocked)
	if family == nil {
		t.Fatal("rate_limit_blocked_total metric not found")
	}
	if len(family.GetMetric()) != 2 {
		t.Errorf("expected 2 metric entries, got %d", len(family.GetMetric()))
	}
}

func TestMetrics_RedisErrors(t *testing.T) {
	m, reg := registeredMetrics(t)

	m.IncRateLimitRedisErrors()
	m.IncRateLimitRedisErrors()

	family := gatherFamily(t, reg, MetricRateLimitRedisErrors)
	if family == nil {
		t.Fatal("rate_limit_redis_errors_total metric not found")
	}
	if got := family.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("counter value = %f, want 2", got)
	}
}

func TestMetrics_Collectors(t *testing.T) {
	if got := len(NewMetrics().Collectors()); got != 7 {
		t.Errorf("expected 7 collectors, got %d", got)
	}
}
