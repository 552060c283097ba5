package engine

import (
	"context"
	"testing"
	"time"
)

func TestBackoffDeterministicWithoutRandomization(t *testing.T) {
	base := 100 * time.Millisecond
	max := 2 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1600 * time.Millisecond},
		{6, 2 * time.Second}, // capped
		{10, 2 * time.Second},
	}
	for _, c := range cases {
		got := Backoff(c.attempt, base, max, 0)
		if got != c.want {
			t.Errorf("Backoff(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestBackoffClampsAttemptBelowOne(t *testing.T) {
	base := 50 * time.Millisecond
	got := Backoff(0, base, time.Second, 0)
	want := Backoff(1, base, time.Second, 0)
	if got != want {
		t.Errorf("Backoff(0) = %v, want same as Backoff(1) = %v", got, want)
	}
}

func TestBackoffRandomizationStaysInBounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := 10 * time.Second
	for attempt := 1; attempt <= 5; attempt++ {
		raw := float64(base) * pow2(attempt-1)
		if float64(max) > 0 && raw > float64(max) {
			raw = float64(max)
		}
		lo := time.Duration(raw * 0.5)
		hi := time.Duration(raw * 1.5)
		for i := 0; i < 20; i++ {
			got := Backoff(attempt, base, max, 0.5)
			if got < lo || got > hi {
				t.Fatalf("Backoff(%d) = %v, want in [%v,%v]", attempt, got, lo, hi)
			}
		}
	}
}

func TestReconnectLimiterAllowsBurstThenThrottles(t *testing.T) {
	l := NewReconnectLimiter(time.Hour, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("Allow() call %d = false, want true within burst", i)
		}
	}
	if l.Allow() {
		t.Fatal("Allow() beyond burst = true, want false")
	}
}

func TestReconnectLimiterWaitRespectsContextCancellation(t *testing.T) {
	l := NewReconnectLimiter(time.Hour, 1)
	l.Allow() // exhaust the burst

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Fatal("Wait returned nil error past an exhausted limiter and a short deadline")
	}
}
