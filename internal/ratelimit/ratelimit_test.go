package ratelimit

import (
	"errors"
	"testing"
)

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(Config{})
	for range 100 {
		if err := l.Allow("envQuery"); err != nil {
			t.Fatalf("Allow() = %v, want nil", err)
		}
	}

	var nilLimiter *Limiter
	if err := nilLimiter.Allow("x"); err != nil {
		t.Errorf("nil limiter Allow() = %v", err)
	}
}

func TestLimiter_BurstThenLimited(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1, BurstSize: 3})
	for i := range 3 {
		if err := l.Allow("callCloudApi"); err != nil {
			t.Fatalf("call %d: Allow() = %v", i, err)
		}
	}
	if err := l.Allow("callCloudApi"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Allow() = %v, want ErrRateLimited", err)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1})
	if err := l.Allow("a"); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow("a"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("second call on a = %v, want ErrRateLimited", err)
	}
	if err := l.Allow("b"); err != nil {
		t.Errorf("first call on b = %v, want nil", err)
	}
}
