package backoff

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// flaggedError carries an explicit retryable marker, mirroring fetch
// functions that tag client errors as permanent.
type flaggedError struct {
	msg       string
	retryable bool
}

func (e *flaggedError) Error() string   { return e.msg }
func (e *flaggedError) Retryable() bool { return e.retryable }

func TestDefault(t *testing.T) {
	p := Default()

	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", p.BaseDelay)
	}
	if p.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", p.MaxDelay)
	}
	if p.MaxJitter != time.Second {
		t.Errorf("MaxJitter = %v, want 1s", p.MaxJitter)
	}
}

func TestPolicy_ShouldRetry(t *testing.T) {
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second}

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{
			name:    "nil error never retries",
			err:     nil,
			attempt: 0,
			want:    false,
		},
		{
			name:    "first failure retries",
			err:     errors.New("boom"),
			attempt: 0,
			want:    true,
		},
		{
			name:    "second failure retries",
			err:     errors.New("boom"),
			attempt: 1,
			want:    true,
		},
		{
			name:    "budget exhausted",
			err:     errors.New("boom"),
			attempt: 2,
			want:    false,
		},
		{
			name:    "non-retryable error stops immediately",
			err:     &flaggedError{msg: "bad request", retryable: false},
			attempt: 0,
			want:    false,
		},
		{
			name:    "wrapped non-retryable error stops immediately",
			err:     fmt.Errorf("fetch users: %w", &flaggedError{msg: "bad request", retryable: false}),
			attempt: 0,
			want:    false,
		},
		{
			name:    "explicitly retryable error retries",
			err:     &flaggedError{msg: "timeout", retryable: true},
			attempt: 1,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.ShouldRetry(tt.err, tt.attempt); got != tt.want {
				t.Errorf("ShouldRetry(%v, %d) = %v, want %v", tt.err, tt.attempt, got, tt.want)
			}
		})
	}
}

func TestPolicy_NextDelay_Exponential(t *testing.T) {
	policy := Policy{
		MaxAttempts: 5,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    time.Second,
		MaxJitter:   0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 10 * time.Millisecond},
		{attempt: 1, want: 20 * time.Millisecond},
		{attempt: 2, want: 40 * time.Millisecond},
		{attempt: 3, want: 80 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := policy.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicy_NextDelay_CapsAtMaxDelay(t *testing.T) {
	policy := Policy{
		MaxAttempts: 10,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    25 * time.Millisecond,
		MaxJitter:   0,
	}

	if got := policy.NextDelay(5); got != 25*time.Millisecond {
		t.Errorf("NextDelay(5) = %v, want %v", got, 25*time.Millisecond)
	}
}

func TestPolicy_NextDelay_OverflowFallsBackToMaxDelay(t *testing.T) {
	policy := Policy{
		MaxAttempts: 100,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxJitter:   0,
	}

	if got := policy.NextDelay(80); got != 30*time.Second {
		t.Errorf("NextDelay(80) = %v, want %v", got, 30*time.Second)
	}
}

func TestPolicy_NextDelay_JitterStaysBounded(t *testing.T) {
	policy := Policy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    time.Second,
		MaxJitter:   5 * time.Millisecond,
	}

	for i := 0; i < 100; i++ {
		got := policy.NextDelay(0)
		if got < 10*time.Millisecond || got > 15*time.Millisecond {
			t.Fatalf("NextDelay(0) = %v, want within [10ms, 15ms]", got)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "plain error", err: errors.New("boom"), want: true},
		{name: "marked retryable", err: &flaggedError{retryable: true}, want: true},
		{name: "marked non-retryable", err: &flaggedError{retryable: false}, want: false},
		{
			name: "deeply wrapped marker",
			err:  fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", &flaggedError{retryable: false})),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
