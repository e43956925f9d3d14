package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for response timing equalisation
type TimingConfig struct {
	BaseDelayMs    int  // Base delay in milliseconds
	RandomDelayMs  int  // Random jitter range in milliseconds
	DelayOnSuccess bool // Delay ALLOWED responses too
}

// TimingDelay enforces a minimum latency on login responses. Every rejection
// path already pays one credential compare; the floor plus jitter covers the
// remaining differences in store round trips.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
	}
}

// cryptoRandIntn returns a secure random number in [0, n)
func cryptoRandIntn(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	return int(binary.BigEndian.Uint64(randomBytes) % uint64(n)), nil
}

func (td *TimingDelay) target() time.Duration {
	delay := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		if jitter, err := cryptoRandIntn(td.config.RandomDelayMs); err == nil {
			delay += time.Duration(jitter) * time.Millisecond
		}
	}
	return delay
}

// WaitFrom sleeps until at least base delay plus jitter has elapsed since
// startTime. Successful requests are not delayed unless DelayOnSuccess is set.
// It returns early when ctx is done.
func (td *TimingDelay) WaitFrom(ctx context.Context, startTime time.Time, success bool) {
	if success && !td.config.DelayOnSuccess {
		return
	}

	remaining := td.target() - time.Since(startTime)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
