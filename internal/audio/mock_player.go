package audio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	// OnPlay runs before a play completes. A non-nil error fails the play.
	OnPlay func(path string) error
}

// MockPlayer implements Player without producing sound. Each play checks that
// the file exists, like a real player would, and is recorded in order.
type MockPlayer struct {
	callbacks MockCallbacks
	// Delay simulates the duration of every play.
	Delay time.Duration

	mu      sync.Mutex
	played  []string
	failAt  map[int]error
	playing int
}

// NewMockPlayer creates a mock player with custom callbacks.
func NewMockPlayer(callbacks MockCallbacks) *MockPlayer {
	return &MockPlayer{callbacks: callbacks, failAt: map[int]error{}}
}

// DefaultMockPlayer creates a mock player with no callbacks.
func DefaultMockPlayer() *MockPlayer {
	return NewMockPlayer(MockCallbacks{})
}

// FailOn makes the n-th play (zero based) return err.
func (mp *MockPlayer) FailOn(n int, err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.failAt[n] = err
}

// Name returns "mock".
func (mp *MockPlayer) Name() string {
	return "mock"
}

// Play records path and simulates playback.
func (mp *MockPlayer) Play(ctx context.Context, path string) error {
	mp.mu.Lock()
	n := len(mp.played)
	mp.played = append(mp.played, path)
	failErr := mp.failAt[n]
	mp.playing++
	overlap := mp.playing > 1
	mp.mu.Unlock()

	defer func() {
		mp.mu.Lock()
		mp.playing--
		mp.mu.Unlock()
	}()

	if overlap {
		return fmt.Errorf("mock player: overlapping playback of %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("mock player: %w", err)
	}
	if mp.callbacks.OnPlay != nil {
		if err := mp.callbacks.OnPlay(path); err != nil {
			return err
		}
	}
	if mp.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(mp.Delay):
		}
	}
	return failErr
}

// Played returns the paths played so far, in order.
func (mp *MockPlayer) Played() []string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]string(nil), mp.played...)
}

// PlayCount returns the number of plays attempted.
func (mp *MockPlayer) PlayCount() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.played)
}
