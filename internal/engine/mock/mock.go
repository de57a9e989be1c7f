// Package mock provides a fake synthesis engine for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/dgnsrekt/kokoro-say/internal/audio"
	"github.com/dgnsrekt/kokoro-say/internal/engine"
	"github.com/dgnsrekt/kokoro-say/internal/subprocess"
)

// DefaultFormat is the format of the files the mock engine writes.
var DefaultFormat = audio.Format{SampleRate: 24000, Channels: 1, BitDepth: 16, Encoding: audio.EncodingPCM}

// samplesPerRune sets the length of generated audio.
const samplesPerRune = 100

// MockEngine implements engine.Synthesizer. File requests produce a short WAV
// file whose length follows the text; streaming requests only take Delay.
type MockEngine struct {
	// Format of generated files.
	Format audio.Format
	// Delay simulates processing time for every call.
	Delay time.Duration
	// OnSynthesize runs at the start of every call.
	OnSynthesize func(req engine.Request)

	mu       sync.Mutex
	calls    []engine.Request
	failures map[string]int
	skipFile map[string]bool
	active   int
	overlap  bool
}

// New creates a mock engine writing DefaultFormat files.
func New() *MockEngine {
	return &MockEngine{
		Format:   DefaultFormat,
		failures: map[string]int{},
		skipFile: map[string]bool{},
	}
}

// FailOn makes every call for text exit with status.
func (e *MockEngine) FailOn(text string, status int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[text] = status
}

// SkipOutput makes calls for text succeed without writing their file.
func (e *MockEngine) SkipOutput(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.skipFile[text] = true
}

// Synthesize implements engine.Synthesizer.
func (e *MockEngine) Synthesize(ctx context.Context, req engine.Request) error {
	if e.OnSynthesize != nil {
		e.OnSynthesize(req)
	}

	e.mu.Lock()
	e.calls = append(e.calls, req)
	status, fail := e.failures[req.Text]
	skip := e.skipFile[req.Text]
	// Streaming calls overlap file calls by design; only file calls count.
	if !req.Streaming() {
		e.active++
		if e.active > 1 {
			e.overlap = true
		}
	}
	e.mu.Unlock()

	defer func() {
		if !req.Streaming() {
			e.mu.Lock()
			e.active--
			e.mu.Unlock()
		}
	}()

	if e.Delay > 0 {
		select {
		case <-ctx.Done():
			return &subprocess.StatusError{Command: "mock", Status: -1, Err: ctx.Err()}
		case <-time.After(e.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return &subprocess.StatusError{Command: "mock", Status: -1, Err: err}
	}
	if fail {
		return &subprocess.StatusError{Command: "mock", Status: status, Stderr: "synthesis failed for segment"}
	}
	if req.Streaming() || skip {
		return nil
	}

	n := len([]rune(req.Text)) * samplesPerRune * e.Format.Channels
	samples := make([]int, n)
	for i := range samples {
		samples[i] = i % 1000
	}
	return audio.WriteFile(req.Output, e.Format, samples)
}

// Calls returns the requests received so far, in order.
func (e *MockEngine) Calls() []engine.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Request(nil), e.calls...)
}

// CallCount returns the number of requests received.
func (e *MockEngine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// Overlapped reports whether two file synthesis calls ever ran at once.
func (e *MockEngine) Overlapped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overlap
}
