// Package engine wraps the external speech synthesis engine.
package engine

import (
	"context"

	"github.com/dgnsrekt/kokoro-say/internal/voice"
)

// Synthesizer converts a segment of text into speech.
//
// When Request.Output is set the engine must leave a complete audio file at
// that path before returning nil. When it is empty the engine plays the audio
// on the default output device and returns once playback has finished.
// Failures are reported as *subprocess.StatusError where an exit status is
// known. Implementations never retry.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) error
}

// Request describes one synthesis call.
type Request struct {
	Text   string
	Voice  voice.Selection
	Output string
}

// Streaming reports whether the request plays audio directly.
func (r Request) Streaming() bool {
	return r.Output == ""
}
