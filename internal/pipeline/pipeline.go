// Package pipeline schedules synthesis and playback of text segments.
//
// With a player available and two or more segments, Speak streams the first
// segment straight from the engine while the second is synthesized into a
// temporary file on a single background worker. Every later segment is
// awaited, the next one is queued, and the awaited file is played. Only one
// synthesis ever overlaps one playback.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kokoro-say/internal/audio"
	"github.com/dgnsrekt/kokoro-say/internal/engine"
	"github.com/dgnsrekt/kokoro-say/internal/queue"
	"github.com/dgnsrekt/kokoro-say/internal/voice"
)

// Options configures a Pipeline.
type Options struct {
	Engine engine.Synthesizer
	// Player plays prefetched files. Nil selects sequential streaming.
	Player audio.Player
	Voice  voice.Selection
	// WorkDir is the parent of per-run workspaces. Empty uses the system
	// temporary directory.
	WorkDir  string
	Logger   *log.Logger
	Progress ProgressFunc
}

// Pipeline runs one text at a time. It is not safe for concurrent runs, but
// State may be called from any goroutine.
type Pipeline struct {
	opts   Options
	logger *log.Logger

	mu    sync.Mutex
	state State
	index int
}

// slot is a segment whose synthesis was handed to the worker.
type slot struct {
	index  int
	path   string
	future *queue.Future
}

// New returns a pipeline in the idle state.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{opts: opts, logger: logger}
}

// State returns the current state and the 1-based segment index it refers
// to.
func (p *Pipeline) State() (State, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.index
}

func (p *Pipeline) setState(s State, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateFailed {
		return
	}
	p.state = s
	p.index = index
}

func (p *Pipeline) fail(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateFailed
	return err
}

func (p *Pipeline) report(index, total int, mode Mode, text string) {
	if p.opts.Progress != nil {
		p.opts.Progress(Step{Index: index, Total: total, Mode: mode, Text: text})
	}
}

func (p *Pipeline) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateIdle
	p.index = 0
}

// Speak synthesizes and plays segments in order. It returns a
// *SegmentError naming the first segment that failed.
func (p *Pipeline) Speak(ctx context.Context, segments []string) error {
	p.reset()
	if len(segments) == 0 {
		p.setState(StateDone, 0)
		return nil
	}
	if p.opts.Player == nil || len(segments) == 1 {
		p.logger.Debug("Streaming segments sequentially",
			"segments", len(segments),
			"player", p.opts.Player != nil)
		return p.streamAll(ctx, segments)
	}
	return p.prefetch(ctx, segments)
}

// streamAll streams each segment from the engine in turn.
func (p *Pipeline) streamAll(ctx context.Context, segments []string) error {
	total := len(segments)
	for i, text := range segments {
		index := i + 1
		p.setState(StateStreaming, index)
		p.report(index, total, ModeStream, text)
		if err := p.stream(ctx, text); err != nil {
			return p.fail(newSegmentError(ErrSynthesisFailed, index, total, StageStream, err))
		}
	}
	p.setState(StateDone, total)
	return nil
}

func (p *Pipeline) stream(ctx context.Context, text string) error {
	return p.opts.Engine.Synthesize(ctx, engine.Request{Text: text, Voice: p.opts.Voice})
}

// prefetch runs the one-ahead protocol for two or more segments.
func (p *Pipeline) prefetch(ctx context.Context, segments []string) error {
	total := len(segments)

	ws, err := NewWorkspace(p.opts.WorkDir)
	if err != nil {
		return p.fail(err)
	}
	// Deferred in reverse: cancel in-flight work, wait for the worker, then
	// remove the workspace.
	defer p.removeWorkspace(ws)
	ctx, cancel := context.WithCancel(ctx)
	worker := queue.NewWorker(ctx)
	defer worker.Close() //nolint:errcheck
	defer cancel()

	p.logger.Debug("Prefetch pipeline started", "segments", total, "workspace", ws.Dir())

	pending, err := p.issue(worker, ws, segments, 2)
	if err != nil {
		return p.fail(err)
	}

	p.setState(StateStreamingFirst, 1)
	p.report(1, total, ModeStream, segments[0])
	if err := p.stream(ctx, segments[0]); err != nil {
		return p.fail(newSegmentError(ErrSynthesisFailed, 1, total, StageStream, err))
	}

	for i := 2; i <= total; i++ {
		p.setState(StateDraining, i)
		current := pending
		pending = nil

		if err := current.future.Wait(ctx); err != nil {
			return p.fail(newSegmentError(ErrSynthesisFailed, i, total, StagePrefetch, err))
		}
		if _, err := os.Stat(current.path); err != nil {
			return p.fail(newSegmentError(ErrMissingPrefetch, i, total, StagePrefetch, err))
		}

		if i < total {
			if pending, err = p.issue(worker, ws, segments, i+1); err != nil {
				return p.fail(err)
			}
		}

		p.report(i, total, ModePlay, segments[i-1])
		if err := p.opts.Player.Play(ctx, current.path); err != nil {
			return p.fail(newSegmentError(ErrPlaybackFailed, i, total, StagePlayback, err))
		}
		if err := ws.Discard(current.path); err != nil {
			p.logger.Debug("Failed to delete played segment", "file", current.path, "error", err)
		}
	}

	if pending != nil {
		if err := pending.future.Wait(ctx); err != nil {
			return p.fail(newSegmentError(ErrSynthesisFailed, pending.index, total, StagePrefetch, err))
		}
	}

	stats := worker.Stats()
	p.logger.Debug("Prefetch pipeline finished",
		"segments", total,
		"prefetched", stats.Completed,
		"busy", stats.Busy)
	p.setState(StateDone, total)
	return nil
}

// issue hands synthesis of the 1-based index to the worker.
func (p *Pipeline) issue(w *queue.Worker, ws *Workspace, segments []string, index int) (*slot, error) {
	total := len(segments)
	text := segments[index-1]
	req := engine.Request{Text: text, Voice: p.opts.Voice, Output: ws.Path(index)}

	p.report(index, total, ModePrefetch, text)
	f, err := w.Submit(func(ctx context.Context) error {
		return p.opts.Engine.Synthesize(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("queue segment %d: %w", index, err)
	}
	return &slot{index: index, path: req.Output, future: f}, nil
}

func (p *Pipeline) removeWorkspace(ws *Workspace) {
	if err := ws.Remove(); err != nil {
		p.logger.Debug("Workspace cleanup failed", "dir", ws.Dir(), "error", err)
		return
	}
	p.logger.Debug("Workspace removed", "dir", ws.Dir())
}
