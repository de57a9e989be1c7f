package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/dgnsrekt/kokoro-say/internal/audio"
	"github.com/dgnsrekt/kokoro-say/internal/engine"
)

// Save synthesizes segments into one audio file at output. A single segment
// is written by the engine directly; several are synthesized one after
// another into a workspace and then concatenated, so their output is WAV.
func (p *Pipeline) Save(ctx context.Context, segments []string, output string) (audio.Summary, error) {
	p.reset()
	total := len(segments)
	if total == 0 {
		return audio.Summary{}, p.fail(audio.ErrNoInput)
	}

	if total == 1 {
		p.setState(StateSaving, 1)
		p.report(1, 1, ModeSave, segments[0])
		req := engine.Request{Text: segments[0], Voice: p.opts.Voice, Output: output}
		if err := p.opts.Engine.Synthesize(ctx, req); err != nil {
			return audio.Summary{}, p.fail(newSegmentError(ErrSynthesisFailed, 1, 1, StageSave, err))
		}
		info, err := os.Stat(output)
		if err != nil {
			return audio.Summary{}, p.fail(newSegmentError(ErrSynthesisFailed, 1, 1, StageSave, err))
		}
		p.setState(StateDone, 1)
		// The engine picks the encoding from the extension, so the format is
		// only known for WAV.
		summary := audio.Summary{Bytes: info.Size()}
		if s, err := audio.Inspect(output); err == nil {
			summary = s
		}
		return summary, nil
	}

	ws, err := NewWorkspace(p.opts.WorkDir)
	if err != nil {
		return audio.Summary{}, p.fail(err)
	}
	defer p.removeWorkspace(ws)

	paths := make([]string, 0, total)
	for i, text := range segments {
		index := i + 1
		p.setState(StateSaving, index)
		p.report(index, total, ModeSave, text)
		req := engine.Request{Text: text, Voice: p.opts.Voice, Output: ws.Path(index)}
		if err := p.opts.Engine.Synthesize(ctx, req); err != nil {
			return audio.Summary{}, p.fail(newSegmentError(ErrSynthesisFailed, index, total, StageSave, err))
		}
		paths = append(paths, req.Output)
	}

	p.report(total, total, ModeConcatenate, "")
	summary, err := audio.Concatenate(paths, output)
	if err != nil {
		return audio.Summary{}, p.fail(fmt.Errorf("%s %d segments: %w", StageConcatenate, total, err))
	}
	p.setState(StateDone, total)
	return summary, nil
}
