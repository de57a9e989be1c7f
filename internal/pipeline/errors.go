package pipeline

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/kokoro-say/internal/subprocess"
)

// Error kinds. Every run error matches exactly one of these, or
// audio.ErrFormatMismatch / audio.ErrNoInput for the save path.
var (
	ErrSynthesisFailed = errors.New("synthesis failed")
	ErrPlaybackFailed  = errors.New("playback failed")
	// ErrMissingPrefetch is reported when a prefetch task succeeded but its
	// audio file is not there.
	ErrMissingPrefetch = errors.New("prefetched audio file is missing")
)

// Stage names the step that failed.
type Stage string

const (
	StageStream      Stage = "stream"
	StagePrefetch    Stage = "prefetch"
	StagePlayback    Stage = "playback"
	StageSave        Stage = "save"
	StageConcatenate Stage = "concatenate"
)

// SegmentError reports a failure at one segment of a run.
type SegmentError struct {
	Kind   error // one of the Err* kinds
	Index  int   // 1-based
	Total  int
	Stage  Stage
	Status int // exit status of the failing command, -1 when unknown
	Err    error
}

func newSegmentError(kind error, index, total int, stage Stage, err error) *SegmentError {
	return &SegmentError{
		Kind:   kind,
		Index:  index,
		Total:  total,
		Stage:  stage,
		Status: subprocess.ExitStatus(err),
		Err:    err,
	}
}

func (e *SegmentError) Error() string {
	msg := fmt.Sprintf("segment %d/%d: %s (%s", e.Index, e.Total, e.Kind, e.Stage)
	if e.Status >= 0 {
		msg += fmt.Sprintf(", exit status %d", e.Status)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *SegmentError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
