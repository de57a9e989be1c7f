package pipeline

// State is the phase a run is in.
type State int

const (
	// StateIdle is the state before a run starts.
	StateIdle State = iota
	// StateStreamingFirst streams segment 1 while segment 2 is prefetched.
	StateStreamingFirst
	// StateDraining awaits, plays and replaces prefetched segments.
	StateDraining
	// StateStreaming streams every segment in order, without prefetch.
	StateStreaming
	// StateSaving synthesizes segments for a saved file.
	StateSaving
	// StateDone is reached after a successful run.
	StateDone
	// StateFailed is reached when a run fails. It is final.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreamingFirst:
		return "streaming-first"
	case StateDraining:
		return "draining"
	case StateStreaming:
		return "streaming"
	case StateSaving:
		return "saving"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Mode describes what a progress step does.
type Mode string

const (
	ModeStream      Mode = "stream"
	ModePrefetch    Mode = "prefetch"
	ModePlay        Mode = "play"
	ModeSave        Mode = "save"
	ModeConcatenate Mode = "concatenate"
)

// Step is reported before each synthesis or playback step.
type Step struct {
	Index int // 1-based
	Total int
	Mode  Mode
	Text  string
}

// ProgressFunc receives steps on the goroutine that runs the pipeline.
type ProgressFunc func(Step)
