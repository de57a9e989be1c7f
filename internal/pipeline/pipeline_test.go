package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kokoro-say/internal/audio"
	"github.com/dgnsrekt/kokoro-say/internal/engine"
	"github.com/dgnsrekt/kokoro-say/internal/engine/mock"
	"github.com/dgnsrekt/kokoro-say/internal/subprocess"
	"github.com/dgnsrekt/kokoro-say/internal/voice"
)

var testVoice = voice.Selection{Voice: "af_sarah", Language: "en-us"}

func quietLogger() *log.Logger {
	return log.NewWithOptions(&strings.Builder{}, log.Options{Level: log.ErrorLevel})
}

func segmentsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Segment number %d.", i+1)
	}
	return out
}

// eventLog collects events from the pipeline, engine and player goroutines.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// playedIndex returns the segment index of a workspace file.
func playedIndex(t *testing.T, path string) int {
	t.Helper()
	var n int
	if _, err := fmt.Sscanf(filepath.Base(path), "segment-%04d.wav", &n); err != nil {
		t.Fatalf("unexpected played file %s", path)
	}
	return n
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace parent still holds %d entries, want none", len(entries))
	}
}

type harness struct {
	engine *mock.MockEngine
	player *audio.MockPlayer
	log    *eventLog
	work   string
	p      *Pipeline
	states []string
}

func newHarness(t *testing.T, segments []string) *harness {
	t.Helper()
	h := &harness{log: &eventLog{}, work: t.TempDir()}

	index := map[string]int{}
	for i, s := range segments {
		index[s] = i + 1
	}
	h.engine = mock.New()
	h.engine.OnSynthesize = func(req engine.Request) {
		if req.Streaming() {
			h.log.add("stream:%d", index[req.Text])
		} else {
			h.log.add("synth:%d", index[req.Text])
		}
	}
	h.player = audio.NewMockPlayer(audio.MockCallbacks{
		OnPlay: func(path string) error {
			h.log.add("play:%d", playedIndex(t, path))
			return nil
		},
	})
	h.p = New(Options{
		Engine:  h.engine,
		Player:  h.player,
		Voice:   testVoice,
		WorkDir: h.work,
		Logger:  quietLogger(),
		Progress: func(s Step) {
			if s.Mode == ModePrefetch {
				h.log.add("issue:%d", s.Index)
			}
			state, idx := h.p.State()
			h.states = append(h.states, fmt.Sprintf("%s:%s:%d", s.Mode, state, idx))
		},
	})
	return h
}

func TestSpeakPrefetchOrder(t *testing.T) {
	for _, n := range []int{2, 3, 6} {
		t.Run(fmt.Sprintf("%d segments", n), func(t *testing.T) {
			segments := segmentsN(n)
			h := newHarness(t, segments)

			if err := h.p.Speak(context.Background(), segments); err != nil {
				t.Fatalf("Speak() error = %v", err)
			}

			var plays []int
			for _, path := range h.player.Played() {
				plays = append(plays, playedIndex(t, path))
			}
			var want []int
			for i := 2; i <= n; i++ {
				want = append(want, i)
			}
			if !slices.Equal(plays, want) {
				t.Errorf("played %v, want %v", plays, want)
			}

			events := h.log.snapshot()
			if events[0] != "issue:2" {
				t.Errorf("first event = %s, want issue:2", events[0])
			}
			for i := 2; i <= n; i++ {
				at := slices.Index(events, fmt.Sprintf("play:%d", i))
				if at < 0 {
					t.Fatalf("play:%d missing from %v", i, events)
				}
				before := events[:at]
				if i < n && !slices.Contains(before, fmt.Sprintf("issue:%d", i+1)) {
					t.Errorf("segment %d was not issued before play:%d", i+1, i)
				}
				if i+2 <= n && slices.Contains(before, fmt.Sprintf("issue:%d", i+2)) {
					t.Errorf("segment %d was issued before play:%d", i+2, i)
				}
				if !slices.Contains(before, fmt.Sprintf("synth:%d", i)) {
					t.Errorf("segment %d played before it was synthesized", i)
				}
			}

			streams := 0
			for _, c := range h.engine.Calls() {
				if c.Streaming() {
					streams++
					if c.Text != segments[0] {
						t.Errorf("streamed %q, want the first segment", c.Text)
					}
				}
				if c.Voice != testVoice {
					t.Errorf("call voice = %v, want %v", c.Voice, testVoice)
				}
			}
			if streams != 1 {
				t.Errorf("streamed %d segments, want 1", streams)
			}
			if h.engine.Overlapped() {
				t.Error("two file syntheses ran at once")
			}

			if state, idx := h.p.State(); state != StateDone || idx != n {
				t.Errorf("State() = %s/%d, want done/%d", state, idx, n)
			}
			assertEmptyDir(t, h.work)
		})
	}
}

func TestSpeakStates(t *testing.T) {
	segments := segmentsN(3)
	h := newHarness(t, segments)
	if err := h.p.Speak(context.Background(), segments); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"prefetch:idle:0",
		"stream:streaming-first:1",
		"prefetch:draining:2",
		"play:draining:2",
		"play:draining:3",
	}
	if !slices.Equal(h.states, want) {
		t.Errorf("states = %v, want %v", h.states, want)
	}
}

func TestSpeakSynthesisFailure(t *testing.T) {
	const n = 4
	for failing := 1; failing <= n; failing++ {
		t.Run(fmt.Sprintf("segment %d", failing), func(t *testing.T) {
			segments := segmentsN(n)
			h := newHarness(t, segments)
			h.engine.FailOn(segments[failing-1], 3)

			err := h.p.Speak(context.Background(), segments)
			if !errors.Is(err, ErrSynthesisFailed) {
				t.Fatalf("Speak() error = %v, want ErrSynthesisFailed", err)
			}
			var se *SegmentError
			if !errors.As(err, &se) {
				t.Fatalf("Speak() error = %T, want *SegmentError", err)
			}
			if se.Index != failing || se.Total != n || se.Status != 3 {
				t.Errorf("SegmentError = %+v, want index %d of %d with status 3", se, failing, n)
			}
			wantStage := StagePrefetch
			if failing == 1 {
				wantStage = StageStream
			}
			if se.Stage != wantStage {
				t.Errorf("Stage = %s, want %s", se.Stage, wantStage)
			}

			var status *subprocess.StatusError
			if !errors.As(err, &status) {
				t.Error("SegmentError should unwrap to the engine's StatusError")
			}

			for _, path := range h.player.Played() {
				if idx := playedIndex(t, path); idx >= failing {
					t.Errorf("segment %d was played after segment %d failed", idx, failing)
				}
			}
			if state, _ := h.p.State(); state != StateFailed {
				t.Errorf("State() = %s, want failed", state)
			}
			assertEmptyDir(t, h.work)
		})
	}
}

func TestSpeakMissingPrefetch(t *testing.T) {
	segments := segmentsN(3)
	h := newHarness(t, segments)
	h.engine.SkipOutput(segments[1])

	err := h.p.Speak(context.Background(), segments)
	if !errors.Is(err, ErrMissingPrefetch) {
		t.Fatalf("Speak() error = %v, want ErrMissingPrefetch", err)
	}
	var se *SegmentError
	if errors.As(err, &se) && se.Index != 2 {
		t.Errorf("Index = %d, want 2", se.Index)
	}
	if h.player.PlayCount() != 0 {
		t.Errorf("player was called %d times, want 0", h.player.PlayCount())
	}
	assertEmptyDir(t, h.work)
}

func TestSpeakPlaybackFailure(t *testing.T) {
	segments := segmentsN(4)
	h := newHarness(t, segments)
	h.player.FailOn(1, &subprocess.StatusError{Command: "aplay", Status: 5})

	err := h.p.Speak(context.Background(), segments)
	if !errors.Is(err, ErrPlaybackFailed) {
		t.Fatalf("Speak() error = %v, want ErrPlaybackFailed", err)
	}
	var se *SegmentError
	if !errors.As(err, &se) {
		t.Fatal("want *SegmentError")
	}
	if se.Index != 3 || se.Status != 5 || se.Stage != StagePlayback {
		t.Errorf("SegmentError = %+v, want segment 3 playback status 5", se)
	}
	if got := h.player.PlayCount(); got != 2 {
		t.Errorf("player was called %d times, want 2", got)
	}
	if !strings.Contains(err.Error(), "segment 3/4") || !strings.Contains(err.Error(), "exit status 5") {
		t.Errorf("Error() = %q should name the segment and status", err)
	}
	assertEmptyDir(t, h.work)
}

func TestSpeakWithoutPlayerStreamsEverything(t *testing.T) {
	segments := segmentsN(3)
	e := mock.New()
	p := New(Options{
		Engine:  e,
		Voice:   testVoice,
		WorkDir: filepath.Join(t.TempDir(), "does-not-exist"),
		Logger:  quietLogger(),
	})

	if err := p.Speak(context.Background(), segments); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	calls := e.Calls()
	if len(calls) != 3 {
		t.Fatalf("engine got %d calls, want 3", len(calls))
	}
	for i, c := range calls {
		if !c.Streaming() || c.Text != segments[i] {
			t.Errorf("call %d = %+v, want streaming of %q", i, c, segments[i])
		}
	}
}

func TestSpeakSingleSegmentCreatesNoWorkspace(t *testing.T) {
	e := mock.New()
	player := audio.DefaultMockPlayer()
	// Creating a workspace under a missing parent would fail the run.
	p := New(Options{
		Engine:  e,
		Player:  player,
		Voice:   testVoice,
		WorkDir: filepath.Join(t.TempDir(), "does-not-exist"),
		Logger:  quietLogger(),
	})

	if err := p.Speak(context.Background(), []string{"Hello."}); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if player.PlayCount() != 0 {
		t.Error("a single segment should be streamed, not played")
	}
	if calls := e.Calls(); len(calls) != 1 || !calls[0].Streaming() {
		t.Errorf("calls = %+v, want one streaming call", calls)
	}

	// The same setup with two segments needs a workspace.
	if err := p.Speak(context.Background(), segmentsN(2)); err == nil {
		t.Error("Speak() with two segments should fail without a workspace parent")
	}
}

func TestSpeakCancelled(t *testing.T) {
	segments := segmentsN(3)
	h := newHarness(t, segments)
	h.engine.Delay = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := h.p.Speak(ctx, segments)
	if err == nil {
		t.Fatal("Speak() should fail when cancelled")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not stop the run")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Speak() error = %v, want context.DeadlineExceeded in chain", err)
	}
	assertEmptyDir(t, h.work)
}

func TestSpeakEmpty(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.p.Speak(context.Background(), nil); err != nil {
		t.Errorf("Speak(nil) error = %v", err)
	}
	if h.engine.CallCount() != 0 {
		t.Error("engine should not be called")
	}
}

func TestSegmentError(t *testing.T) {
	cause := &subprocess.StatusError{Command: "kokoro-tts", Status: 2, Stderr: "bad voice"}
	err := newSegmentError(ErrSynthesisFailed, 2, 5, StagePrefetch, cause)

	if !errors.Is(err, ErrSynthesisFailed) {
		t.Error("errors.Is(kind) = false")
	}
	if errors.Is(err, ErrPlaybackFailed) {
		t.Error("errors.Is(other kind) = true")
	}
	var se *subprocess.StatusError
	if !errors.As(err, &se) || se != cause {
		t.Error("errors.As(StatusError) should find the cause")
	}

	want := "segment 2/5: synthesis failed (prefetch, exit status 2): kokoro-tts exited with status 2: bad voice"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	noStatus := newSegmentError(ErrMissingPrefetch, 3, 3, StagePrefetch, os.ErrNotExist)
	if noStatus.Status != -1 {
		t.Errorf("Status = %d, want -1", noStatus.Status)
	}
	if strings.Contains(noStatus.Error(), "exit status") {
		t.Errorf("Error() = %q should not mention an exit status", noStatus.Error())
	}
}
