package phonetic_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/voxbridge/pkg/audio"
	"github.com/MrWong99/voxbridge/pkg/provider/stt/mock"
	"github.com/MrWong99/voxbridge/pkg/provider/wakeword/phonetic"
)

const keyphrase = "bridge to engineering"

func TestScore(t *testing.T) {
	t.Parallel()
	if got := phonetic.Score("Bridge to engineering!", keyphrase); got != 1 {
		t.Errorf("Score(exact) = %v, want 1", got)
	}
	if got := phonetic.Score("okay bridge to engineering add one flask", keyphrase); got != 1 {
		t.Errorf("Score(embedded) = %v, want 1", got)
	}
	if got := phonetic.Score("", keyphrase); got != 0 {
		t.Errorf("Score(empty) = %v, want 0", got)
	}
	near := phonetic.Score("bridge two engineering", keyphrase)
	far := phonetic.Score("what is the temperature", keyphrase)
	if near <= far {
		t.Errorf("Score(near) = %v should exceed Score(far) = %v", near, far)
	}
	if far >= 0.85 {
		t.Errorf("Score(far) = %v, want below default threshold", far)
	}
}

func newFrame() []byte { return make([]byte, audio.DefaultFormat.FrameBytes()) }

// step feeds one frame and waits for the scorer it may have started.
func step(t *testing.T, s *phonetic.Spotter) bool {
	t.Helper()
	fired, err := s.Process(newFrame())
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	s.WaitScoring()
	return fired
}

func TestSpotter_ScoresEveryHop(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	tr := &mock.Provider{TranscribeFunc: func([]byte) (string, error) {
		calls.Add(1)
		return "nothing here", nil
	}}
	// 30 ms frames, 90 ms hop -> one transcription per 3 frames.
	s, err := phonetic.New(tr, audio.DefaultFormat, keyphrase, phonetic.WithHop(90*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()
	_ = s.Start()
	for i := range 9 {
		if step(t, s) {
			t.Fatalf("frame %d fired on unrelated transcript", i)
		}
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("transcriptions = %d, want 3", n)
	}
}

func TestSpotter_FiresOnKeyphrase(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	tr := &mock.Provider{TranscribeFunc: func([]byte) (string, error) {
		if calls.Add(1) == 2 {
			return "Bridge to engineering.", nil
		}
		return "", nil
	}}
	s, err := phonetic.New(tr, audio.DefaultFormat, keyphrase, phonetic.WithHop(30*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()
	_ = s.Start()
	var fired []int
	for i := range 5 {
		if step(t, s) {
			fired = append(fired, i)
		}
	}
	// The window scored at frame 1 matches; the verdict is seen on frame 2.
	if len(fired) != 1 || fired[0] != 2 {
		t.Fatalf("fired at %v, want [2]", fired)
	}
	if got := s.Behind(); got != 1 {
		t.Errorf("Behind() = %d, want 1", got)
	}
}

func TestSpotter_ProcessDoesNotWaitForTranscription(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	var calls atomic.Int32
	tr := &mock.Provider{TranscribeFunc: func([]byte) (string, error) {
		calls.Add(1)
		<-release
		return "bridge to engineering", nil
	}}
	s, err := phonetic.New(tr, audio.DefaultFormat, keyphrase, phonetic.WithHop(30*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()
	_ = s.Start()

	const n = 50
	start := time.Now()
	for i := range n {
		fired, err := s.Process(newFrame())
		if err != nil || fired {
			t.Fatalf("Process(%d) = %v, %v while transcription is pending", i, fired, err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("%d Process calls took %v with a stalled transcriber", n, elapsed)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("transcriptions = %d, want 1 (hops skipped while scoring)", got)
	}

	close(release)
	s.WaitScoring()
	fired, err := s.Process(newFrame())
	if err != nil || !fired {
		t.Fatalf("Process() = %v, %v; want trigger once the verdict lands", fired, err)
	}
	// The scored window ended at the first frame; n more frames followed.
	if got := s.Behind(); got != n {
		t.Errorf("Behind() = %d, want %d", got, n)
	}
}

func TestSpotter_StaleVerdictDropped(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	tr := &mock.Provider{TranscribeFunc: func([]byte) (string, error) {
		<-release
		return "bridge to engineering", nil
	}}
	s, _ := phonetic.New(tr, audio.DefaultFormat, keyphrase, phonetic.WithHop(30*time.Millisecond))
	defer s.Close()
	_ = s.Start()
	if fired, _ := s.Process(newFrame()); fired {
		t.Fatal("fired before any verdict")
	}
	_ = s.End()
	close(release)
	s.WaitScoring()
	_ = s.Start()
	if fired, _ := s.Process(newFrame()); fired {
		t.Error("verdict from an ended attempt fired the new one")
	}
}

func TestSpotter_WindowIsBounded(t *testing.T) {
	t.Parallel()
	var (
		mu      sync.Mutex
		lastLen int
	)
	tr := &mock.Provider{TranscribeFunc: func(pcm []byte) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		lastLen = len(pcm)
		return "", nil
	}}
	// 150 ms window = 5 frames; score every frame.
	s, _ := phonetic.New(tr, audio.DefaultFormat, keyphrase,
		phonetic.WithWindow(150*time.Millisecond), phonetic.WithHop(30*time.Millisecond))
	defer s.Close()
	for range 12 {
		step(t, s)
	}
	if want := 5 * audio.DefaultFormat.FrameBytes(); lastLen != want {
		t.Errorf("window = %d bytes, want %d", lastLen, want)
	}
	_ = s.End()
	step(t, s)
	if want := audio.DefaultFormat.FrameBytes(); lastLen != want {
		t.Errorf("window after End = %d bytes, want %d", lastLen, want)
	}
}

func TestSpotter_TranscriberError(t *testing.T) {
	t.Parallel()
	tr := &mock.Provider{FinalizeErr: errors.New("model unavailable")}
	s, _ := phonetic.New(tr, audio.DefaultFormat, keyphrase, phonetic.WithHop(30*time.Millisecond))
	defer s.Close()
	step(t, s)
	if _, err := s.Process(newFrame()); err == nil {
		t.Error("Process() expected error from transcriber, got nil")
	}
	s.WaitScoring()
}

func TestSpotter_MaxLag(t *testing.T) {
	t.Parallel()
	s, _ := phonetic.New(&mock.Provider{}, audio.DefaultFormat, keyphrase,
		phonetic.WithHop(90*time.Millisecond), phonetic.WithTimeout(time.Second))
	defer s.Close()
	// 1 s of 30 ms frames rounds up to 34, plus a 3-frame hop.
	if got := s.MaxLag(); got != 37 {
		t.Errorf("MaxLag() = %d, want 37", got)
	}
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()
	tr := &mock.Provider{}
	if _, err := phonetic.New(nil, audio.DefaultFormat, keyphrase); err == nil {
		t.Error("New(nil transcriber) expected error")
	}
	if _, err := phonetic.New(tr, audio.DefaultFormat, "  "); err == nil {
		t.Error("New(blank keyphrase) expected error")
	}
	if _, err := phonetic.New(tr, audio.DefaultFormat, keyphrase, phonetic.WithThreshold(2)); err == nil {
		t.Error("New(threshold 2) expected error")
	}
}
