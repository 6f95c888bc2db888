// Package phonetic implements a wakeword.Spotter that transcribes a sliding
// window of recent audio and scores the text against the keyphrase.
//
// Scoring runs every hop (default 300 ms) over the last window (default
// 1.5 s). For every run of words in the transcript as long as the keyphrase,
// two signals are combined:
//
//  1. Jaro-Winkler similarity of the run and the keyphrase strings.
//  2. The share of keyphrase words whose Double Metaphone codes overlap the
//     code of the word at the same position.
//
// The mean of both is the score; an exact phrase occurrence scores 1. The
// spotter fires when the best score reaches the threshold (default 0.85).
// Lowering the threshold accepts more mishearings at the cost of false
// triggers.
//
// Transcription runs off the caller's goroutine. Process hands a copy of the
// window to a background scorer, skips hops while one is still running and
// reports the verdict on the first call after it lands; [Spotter.Behind] then
// tells how many frames arrived after the scored window ended.
package phonetic

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/voxbridge/pkg/audio"
	"github.com/MrWong99/voxbridge/pkg/provider/stt"
	"github.com/MrWong99/voxbridge/pkg/provider/wakeword"
)

const (
	defaultThreshold = 0.85
	defaultWindow    = 1500 * time.Millisecond
	defaultHop       = 300 * time.Millisecond
	defaultTimeout   = 2 * time.Second
)

var nonWord = regexp.MustCompile(`[^a-z0-9' ]+`)

// Option is a functional option for configuring a Spotter.
type Option func(*Spotter)

// WithThreshold sets the score needed to fire, in [0, 1].
func WithThreshold(threshold float64) Option {
	return func(s *Spotter) { s.threshold = threshold }
}

// WithWindow sets how much recent audio each scoring pass transcribes.
func WithWindow(d time.Duration) Option {
	return func(s *Spotter) { s.window = d }
}

// WithHop sets how often the window is scored.
func WithHop(d time.Duration) Option {
	return func(s *Spotter) { s.hop = d }
}

// WithTimeout bounds a single transcription call.
func WithTimeout(d time.Duration) Option {
	return func(s *Spotter) { s.timeout = d }
}

// Spotter is a transcription-backed wakeword.Spotter. Process must not be
// called concurrently; Start and End may race with it.
type Spotter struct {
	tr        stt.Transcriber
	format    audio.Format
	keyphrase string
	threshold float64
	window    time.Duration
	hop       time.Duration
	timeout   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	buf         []byte
	windowBytes int
	hopFrames   int
	sinceScore  int
	frames      uint64   // frames seen in the current attempt
	gen         uint64   // bumped on every reset; stale verdicts are dropped
	scoring     bool     // a scorer goroutine is running
	pending     *verdict // landed verdict not yet reported
	behind      int
}

// verdict is the outcome of scoring the window that ended at frame end.
type verdict struct {
	gen uint64
	end uint64
	hit bool
	err error
}

var (
	_ wakeword.Spotter = (*Spotter)(nil)
	_ wakeword.Lagger  = (*Spotter)(nil)
)

// New returns a Spotter for keyphrase over frames of the given format.
func New(tr stt.Transcriber, format audio.Format, keyphrase string, opts ...Option) (*Spotter, error) {
	if tr == nil {
		return nil, errors.New("phonetic: transcriber must not be nil")
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if len(tokens(keyphrase)) == 0 {
		return nil, errors.New("phonetic: keyphrase must contain at least one word")
	}
	s := &Spotter{
		tr:        tr,
		format:    format,
		keyphrase: keyphrase,
		threshold: defaultThreshold,
		window:    defaultWindow,
		hop:       defaultHop,
		timeout:   defaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.threshold < 0 || s.threshold > 1 {
		return nil, fmt.Errorf("phonetic: threshold %v outside [0, 1]", s.threshold)
	}
	s.windowBytes = format.FramesFor(s.window) * format.FrameBytes()
	s.hopFrames = max(format.FramesFor(s.hop), 1)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// MaxLag returns the most frames [Spotter.Behind] can report: one
// transcription timeout plus a hop of slack.
func (s *Spotter) MaxLag() int {
	return s.format.FramesFor(s.timeout) + s.hopFrames
}

// Start clears the window.
func (s *Spotter) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

// End clears the window.
func (s *Spotter) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

// Close cancels any running transcription and waits for the scorer to exit.
func (s *Spotter) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Spotter) resetLocked() {
	s.buf = s.buf[:0]
	s.sinceScore = 0
	s.frames = 0
	s.gen++
	s.pending = nil
}

// Process appends frame to the window, reports a verdict that landed since
// the previous call and starts scoring when a hop is due and no scorer is
// running. It never waits for a transcription. A transcription failure is
// returned once; the window is kept so a later hop retries.
func (s *Spotter) Process(frame []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, frame...)
	if over := len(s.buf) - s.windowBytes; over > 0 {
		s.buf = append(s.buf[:0], s.buf[over:]...)
	}
	s.frames++

	if v := s.pending; v != nil {
		s.pending = nil
		if v.err != nil {
			return false, fmt.Errorf("phonetic: transcribe window: %w", v.err)
		}
		// The phrase is consumed so it cannot fire again on the next hop.
		s.behind = int(s.frames - v.end)
		s.resetLocked()
		return true, nil
	}

	s.sinceScore++
	if s.sinceScore >= s.hopFrames && !s.scoring {
		s.sinceScore = 0
		s.scoring = true
		s.wg.Add(1)
		go s.score(s.gen, s.frames, append([]byte(nil), s.buf...))
	}
	return false, nil
}

// Behind implements wakeword.Lagger.
func (s *Spotter) Behind() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.behind
}

func (s *Spotter) score(gen, end uint64, pcm []byte) {
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	text, err := s.tr.Transcribe(ctx, pcm)

	v := &verdict{gen: gen, end: end, err: err}
	if err == nil {
		v.hit = Score(text, s.keyphrase) >= s.threshold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoring = false
	if gen == s.gen && (v.hit || v.err != nil) {
		s.pending = v
	}
}

// Score returns the best match of keyphrase against any run of words in
// text, in [0, 1].
func Score(text, keyphrase string) float64 {
	words, phrase := tokens(text), tokens(keyphrase)
	if len(words) == 0 || len(phrase) == 0 {
		return 0
	}
	key := strings.Join(phrase, " ")
	if strings.Contains(" "+strings.Join(words, " ")+" ", " "+key+" ") {
		return 1
	}
	n := len(phrase)
	if len(words) < n {
		n = len(words)
	}
	var best float64
	for i := 0; i+n <= len(words); i++ {
		run := words[i : i+n]
		jw := matchr.JaroWinkler(strings.Join(run, " "), key, false)
		var hits int
		for j, p := range phrase {
			if j < len(run) && codesOverlap(run[j], p) {
				hits++
			}
		}
		score := (jw + float64(hits)/float64(len(phrase))) / 2
		if score > best {
			best = score
		}
	}
	return best
}

func codesOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}

// tokens lowercases s, strips punctuation and splits on whitespace.
func tokens(s string) []string {
	return strings.Fields(nonWord.ReplaceAllString(strings.ToLower(s), " "))
}
