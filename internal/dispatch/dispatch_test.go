package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/voxbridge/internal/dispatch"
	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/intent"
	"github.com/MrWong99/voxbridge/internal/inventory"
	"github.com/MrWong99/voxbridge/internal/skill"
	"github.com/MrWong99/voxbridge/internal/transport"
	"github.com/MrWong99/voxbridge/internal/transport/mock"
	sttmock "github.com/MrWong99/voxbridge/pkg/provider/stt/mock"
)

// ---- test doubles ----

// countingStore counts every datastore call.
type countingStore struct {
	inventory.Store
	calls atomic.Int32
}

func (s *countingStore) Add(ctx context.Context, item string, qty int) (inventory.Item, error) {
	s.calls.Add(1)
	return s.Store.Add(ctx, item, qty)
}

func (s *countingStore) List(ctx context.Context) ([]inventory.Item, error) {
	s.calls.Add(1)
	return s.Store.List(ctx)
}

func (s *countingStore) Search(ctx context.Context, f string) ([]inventory.Item, error) {
	s.calls.Add(1)
	return s.Store.Search(ctx, f)
}

type speaker struct {
	mu     sync.Mutex
	texts  []string
	cues   int
	events []string
}

func (s *speaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	s.events = append(s.events, "speak")
	return nil
}

func (s *speaker) PlayCue(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cues++
	s.events = append(s.events, "cue")
	return nil
}

func (s *speaker) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// blockingChunks blocks every Recv until release is closed, then ends.
type blockingChunks struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingChunks() *blockingChunks {
	return &blockingChunks{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingChunks) Recv(ctx context.Context) ([]byte, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, fault.StreamTransport("recv chunk", ctx.Err())
	}
}

type fixture struct {
	store   *countingStore
	stt     *sttmock.Provider
	speaker *speaker
	d       *dispatch.Dispatcher
}

func newFixture(t *testing.T, cfg dispatch.Config) *fixture {
	t.Helper()
	f := &fixture{
		store:   &countingStore{Store: inventory.NewMemory()},
		stt:     &sttmock.Provider{},
		speaker: &speaker{},
	}
	exec, err := skill.NewExecutor([]skill.Skill{
		&skill.Add{Store: f.store},
		&skill.Query{Store: f.store},
	})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	f.d = dispatch.New(cfg, f.stt, intent.Default(), exec, f.speaker)
	return f
}

func chunks(n int) *mock.Chunks {
	c := &mock.Chunks{}
	for i := range n {
		c.List = append(c.List, []byte{byte(i), 0})
	}
	return c
}

// ---- end-to-end ----

func TestHandleStream_AddThenQuery(t *testing.T) {
	t.Parallel()
	f := newFixture(t, dispatch.Config{})
	ctx := context.Background()

	f.stt.Transcript = "add two beakers to inventory"
	status, err := f.d.HandleStream(ctx, chunks(3))
	if err != nil || status != transport.StatusOK {
		t.Fatalf("HandleStream = %q, %v", status, err)
	}
	items, _ := f.store.Search(ctx, "beakers")
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Errorf("stored = %+v, want beakers 2", items)
	}

	f.stt.Transcript = "what is the inventory for beakers"
	if _, err := f.d.HandleStream(ctx, chunks(2)); err != nil {
		t.Fatalf("HandleStream: %v", err)
	}

	want := []string{
		"Okay, I've added 2 beakers to the inventory.",
		"Current inventory shows: 2 beakers.",
	}
	got := f.speaker.Texts()
	if len(got) != len(want) {
		t.Fatalf("spoken = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("spoken[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(f.stt.Sessions) != 2 || len(f.stt.Sessions[0].Chunks) != 3 {
		t.Errorf("stt sessions = %d, first got %d chunks", len(f.stt.Sessions), len(f.stt.Sessions[0].Chunks))
	}
}

func TestHandleStream_EmptyTranscript(t *testing.T) {
	t.Parallel()
	f := newFixture(t, dispatch.Config{})

	status, err := f.d.HandleStream(context.Background(), chunks(4))
	if err != nil || status != transport.StatusOK {
		t.Fatalf("HandleStream = %q, %v", status, err)
	}
	if got := f.speaker.Texts(); len(got) != 1 || got[0] != dispatch.ReplyNotHeard {
		t.Errorf("spoken = %q, want %q", got, dispatch.ReplyNotHeard)
	}
	if n := f.store.calls.Load(); n != 0 {
		t.Errorf("datastore touched %d times, want 0", n)
	}
}

// ---- failure handling ----

func TestHandleStream_CueBeforeReply(t *testing.T) {
	t.Parallel()
	f := newFixture(t, dispatch.Config{})
	f.stt.Transcript = "what is the inventory for flasks"
	if _, err := f.d.HandleStream(context.Background(), chunks(1)); err != nil {
		t.Fatalf("HandleStream: %v", err)
	}
	ev := f.speaker.events
	if len(ev) != 2 || ev[0] != "cue" || ev[1] != "speak" {
		t.Errorf("events = %q, want [cue speak]", ev)
	}
}

func TestHandleStream_STTFailureMeansNotHeard(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		setup func(p *sttmock.Provider)
	}{
		{"start fails", func(p *sttmock.Provider) { p.StartStreamErr = errors.New("model missing") }},
		{"finalize fails", func(p *sttmock.Provider) {
			p.Transcript = "add two beakers to inventory"
			p.FinalizeErr = errors.New("decoder crashed")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, dispatch.Config{})
			tt.setup(f.stt)
			status, err := f.d.HandleStream(context.Background(), chunks(2))
			if err != nil || status != transport.StatusOK {
				t.Fatalf("HandleStream = %q, %v", status, err)
			}
			if got := f.speaker.Texts(); len(got) != 1 || got[0] != dispatch.ReplyNotHeard {
				t.Errorf("spoken = %q", got)
			}
			if n := f.store.calls.Load(); n != 0 {
				t.Errorf("datastore touched %d times", n)
			}
		})
	}
}

func TestHandleStream_StreamErrorAbandons(t *testing.T) {
	t.Parallel()
	f := newFixture(t, dispatch.Config{})
	f.stt.Transcript = "add two beakers to inventory"
	c := chunks(2)
	c.Err = errors.New("connection reset")

	_, err := f.d.HandleStream(context.Background(), c)
	if !fault.Is(err, fault.KindStreamTransport) {
		t.Fatalf("err = %v, want StreamTransport", err)
	}
	if got := f.speaker.Texts(); len(got) != 0 {
		t.Errorf("spoke %q after abandoned stream", got)
	}
	if n := f.store.calls.Load(); n != 0 {
		t.Errorf("datastore touched %d times", n)
	}
	if s := f.stt.Sessions[0]; s.CloseCount == 0 {
		t.Error("stt session not closed")
	}
}

func TestHandleStream_AbortWrappingEOFAbandons(t *testing.T) {
	t.Parallel()
	f := newFixture(t, dispatch.Config{})
	f.stt.Transcript = "add two beakers to inventory"
	c := chunks(2)
	c.Err = fault.StreamTransport("recv chunk", fmt.Errorf("failed to read frame header: %w", io.EOF))

	_, err := f.d.HandleStream(context.Background(), c)
	if !fault.Is(err, fault.KindStreamTransport) {
		t.Fatalf("err = %v, want StreamTransport", err)
	}
	if got := f.speaker.Texts(); len(got) != 0 {
		t.Errorf("spoke %q after aborted stream", got)
	}
	if f.speaker.cues != 0 {
		t.Errorf("cue played %d times after aborted stream", f.speaker.cues)
	}
	if n := f.store.calls.Load(); n != 0 {
		t.Errorf("datastore touched %d times", n)
	}
	items, _ := f.store.Store.List(context.Background())
	if len(items) != 0 {
		t.Errorf("inventory = %+v, want empty", items)
	}
}

// ---- concurrency ----

func TestHandleStream_SessionLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, dispatch.Config{MaxSessions: 1})

	first := newBlockingChunks()
	errc := make(chan error, 1)
	go func() {
		_, err := f.d.HandleStream(context.Background(), first)
		errc <- err
	}()
	<-first.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.d.HandleStream(ctx, chunks(1)); !fault.Is(err, fault.KindStreamTransport) {
		t.Errorf("second stream err = %v, want StreamTransport while slot is held", err)
	}

	close(first.release)
	if err := <-errc; err != nil {
		t.Fatalf("first stream: %v", err)
	}
	if _, err := f.d.HandleStream(context.Background(), chunks(1)); err != nil {
		t.Errorf("stream after release: %v", err)
	}
}

func TestClose_DrainsThenRejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t, dispatch.Config{})

	inflight := newBlockingChunks()
	errc := make(chan error, 1)
	go func() {
		_, err := f.d.HandleStream(context.Background(), inflight)
		errc <- err
	}()
	<-inflight.started

	closed := make(chan error, 1)
	go func() { closed <- f.d.Close(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for !f.d.Draining() {
		select {
		case <-deadline:
			t.Fatal("dispatcher never started draining")
		case <-time.After(time.Millisecond):
		}
	}
	select {
	case err := <-closed:
		t.Fatalf("Close returned %v with a session in flight", err)
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := f.d.HandleStream(context.Background(), chunks(1)); !errors.Is(err, dispatch.ErrDraining) {
		t.Errorf("err = %v, want ErrDraining", err)
	}

	close(inflight.release)
	if err := <-errc; err != nil {
		t.Errorf("in-flight stream: %v", err)
	}
	if err := <-closed; err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestClose_ContextBound(t *testing.T) {
	t.Parallel()
	f := newFixture(t, dispatch.Config{})
	inflight := newBlockingChunks()
	go func() { _, _ = f.d.HandleStream(context.Background(), inflight) }()
	<-inflight.started
	defer close(inflight.release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close err = %v, want deadline exceeded", err)
	}
}
