package capture

// history keeps the newest idle inputs in a fixed ring so a late wake trigger
// can be replayed from the frame where the keyphrase ended.
type history struct {
	buf   []Input
	start int
	n     int
}

func newHistory(size int) *history {
	return &history{buf: make([]Input, max(size, 0))}
}

func (h *history) enabled() bool { return len(h.buf) > 0 }

func (h *history) push(in Input) {
	if len(h.buf) == 0 {
		return
	}
	h.buf[(h.start+h.n)%len(h.buf)] = in
	if h.n < len(h.buf) {
		h.n++
	} else {
		h.start = (h.start + 1) % len(h.buf)
	}
}

// last returns the newest k inputs, oldest first. Fewer are returned when the
// ring holds fewer.
func (h *history) last(k int) []Input {
	k = min(max(k, 0), h.n)
	out := make([]Input, k)
	for j := range out {
		out[j] = h.buf[(h.start+h.n-k+j)%len(h.buf)]
	}
	return out
}

func (h *history) reset() {
	clear(h.buf)
	h.start, h.n = 0, 0
}
