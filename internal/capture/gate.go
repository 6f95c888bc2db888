package capture

import (
	"fmt"

	"github.com/MrWong99/voxbridge/pkg/provider/wakeword"
)

// Gate feeds frames to a wake-word spotter while armed. A trigger disarms the
// gate and ends the spotter's attempt; Arm starts a fresh attempt. The gate
// never retries a failed call.
type Gate struct {
	spotter wakeword.Spotter
	armed   bool
	behind  int
}

// NewGate wraps s. The gate starts disarmed.
func NewGate(s wakeword.Spotter) *Gate {
	return &Gate{spotter: s}
}

// Arm starts a new listening attempt with clean decoder state. Arming an
// armed gate restarts the attempt.
func (g *Gate) Arm() error {
	if g.armed {
		if err := g.spotter.End(); err != nil {
			return fmt.Errorf("capture: end wake attempt: %w", err)
		}
		g.armed = false
	}
	if err := g.spotter.Start(); err != nil {
		return fmt.Errorf("capture: start wake attempt: %w", err)
	}
	g.armed = true
	return nil
}

// Disarm ends the current attempt, if any.
func (g *Gate) Disarm() error {
	if !g.armed {
		return nil
	}
	g.armed = false
	if err := g.spotter.End(); err != nil {
		return fmt.Errorf("capture: end wake attempt: %w", err)
	}
	return nil
}

// Armed reports whether frames are being scanned.
func (g *Gate) Armed() bool { return g.armed }

// Process scans one frame. It returns false without consulting the spotter
// when disarmed. On a trigger the gate disarms itself.
func (g *Gate) Process(frame []byte) (bool, error) {
	if !g.armed {
		return false, nil
	}
	hit, err := g.spotter.Process(frame)
	if err != nil {
		return false, fmt.Errorf("capture: wake spotter: %w", err)
	}
	if hit {
		g.behind = 0
		if l, ok := g.spotter.(wakeword.Lagger); ok {
			g.behind = max(l.Behind(), 0)
		}
		if err := g.Disarm(); err != nil {
			return true, err
		}
	}
	return hit, nil
}

// Behind returns how many frames before the last trigger's frame the
// keyphrase ended. It is zero for spotters that decide on the frame itself.
func (g *Gate) Behind() int { return g.behind }
