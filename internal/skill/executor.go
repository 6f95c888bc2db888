package skill

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/intent"
	"github.com/MrWong99/voxbridge/internal/observe"
)

// Executor dispatches intents to their skills.
type Executor struct {
	skills  map[intent.Skill]Skill
	metrics *observe.Metrics
}

// Option configures an [Executor].
type Option func(*Executor)

// WithMetrics records intents, skill latency and classified failures on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor registers skills by their ID. Two skills with the same ID are
// an error.
func NewExecutor(skills []Skill, opts ...Option) (*Executor, error) {
	e := &Executor{skills: make(map[intent.Skill]Skill, len(skills))}
	for _, s := range skills {
		if _, dup := e.skills[s.ID()]; dup {
			return nil, fmt.Errorf("skill: duplicate skill %q", s.ID())
		}
		e.skills[s.ID()] = s
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Has reports whether a skill is registered for id.
func (e *Executor) Has(id intent.Skill) bool {
	_, ok := e.skills[id]
	return ok
}

// Execute runs the skill for in. An intent with no registered skill gets
// [ReplyUnsupported].
func (e *Executor) Execute(ctx context.Context, in intent.Intent) Result {
	ctx, span := observe.StartSpan(ctx, "skill.execute")
	defer span.End()
	span.SetAttributes(attribute.String("skill", string(in.Skill)))

	if e.metrics != nil {
		e.metrics.RecordIntent(ctx, string(in.Skill))
	}
	s, ok := e.skills[in.Skill]
	if !ok {
		observe.Logger(ctx).Error("skill: no skill registered", "skill", in.Skill)
		return Result{Text: ReplyUnsupported, Err: fmt.Errorf("skill: %q not registered", in.Skill)}
	}

	start := time.Now()
	res := s.Execute(ctx, in.Transcript)
	elapsed := time.Since(start)

	if e.metrics != nil {
		e.metrics.RecordSkill(ctx, string(in.Skill), elapsed)
	}
	if res.Err != nil {
		kind := fault.KindOf(res.Err)
		observe.Logger(ctx).Warn("skill failed",
			"skill", in.Skill, "kind", kind.String(), "error", res.Err, "duration", elapsed)
		span.SetStatus(codes.Error, res.Err.Error())
		if e.metrics != nil {
			e.metrics.RecordError(ctx, kind.String(), string(in.Skill))
		}
	}
	return res
}
