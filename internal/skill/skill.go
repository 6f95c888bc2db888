// Package skill executes routed intents and produces the text spoken back to
// the user.
//
// A skill never returns an error to its caller. Every failure becomes a fixed
// reply; the classified cause travels in [Result].Err for logs and metrics.
package skill

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/intent"
	"github.com/MrWong99/voxbridge/internal/inventory"
	"github.com/MrWong99/voxbridge/pkg/provider/llm"
)

// Replies spoken by the skills.
const (
	ReplyAddFormat     = "I didn't understand the format. Please say something like 'add one item to the inventory'."
	ReplyNoItem        = "I didn't catch the item name. Please try again."
	ReplyTooMany       = "That quantity is too large for the inventory."
	ReplyAddFailed     = "Sorry, I had a problem updating the database."
	ReplyQueryFailed   = "Sorry, I had a problem querying the database."
	ReplyNoTemperature = "I was unable to read the CPU temperature."
	ReplyLocalDown     = "Sorry, my local model is not responding right now."
	ReplyCloudSlow     = "Sorry, the cloud is not responding quickly enough."
	ReplyCloudDown     = "Sorry, I'm having trouble connecting to the cloud at the moment."
	ReplyUnsupported   = "Sorry, I can't help with that yet."
)

// Result is the outcome of one skill execution.
type Result struct {
	// Text is the reply to speak. Never empty.
	Text string

	// Item is the stored row after an inventory mutation, nil otherwise.
	Item *inventory.Item

	// Err is the classified failure behind an apology or clarification.
	Err error
}

// Skill handles transcripts for one intent.
type Skill interface {
	ID() intent.Skill
	Execute(ctx context.Context, transcript string) Result
}

// ---- AddToInventory --------------------------------------------------------

// Add parses "add <quantity> <item> to ..." and upserts the item.
type Add struct {
	Store inventory.Store
}

var _ Skill = (*Add)(nil)

// ID implements Skill.
func (s *Add) ID() intent.Skill { return intent.AddToInventory }

// Execute implements Skill.
func (s *Add) Execute(ctx context.Context, transcript string) Result {
	cmd, err := ParseAdd(transcript)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoItem):
			return Result{Text: ReplyNoItem, Err: err}
		case errors.Is(err, ErrQuantityTooLarge):
			return Result{Text: ReplyTooMany, Err: err}
		}
		return Result{Text: ReplyAddFormat, Err: err}
	}
	item, err := s.Store.Add(ctx, cmd.Item, cmd.Quantity)
	if err != nil {
		if fault.KindOf(err) == fault.KindUnknown {
			err = fault.Store("add", err)
		}
		return Result{Text: ReplyAddFailed, Err: err}
	}
	return Result{
		Text: fmt.Sprintf("Okay, I've added %d %s to the inventory.", cmd.Quantity, plural(cmd.Item, cmd.Quantity)),
		Item: &item,
	}
}

// plural appends "s" to item for quantities above one unless it already ends
// in "s".
func plural(item string, qty int) string {
	if qty > 1 && !strings.HasSuffix(item, "s") {
		return item + "s"
	}
	return item
}

// ---- InventoryQuery --------------------------------------------------------

// Query lists the inventory or the items matching the fragment after
// "inventory for".
type Query struct {
	Store inventory.Store
}

var _ Skill = (*Query)(nil)

// ID implements Skill.
func (s *Query) ID() intent.Skill { return intent.InventoryQuery }

// Execute implements Skill.
func (s *Query) Execute(ctx context.Context, transcript string) Result {
	name := ParseQuery(transcript)
	var (
		items []inventory.Item
		err   error
	)
	if name == AllItems {
		items, err = s.Store.List(ctx)
	} else {
		items, err = s.Store.Search(ctx, name)
	}
	if err != nil {
		if fault.KindOf(err) == fault.KindUnknown {
			err = fault.Store("query", err)
		}
		return Result{Text: ReplyQueryFailed, Err: err}
	}
	if len(items) == 0 {
		return Result{Text: fmt.Sprintf("No inventory found for %s.", name)}
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%d %s", it.Quantity, it.Name)
	}
	return Result{Text: "Current inventory shows: " + strings.Join(parts, ", ") + "."}
}

// ---- SystemTelemetry -------------------------------------------------------

// DefaultThermalZone is the sysfs file holding the CPU temperature in
// millidegrees Celsius.
const DefaultThermalZone = "/sys/class/thermal/thermal_zone0/temp"

// Telemetry reads the CPU temperature.
type Telemetry struct {
	// Path defaults to DefaultThermalZone.
	Path string
}

var _ Skill = (*Telemetry)(nil)

// ID implements Skill.
func (s *Telemetry) ID() intent.Skill { return intent.SystemTelemetry }

// Execute implements Skill.
func (s *Telemetry) Execute(_ context.Context, _ string) Result {
	path := s.Path
	if path == "" {
		path = DefaultThermalZone
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{Text: ReplyNoTemperature, Err: fault.DeviceIO("read thermal zone", err)}
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return Result{Text: ReplyNoTemperature, Err: fault.Parse("parse thermal zone", err)}
	}
	return Result{Text: fmt.Sprintf("The current CPU temperature is %.1f degrees Celsius.", float64(milli)/1000)}
}

// ---- ConversationalSkill ---------------------------------------------------

// DefaultLocalTimeout bounds one local model turn, lock wait included.
const DefaultLocalTimeout = 30 * time.Second

// Conversation answers small talk with the local model, carrying the shared
// rolling history.
type Conversation struct {
	Model   llm.Provider
	History *History

	// Timeout defaults to DefaultLocalTimeout.
	Timeout time.Duration
}

var _ Skill = (*Conversation)(nil)

// ID implements Skill.
func (s *Conversation) ID() intent.Skill { return intent.Conversational }

// Execute implements Skill.
func (s *Conversation) Execute(ctx context.Context, transcript string) Result {
	ctx, cancel := context.WithTimeout(ctx, orDefault(s.Timeout, DefaultLocalTimeout))
	defer cancel()

	reply, err := s.History.Turn(ctx, transcript, func(ctx context.Context, history []llm.Message) (string, error) {
		resp, err := s.Model.Complete(ctx, llm.CompletionRequest{Messages: history})
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(resp.Content) == "" {
			return "", llm.ErrEmptyResponse
		}
		return resp.Content, nil
	})
	if err != nil {
		return Result{Text: ReplyLocalDown, Err: fault.ExternalService(s.Model.Name(), err)}
	}
	return Result{Text: reply}
}

// ---- CloudFallbackSkill ----------------------------------------------------

// DefaultCloudTimeout bounds the whole cloud call, fallbacks included.
const DefaultCloudTimeout = 20 * time.Second

// Cloud sends the transcript alone to the cloud model.
type Cloud struct {
	Model llm.Provider

	// Timeout defaults to DefaultCloudTimeout.
	Timeout time.Duration
}

var _ Skill = (*Cloud)(nil)

// ID implements Skill.
func (s *Cloud) ID() intent.Skill { return intent.CloudFallback }

// Execute implements Skill.
func (s *Cloud) Execute(ctx context.Context, transcript string) Result {
	ctx, cancel := context.WithTimeout(ctx, orDefault(s.Timeout, DefaultCloudTimeout))
	defer cancel()

	resp, err := s.Model.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: transcript}},
	})
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = llm.ErrEmptyResponse
	}
	switch {
	case err == nil:
		return Result{Text: resp.Content}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return Result{Text: ReplyCloudSlow, Err: fault.ExternalService(s.Model.Name(), err)}
	default:
		return Result{Text: ReplyCloudDown, Err: fault.ExternalService(s.Model.Name(), err)}
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
