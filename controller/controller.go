// Package controller turns user submissions into conversation turns. It is
// the only writer of the conversation and of the busy flag.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/linanwx/hypermath/backend"
	"github.com/linanwx/hypermath/bus"
	"github.com/linanwx/hypermath/conversation"
	"github.com/linanwx/hypermath/logger"
)

// ApologyText replaces any failed reply in the conversation.
const ApologyText = "Sorry, I encountered an error. Please try again later."

const eventSource = "controller"

// Sender delivers one prompt to the explanation service.
type Sender interface {
	Send(ctx context.Context, prompt string) (*backend.Reply, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, prompt string) (*backend.Reply, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, prompt string) (*backend.Reply, error) {
	return f(ctx, prompt)
}

// State is a read-only snapshot for front-ends.
type State struct {
	Version  uint64                 `json:"version"`
	Busy     bool                   `json:"busy"`
	Input    string                 `json:"input"`
	Turns    []conversation.Turn    `json:"turns"`
	Artifact *conversation.Artifact `json:"artifact,omitempty"`
}

// LastTurn returns the newest turn.
func (s State) LastTurn() conversation.Turn {
	if len(s.Turns) == 0 {
		return conversation.Turn{}
	}
	return s.Turns[len(s.Turns)-1]
}

// Option configures a Controller.
type Option func(*Controller)

// WithBus publishes a state.changed event after every mutation.
func WithBus(b *bus.Bus) Option {
	return func(c *Controller) { c.bus = b }
}

// WithClock overrides the turn timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller runs the Idle → Submitting → Succeeded|Failed → Idle cycle.
type Controller struct {
	conv   *conversation.Conversation
	sender Sender
	bus    *bus.Bus
	now    func() time.Time

	mu      sync.Mutex
	input   string
	busy    bool
	version uint64
	idle    chan struct{} // closed when the in-flight request settles
}

// New creates a controller that owns conv.
func New(conv *conversation.Conversation, sender Sender, opts ...Option) *Controller {
	if conv == nil {
		conv = conversation.New(nil)
	}
	c := &Controller{
		conv:    conv,
		sender:  sender,
		now:     time.Now,
		version: 1,
		idle:    closedChan(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetInput replaces the input buffer.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.input == text {
		return
	}
	c.input = text
	c.version++
	c.publishLocked()
}

// Input returns the input buffer.
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Send submits text as if it had been typed into the input buffer. Rejected
// submissions leave the buffer untouched.
func (c *Controller) Send(ctx context.Context, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		logger.Debug("submission ignored", "reason", "busy")
		return false
	}
	if strings.TrimSpace(text) == "" {
		logger.Debug("submission ignored", "reason", "empty")
		return false
	}
	c.input = text
	return c.submitLocked(ctx)
}

// Submit sends the input buffer. It returns false, changing nothing, when a
// request is already in flight or the buffer is blank.
func (c *Controller) Submit(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitLocked(ctx)
}

func (c *Controller) submitLocked(ctx context.Context) bool {
	if c.busy {
		logger.Debug("submission ignored", "reason", "busy")
		return false
	}
	text := c.input
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		logger.Debug("submission ignored", "reason", "empty")
		return false
	}

	turn := conversation.Turn{
		ID:        c.conv.IDs().Next(),
		Role:      conversation.RoleUser,
		Content:   text,
		CreatedAt: c.now(),
	}
	c.conv.Append(turn)
	c.input = ""
	c.busy = true
	c.idle = make(chan struct{})
	c.version++
	c.publishLocked()

	logger.Info("turn submitted", "turnId", turn.ID, "promptChars", len(prompt))
	go c.resolve(context.WithoutCancel(ctx), turn.ID, prompt)
	return true
}

// Snapshot returns the current state. The artifact is derived on every call.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// WaitIdle blocks until no request is in flight or ctx is done.
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) resolve(ctx context.Context, userTurnID, prompt string) {
	start := time.Now()
	reply, err := c.call(ctx, prompt)

	turn := conversation.Turn{
		Role:      conversation.RoleAssistant,
		CreatedAt: c.now(),
	}
	if err != nil {
		logger.Error("reply failed", "turnId", userTurnID, "err", err, "latencyMs", time.Since(start).Milliseconds())
		turn.Content = ApologyText
		turn.Failed = true
	} else {
		turn.Content = reply.Explanation
		turn.Artifact = conversation.NewArtifact(reply.VideoRef, reply.CodeText)
		if turn.Artifact == nil && reply.CodeText != "" {
			logger.Debug("code without video dropped", "turnId", userTurnID)
		}
	}

	c.mu.Lock()
	turn.ID = c.conv.IDs().Next()
	c.conv.Append(turn)
	c.busy = false
	c.version++
	c.publishLocked()
	close(c.idle)
	c.mu.Unlock()

	logger.Info("turn resolved", "turnId", turn.ID, "replyTo", userTurnID, "ok", err == nil, "hasArtifact", turn.Artifact != nil)
}

// call invokes the sender, converting a panic into an error so busy is
// always released.
func (c *Controller) call(ctx context.Context, prompt string) (reply *backend.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	if c.sender == nil {
		return nil, fmt.Errorf("no sender configured")
	}
	reply, err = c.sender.Send(ctx, prompt)
	if err == nil && reply == nil {
		err = fmt.Errorf("sender returned no reply")
	}
	return reply, err
}

func (c *Controller) snapshotLocked() State {
	turns := c.conv.Turns()
	s := State{
		Version: c.version,
		Busy:    c.busy,
		Input:   c.input,
		Turns:   turns,
	}
	if art, ok := conversation.Select(turns); ok {
		s.Artifact = &art
	}
	return s
}

// publishLocked queues the current state on the bus. Publishing under the
// lock keeps events in version order; Bus.Publish never blocks.
func (c *Controller) publishLocked() {
	if c.bus == nil {
		return
	}
	state := c.snapshotLocked()
	event, err := bus.NewEvent(bus.EventStateChanged, eventSource, state.Version, state)
	if err != nil {
		logger.Error("encode state event", "err", err)
		return
	}
	c.bus.Publish(event)
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
