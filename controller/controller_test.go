package controller

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linanwx/hypermath/backend"
	"github.com/linanwx/hypermath/bus"
	"github.com/linanwx/hypermath/conversation"
)

// scriptedSender replies from a queue and can be held open to simulate an
// in-flight request.
type scriptedSender struct {
	mu      sync.Mutex
	calls   []string
	replies []scriptedReply
	gate    chan struct{}
	started chan struct{}
}

type scriptedReply struct {
	reply *backend.Reply
	err   error
}

func newScriptedSender(replies ...scriptedReply) *scriptedSender {
	return &scriptedSender{replies: replies, started: make(chan struct{}, 16)}
}

func (s *scriptedSender) Send(ctx context.Context, prompt string) (*backend.Reply, error) {
	s.mu.Lock()
	s.calls = append(s.calls, prompt)
	var next scriptedReply
	if len(s.replies) > 0 {
		next = s.replies[0]
		s.replies = s.replies[1:]
	} else {
		next = scriptedReply{err: errors.New("no scripted reply")}
	}
	gate := s.gate
	s.mu.Unlock()

	s.started <- struct{}{}
	if gate != nil {
		<-gate
	}
	return next.reply, next.err
}

func (s *scriptedSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
}

var derivatives = scriptedReply{reply: &backend.Reply{
	Explanation: "Derivatives measure...",
	VideoRef:    "http://x/d.mp4",
	CodeText:    "class Scene...",
}}

func TestInitialState(t *testing.T) {
	c := New(conversation.New(nil), newScriptedSender())

	s := c.Snapshot()
	if len(s.Turns) != 1 {
		t.Fatalf("initial turns = %d, want 1", len(s.Turns))
	}
	w := s.Turns[0]
	if w.Role != conversation.RoleAssistant || w.Content != conversation.WelcomeText || w.Artifact != nil {
		t.Fatalf("welcome turn = %+v", w)
	}
	if s.Busy || s.Artifact != nil {
		t.Fatalf("initial state = %+v", s)
	}
}

func TestSuccessfulSubmissionAppendsReplyWithArtifact(t *testing.T) {
	sender := newScriptedSender(derivatives)
	c := New(conversation.New(nil), sender)

	c.SetInput("explain derivatives")
	if !c.Submit(context.Background()) {
		t.Fatalf("Submit() rejected a valid prompt")
	}
	if c.Input() != "" {
		t.Fatalf("input buffer = %q after submit, want empty", c.Input())
	}
	waitIdle(t, c)

	s := c.Snapshot()
	if len(s.Turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(s.Turns))
	}
	user, reply := s.Turns[1], s.Turns[2]
	if user.Role != conversation.RoleUser || user.Content != "explain derivatives" {
		t.Fatalf("user turn = %+v", user)
	}
	if reply.Role != conversation.RoleAssistant || reply.Content != "Derivatives measure..." {
		t.Fatalf("reply turn = %+v", reply)
	}
	want := conversation.Artifact{VideoRef: "http://x/d.mp4", CodeText: "class Scene..."}
	if s.Artifact == nil || *s.Artifact != want {
		t.Fatalf("selected artifact = %+v, want %+v", s.Artifact, want)
	}
	if s.Busy {
		t.Fatalf("busy after resolution")
	}
	if sender.callCount() != 1 {
		t.Fatalf("sender calls = %d, want 1", sender.callCount())
	}
}

func TestFailureAppendsApologyAndKeepsPriorArtifact(t *testing.T) {
	sender := newScriptedSender(derivatives, scriptedReply{err: errors.New("connection refused")})
	c := New(conversation.New(nil), sender)

	c.Send(context.Background(), "explain derivatives")
	waitIdle(t, c)
	if !c.Send(context.Background(), "explain integrals") {
		t.Fatalf("second submission rejected")
	}
	waitIdle(t, c)

	s := c.Snapshot()
	if len(s.Turns) != 5 {
		t.Fatalf("turns = %d, want 5", len(s.Turns))
	}
	apology := s.Turns[4]
	if apology.Role != conversation.RoleAssistant || apology.Content != ApologyText || apology.Artifact != nil || !apology.Failed {
		t.Fatalf("apology turn = %+v", apology)
	}
	if s.Artifact == nil || s.Artifact.VideoRef != "http://x/d.mp4" {
		t.Fatalf("selected artifact = %+v, want the derivatives video", s.Artifact)
	}
	if s.Turns[2].Failed {
		t.Fatalf("successful reply marked failed: %+v", s.Turns[2])
	}
}

func TestEmptySubmissionsAreIgnored(t *testing.T) {
	sender := newScriptedSender()
	c := New(conversation.New(nil), sender)
	before := c.Snapshot()

	for _, text := range []string{"", "   ", "\t\n"} {
		if c.Send(context.Background(), text) {
			t.Fatalf("Send(%q) accepted", text)
		}
		c.SetInput(text)
		if c.Submit(context.Background()) {
			t.Fatalf("Submit() accepted %q", text)
		}
	}

	after := c.Snapshot()
	if len(after.Turns) != len(before.Turns) || after.Busy {
		t.Fatalf("state changed: %+v", after)
	}
	if sender.callCount() != 0 {
		t.Fatalf("sender called %d times", sender.callCount())
	}
}

func TestSubmissionWhileBusyIsDropped(t *testing.T) {
	sender := newScriptedSender(derivatives, derivatives)
	sender.gate = make(chan struct{})
	c := New(conversation.New(nil), sender)

	if !c.Send(context.Background(), "explain derivatives") {
		t.Fatalf("first submission rejected")
	}
	<-sender.started
	if !c.Busy() {
		t.Fatalf("controller not busy while request in flight")
	}

	c.SetInput("explain limits")
	if c.Submit(context.Background()) {
		t.Fatalf("Submit() accepted while busy")
	}
	if c.Send(context.Background(), "explain series") {
		t.Fatalf("Send() accepted while busy")
	}
	if got := c.Input(); got != "explain limits" {
		t.Fatalf("input buffer = %q, want it kept for later", got)
	}
	mid := c.Snapshot()
	if len(mid.Turns) != 2 || mid.LastTurn().Role != conversation.RoleUser {
		t.Fatalf("mid-flight turns = %+v", mid.Turns)
	}

	close(sender.gate)
	waitIdle(t, c)

	s := c.Snapshot()
	if len(s.Turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(s.Turns))
	}
	if sender.callCount() != 1 {
		t.Fatalf("sender calls = %d, want 1", sender.callCount())
	}
	if s.Turns[1].Content != "explain derivatives" {
		t.Fatalf("user turn = %+v", s.Turns[1])
	}
}

func TestConcurrentSubmitAcceptsExactlyOne(t *testing.T) {
	sender := newScriptedSender(derivatives)
	sender.gate = make(chan struct{})
	c := New(conversation.New(nil), sender)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Send(context.Background(), "explain derivatives") {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	close(sender.gate)
	waitIdle(t, c)

	if accepted.Load() != 1 {
		t.Fatalf("accepted = %d, want 1", accepted.Load())
	}
	if n := len(c.Snapshot().Turns); n != 3 {
		t.Fatalf("turns = %d, want 3", n)
	}
}

func TestOneReplyPerSubmissionInOrder(t *testing.T) {
	replies := []scriptedReply{
		{reply: &backend.Reply{Explanation: "one"}},
		{err: &backend.StatusError{Code: 500}},
		{reply: &backend.Reply{Explanation: "three", VideoRef: "http://x/3.mp4"}},
		{reply: &backend.Reply{Explanation: "four", CodeText: "code only"}},
	}
	c := New(conversation.New(nil), newScriptedSender(replies...))

	prev := c.Snapshot().Turns
	for i, p := range []string{"a", "b", "c", "d"} {
		if !c.Send(context.Background(), p) {
			t.Fatalf("submission %d rejected", i)
		}
		waitIdle(t, c)
		turns := c.Snapshot().Turns
		if len(turns) != len(prev)+2 {
			t.Fatalf("submission %d: turns = %d", i, len(turns))
		}
		for j := range prev {
			if turns[j].ID != prev[j].ID || turns[j].Content != prev[j].Content {
				t.Fatalf("turn %d changed: %+v -> %+v", j, prev[j], turns[j])
			}
		}
		prev = turns
	}

	wantContent := []string{conversation.WelcomeText, "a", "one", "b", ApologyText, "c", "three", "d", "four"}
	for i, turn := range prev {
		if turn.Content != wantContent[i] {
			t.Fatalf("turn %d content = %q, want %q", i, turn.Content, wantContent[i])
		}
		if i > 0 {
			cur, _ := strconv.Atoi(turn.ID)
			last, _ := strconv.Atoi(prev[i-1].ID)
			if cur <= last {
				t.Fatalf("turn ids not increasing: %q after %q", turn.ID, prev[i-1].ID)
			}
		}
	}
	if prev[8].Artifact != nil {
		t.Fatalf("code-only reply produced artifact %+v", prev[8].Artifact)
	}
	art, ok := conversation.Select(prev)
	if !ok || art.VideoRef != "http://x/3.mp4" {
		t.Fatalf("Select() = %+v, %v", art, ok)
	}
}

func TestSenderPanicReleasesBusy(t *testing.T) {
	c := New(conversation.New(nil), SenderFunc(func(context.Context, string) (*backend.Reply, error) {
		panic("boom")
	}))
	c.Send(context.Background(), "explain")
	waitIdle(t, c)

	s := c.Snapshot()
	if s.Busy || s.LastTurn().Content != ApologyText {
		t.Fatalf("state after panic = %+v", s)
	}
	if !c.Send(context.Background(), "again") {
		t.Fatalf("controller unusable after panic")
	}
	waitIdle(t, c)
}

func TestNilReplyIsFailure(t *testing.T) {
	c := New(conversation.New(nil), SenderFunc(func(context.Context, string) (*backend.Reply, error) {
		return nil, nil
	}))
	c.Send(context.Background(), "explain")
	waitIdle(t, c)
	if got := c.Snapshot().LastTurn().Content; got != ApologyText {
		t.Fatalf("last turn = %q, want apology", got)
	}
}

func TestCallerCancellationDoesNotAbortRequest(t *testing.T) {
	var sawCancel atomic.Bool
	c := New(conversation.New(nil), SenderFunc(func(ctx context.Context, _ string) (*backend.Reply, error) {
		time.Sleep(20 * time.Millisecond)
		sawCancel.Store(ctx.Err() != nil)
		return &backend.Reply{Explanation: "done"}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	c.Send(ctx, "explain")
	cancel()
	waitIdle(t, c)

	if sawCancel.Load() {
		t.Fatalf("request context was cancelled by the caller")
	}
	if got := c.Snapshot().LastTurn().Content; got != "done" {
		t.Fatalf("last turn = %q, want done", got)
	}
}

func TestPromptIsTrimmedButTurnKeepsRawText(t *testing.T) {
	sender := newScriptedSender(derivatives)
	c := New(conversation.New(nil), sender)
	c.Send(context.Background(), "  explain derivatives\n")
	waitIdle(t, c)

	if sender.calls[0] != "explain derivatives" {
		t.Fatalf("prompt = %q", sender.calls[0])
	}
	if got := c.Snapshot().Turns[1].Content; got != "  explain derivatives\n" {
		t.Fatalf("user turn content = %q", got)
	}
}

func TestBusEventsAreOrderedSnapshots(t *testing.T) {
	b := bus.New(64)
	defer b.Close()

	var mu sync.Mutex
	var states []State
	b.Subscribe(bus.EventStateChanged, func(_ context.Context, e *bus.Event) {
		var s State
		if err := e.ParseData(&s); err != nil {
			t.Errorf("ParseData() error = %v", err)
			return
		}
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(conversation.New(nil), newScriptedSender(derivatives), WithBus(b), WithClock(func() time.Time { return fixed }))
	c.SetInput("explain derivatives")
	c.Submit(context.Background())
	waitIdle(t, c)

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(states)
		mu.Unlock()
		if n >= 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 3 {
		t.Fatalf("got %d events, want 3 (input, submit, resolve)", len(states))
	}
	if states[0].Input != "explain derivatives" || states[0].Busy {
		t.Fatalf("input event = %+v", states[0])
	}
	if !states[1].Busy || len(states[1].Turns) != 2 || states[1].Input != "" {
		t.Fatalf("submit event = %+v", states[1])
	}
	if states[2].Busy || len(states[2].Turns) != 3 || states[2].Artifact == nil {
		t.Fatalf("resolve event = %+v", states[2])
	}
	if !states[2].Turns[2].CreatedAt.Equal(fixed) {
		t.Fatalf("reply timestamp = %v, want %v", states[2].Turns[2].CreatedAt, fixed)
	}
	for i := 1; i < len(states); i++ {
		if states[i].Version <= states[i-1].Version {
			t.Fatalf("versions not increasing: %d then %d", states[i-1].Version, states[i].Version)
		}
	}
}
