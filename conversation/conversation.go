package conversation

import (
	"sync"
	"time"
)

// Conversation is the ordered turn log. Turns are only ever appended.
type Conversation struct {
	mu    sync.RWMutex
	turns []Turn
	ids   *IDSource
}

// New creates a conversation seeded with the welcome turn.
func New(ids *IDSource) *Conversation {
	if ids == nil {
		ids = &IDSource{}
	}
	c := &Conversation{ids: ids}
	c.turns = append(c.turns, Turn{
		ID:        ids.Next(),
		Role:      RoleAssistant,
		Content:   WelcomeText,
		CreatedAt: time.Now(),
	})
	return c
}

// IDs returns the id source used by this conversation.
func (c *Conversation) IDs() *IDSource { return c.ids }

// Append adds turn to the end and returns the new snapshot.
// Id uniqueness is the caller's job; use IDs().Next().
func (c *Conversation) Append(turn Turn) []Turn {
	turn.Artifact = turn.Artifact.clone()

	c.mu.Lock()
	c.turns = append(c.turns, turn)
	out := cloneTurns(c.turns)
	c.mu.Unlock()
	return out
}

// Turns returns a snapshot of all turns in display order.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneTurns(c.turns)
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// LatestWithArtifact returns the newest turn that carries an artifact.
func (c *Conversation) LatestWithArtifact() (Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].HasArtifact() {
			t := c.turns[i]
			t.Artifact = t.Artifact.clone()
			return t, true
		}
	}
	return Turn{}, false
}

// Select returns the artifact of the newest turn in turns that has one.
func Select(turns []Turn) (Artifact, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].HasArtifact() {
			return *turns[i].Artifact, true
		}
	}
	return Artifact{}, false
}

func cloneTurns(in []Turn) []Turn {
	out := make([]Turn, len(in))
	for i, t := range in {
		t.Artifact = t.Artifact.clone()
		out[i] = t
	}
	return out
}
