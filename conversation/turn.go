// Package conversation holds the ordered, append-only turn history of a chat
// session and the queries derived from it.
package conversation

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// WelcomeText is the content of the synthetic first assistant turn.
const WelcomeText = "Hello! I'm HyperMath. Ask me to explain any mathematical concept, and I'll create a visual explanation to help you understand it better."

// Artifact is the visual output attached to an assistant turn.
type Artifact struct {
	VideoRef string `json:"video_ref"`           // playable video locator
	CodeText string `json:"code_text,omitempty"` // source listing that produced the video
}

// Turn is one message in the conversation.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Artifact  *Artifact `json:"artifact,omitempty"`
	Failed    bool      `json:"failed,omitempty"` // reply replaced by the apology
	CreatedAt time.Time `json:"created_at"`
}

// HasArtifact reports whether the turn carries a playable artifact.
func (t Turn) HasArtifact() bool {
	return t.Artifact != nil && strings.TrimSpace(t.Artifact.VideoRef) != ""
}

// IsUser reports whether the turn was authored by the user.
func (t Turn) IsUser() bool { return t.Role == RoleUser }

// IDSource hands out turn ids in creation order. The zero value is ready to use.
type IDSource struct {
	n atomic.Int64
}

// Next returns the next id. Ids are never reused.
func (s *IDSource) Next() string {
	return strconv.FormatInt(s.n.Add(1), 10)
}

// NewArtifact builds an artifact from a reply's optional fields.
// It returns nil when there is no video to show; code alone is not an artifact.
func NewArtifact(videoRef, codeText string) *Artifact {
	videoRef = strings.TrimSpace(videoRef)
	if videoRef == "" {
		return nil
	}
	return &Artifact{VideoRef: videoRef, CodeText: codeText}
}

func (a *Artifact) clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
