package conversation

import (
	"sync"
	"testing"
)

func TestNewSeedsWelcomeTurn(t *testing.T) {
	c := New(nil)

	turns := c.Turns()
	if len(turns) != 1 {
		t.Fatalf("len(Turns()) = %d, want 1", len(turns))
	}
	w := turns[0]
	if w.Role != RoleAssistant || w.Content != WelcomeText || w.Artifact != nil {
		t.Fatalf("welcome turn = %+v", w)
	}
	if _, ok := Select(turns); ok {
		t.Fatalf("Select() on fresh conversation should find nothing")
	}
}

func TestAppendKeepsOlderSnapshotsIntact(t *testing.T) {
	c := New(nil)
	before := c.Turns()

	c.Append(Turn{ID: c.IDs().Next(), Role: RoleUser, Content: "explain derivatives"})
	after := c.Append(Turn{
		ID:       c.IDs().Next(),
		Role:     RoleAssistant,
		Content:  "Derivatives measure...",
		Artifact: &Artifact{VideoRef: "http://x/d.mp4", CodeText: "class Scene..."},
	})

	if len(before) != 1 {
		t.Fatalf("old snapshot changed length: %d", len(before))
	}
	if len(after) != 3 {
		t.Fatalf("len(after) = %d, want 3", len(after))
	}

	// Mutating a snapshot must not leak into the log.
	after[2].Artifact.VideoRef = "tampered"
	after[0].Content = "tampered"
	fresh := c.Turns()
	if fresh[2].Artifact.VideoRef != "http://x/d.mp4" || fresh[0].Content != WelcomeText {
		t.Fatalf("conversation mutated through snapshot: %+v", fresh)
	}
}

func TestIDsIncreaseAndNeverRepeat(t *testing.T) {
	var ids IDSource
	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := ids.Next()
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate id %s", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
	if len(seen) != 50 {
		t.Fatalf("got %d ids, want 50", len(seen))
	}

	c := New(&IDSource{})
	if first, second := c.Turns()[0].ID, c.IDs().Next(); first != "1" || second != "2" {
		t.Fatalf("ids = %q, %q; want 1, 2", first, second)
	}
}

func TestSelectPrefersNewestArtifact(t *testing.T) {
	tests := []struct {
		name  string
		turns []Turn
		want  string
		found bool
	}{
		{name: "empty", turns: nil},
		{
			name:  "single",
			turns: []Turn{{Role: RoleAssistant, Artifact: &Artifact{VideoRef: "a.mp4"}}},
			want:  "a.mp4",
			found: true,
		},
		{
			name: "newest wins",
			turns: []Turn{
				{Role: RoleAssistant, Artifact: &Artifact{VideoRef: "old.mp4"}},
				{Role: RoleUser},
				{Role: RoleAssistant, Artifact: &Artifact{VideoRef: "new.mp4"}},
			},
			want:  "new.mp4",
			found: true,
		},
		{
			name: "later turns without artifacts are skipped",
			turns: []Turn{
				{Role: RoleAssistant, Artifact: &Artifact{VideoRef: "d.mp4"}},
				{Role: RoleUser},
				{Role: RoleAssistant, Content: "Sorry"},
			},
			want:  "d.mp4",
			found: true,
		},
		{
			name:  "blank video ref is not an artifact",
			turns: []Turn{{Role: RoleAssistant, Artifact: &Artifact{VideoRef: "  ", CodeText: "x"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Select(tt.turns)
			if ok != tt.found || got.VideoRef != tt.want {
				t.Fatalf("Select() = %+v, %v; want %q, %v", got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestLatestWithArtifactMatchesSelect(t *testing.T) {
	c := New(nil)
	if _, ok := c.LatestWithArtifact(); ok {
		t.Fatalf("LatestWithArtifact() found artifact in fresh conversation")
	}
	c.Append(Turn{ID: c.IDs().Next(), Role: RoleAssistant, Artifact: NewArtifact("one.mp4", "")})
	c.Append(Turn{ID: c.IDs().Next(), Role: RoleAssistant, Artifact: NewArtifact("two.mp4", "code")})

	turn, ok := c.LatestWithArtifact()
	if !ok || turn.Artifact.VideoRef != "two.mp4" {
		t.Fatalf("LatestWithArtifact() = %+v, %v", turn, ok)
	}
	art, _ := Select(c.Turns())
	if art != *turn.Artifact {
		t.Fatalf("Select() = %+v, LatestWithArtifact() = %+v", art, *turn.Artifact)
	}
}

func TestNewArtifactRequiresVideo(t *testing.T) {
	if a := NewArtifact("", "class Scene..."); a != nil {
		t.Fatalf("NewArtifact without video = %+v, want nil", a)
	}
	a := NewArtifact(" http://x/d.mp4 ", "")
	if a == nil || a.VideoRef != "http://x/d.mp4" || a.CodeText != "" {
		t.Fatalf("NewArtifact() = %+v", a)
	}
}
