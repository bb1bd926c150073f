// Package health builds process health snapshots for the /healthz endpoints.
package health

// StateSource exposes conversation statistics without importing the
// controller.
type StateSource interface {
	Stats() ConversationInfo
}

// StateFunc adapts a function to StateSource.
type StateFunc func() ConversationInfo

// Stats calls f.
func (f StateFunc) Stats() ConversationInfo { return f() }

// Options selects the optional sections of a snapshot.
type Options struct {
	Component string      // "web" or "backend"
	State     StateSource // conversation stats, front-ends only
	StaticDir string      // rendered video store, backend only
	MaxFiles  int         // cap on listed video files
}

func (o Options) normalize() Options {
	if o.MaxFiles <= 0 {
		o.MaxFiles = 20
	}
	return o
}

// Snapshot is the /healthz body.
type Snapshot struct {
	Status       string            `json:"status"`
	Component    string            `json:"component,omitempty"`
	Goroutines   int               `json:"goroutines"`
	Memory       MemoryInfo        `json:"memory"`
	Runtime      RuntimeInfo       `json:"runtime"`
	Conversation *ConversationInfo `json:"conversation,omitempty"`
	Static       *StaticInfo       `json:"static,omitempty"`
	Timestamp    string            `json:"timestamp"`
}

// MemoryInfo reports heap usage in megabytes.
type MemoryInfo struct {
	AllocMB      float64 `json:"allocMB"`
	TotalAllocMB float64 `json:"totalAllocMB"`
	SysMB        float64 `json:"sysMB"`
	NumGC        uint32  `json:"numGC"`
}

// RuntimeInfo describes the Go runtime.
type RuntimeInfo struct {
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	CPUs    int    `json:"cpus"`
}

// ConversationInfo summarizes the shared conversation.
type ConversationInfo struct {
	Turns       int    `json:"turns"`
	Busy        bool   `json:"busy"`
	Version     uint64 `json:"version"`
	HasArtifact bool   `json:"hasArtifact"`
}

// StaticInfo summarizes the rendered video store.
type StaticInfo struct {
	Path       string   `json:"path"`
	Exists     bool     `json:"exists"`
	Videos     int      `json:"videos"`
	TotalBytes int64    `json:"totalBytes"`
	Recent     []string `json:"recent,omitempty"`
	ReadError  string   `json:"readError,omitempty"`
}
