// Package channel provides the front-ends that present the conversation.
// Every front-end drives the same controller and renders only from its
// state snapshots.
package channel

import (
	"context"
	"errors"
	"sort"

	"github.com/linanwx/hypermath/logger"
)

// Channel is the interface for front-ends.
type Channel interface {
	// Name returns the channel name (e.g., "cli", "web").
	Name() string

	// Start begins serving the user. It must not block.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop() error
}

// Interactive is a channel the user can leave, e.g. by typing /quit.
type Interactive interface {
	Channel

	// Done is closed once the user has left.
	Done() <-chan struct{}
}

// Manager manages multiple channels as a pure registry.
type Manager struct {
	channels map[string]Channel
	started  []Channel
}

// NewManager creates a new channel manager.
func NewManager() *Manager {
	return &Manager{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the manager and logs it. Nil is silently ignored.
func (m *Manager) Register(ch Channel) {
	if ch == nil {
		return
	}
	m.channels[ch.Name()] = ch
	logger.Info("channel registered", "channel", ch.Name())
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// StartAll starts all registered channels. The web channel goes first so the
// page is reachable before an interactive channel takes the terminal. On
// failure, channels already started are stopped again.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, name := range m.startOrder() {
		ch := m.channels[name]
		if err := ch.Start(ctx); err != nil {
			_ = m.StopAll()
			return err
		}
		m.started = append(m.started, ch)
	}
	return nil
}

// StopAll stops started channels in reverse order.
func (m *Manager) StopAll() error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		if err := m.started[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	m.started = nil
	return errors.Join(errs...)
}

// Each iterates over all registered channels.
func (m *Manager) Each(fn func(Channel)) {
	for _, name := range m.startOrder() {
		fn(m.channels[name])
	}
}

func (m *Manager) startOrder() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		wi, wj := names[i] == "web", names[j] == "web"
		if wi != wj {
			return wi
		}
		return names[i] < names[j]
	})
	return names
}

// isQuit reports whether text is an exit command.
func isQuit(text string) bool {
	switch text {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}
