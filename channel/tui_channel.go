package channel

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linanwx/hypermath/bus"
	"github.com/linanwx/hypermath/channel/tui"
	"github.com/linanwx/hypermath/controller"
	"github.com/linanwx/hypermath/logger"
)

// TUIChannel implements the interactive front-end using a bubbletea TUI.
type TUIChannel struct {
	ctrl     *controller.Controller
	bus      *bus.Bus
	app      *tui.App
	program  *tea.Program
	subID    string
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	doneOnce sync.Once
}

// NewTUIChannel creates a TUI front-end. State changes arrive over b.
func NewTUIChannel(ctrl *controller.Controller, b *bus.Bus) *TUIChannel {
	return &TUIChannel{
		ctrl: ctrl,
		bus:  b,
		done: make(chan struct{}),
	}
}

func (c *TUIChannel) Name() string { return "cli" }

// Done is closed when the TUI exits.
func (c *TUIChannel) Done() <-chan struct{} { return c.done }

func (c *TUIChannel) Start(ctx context.Context) error {
	c.app = tui.NewApp()
	c.program = tea.NewProgram(c.app, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Redirect logger output to the TUI log panel.
	lw := &logWriter{program: c.program}
	logger.Intercept(lw)

	if c.bus != nil {
		c.subID = c.bus.Subscribe(bus.EventStateChanged, func(_ context.Context, e *bus.Event) {
			var st controller.State
			if err := e.ParseData(&st); err != nil {
				logger.Warn("tui state decode failed", "err", err)
				return
			}
			c.program.Send(tui.StateMsg{State: st})
		})
	}

	// Run bubbletea in a goroutine.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.program.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		}
		c.finish()
	}()

	// Seed the first frame; Send blocks until the program loop is running.
	go c.program.Send(tui.StateMsg{State: c.ctrl.Snapshot()})

	// Read user input from the App and hand it to the controller.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case text, ok := <-c.app.InputCh:
				if !ok {
					return
				}
				if isQuit(strings.TrimSpace(text)) {
					c.program.Quit()
					return
				}
				if !c.ctrl.Send(ctx, text) {
					c.program.Send(tui.InputRejectedMsg{Text: text})
				}
			}
		}
	}()

	logger.Info("cli channel started (TUI mode)")
	return nil
}

func (c *TUIChannel) Stop() error {
	c.stopOnce.Do(func() {
		if c.subID != "" {
			c.bus.Unsubscribe(c.subID)
		}
		if c.program != nil {
			c.program.Quit()
		}
		c.finish()
		c.wg.Wait()
		logger.Restore()
		logger.Info("cli channel stopped")
	})
	return nil
}

func (c *TUIChannel) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

// logWriter implements io.Writer and sends each write as a LogLineMsg to the TUI.
type logWriter struct {
	program *tea.Program
}

func (w *logWriter) Write(p []byte) (int, error) {
	// Split on newlines in case a single write contains multiple lines.
	lines := bytes.Split(p, []byte("\n"))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		w.program.Send(tui.LogLineMsg{Line: string(line)})
	}
	return len(p), nil
}
