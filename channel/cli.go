package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/linanwx/hypermath/bus"
	"github.com/linanwx/hypermath/controller"
	"github.com/linanwx/hypermath/conversation"
	"github.com/linanwx/hypermath/logger"
	"github.com/linanwx/hypermath/termmd"
)

const (
	cliPrompt          = "hypermath> "
	cliStopWaitTimeout = 500 * time.Millisecond
)

// NewCLIChannel creates the interactive front-end.
// If stdin is a terminal, it returns a TUI-based channel; otherwise a plain scanner.
func NewCLIChannel(ctrl *controller.Controller, b *bus.Bus) Interactive {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return NewTUIChannel(ctrl, b)
	}
	return NewPlainCLIChannel(ctrl, os.Stdin, os.Stdout)
}

// PlainCLIChannel is a line-oriented front-end for non-TTY use. It reads one
// prompt per line and prints each reply once it settles.
type PlainCLIChannel struct {
	ctrl     *controller.Controller
	in       io.Reader
	out      io.Writer
	theme    termmd.Theme
	done     chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	doneOnce sync.Once
}

// NewPlainCLIChannel creates a plain front-end over in and out.
func NewPlainCLIChannel(ctrl *controller.Controller, in io.Reader, out io.Writer) *PlainCLIChannel {
	return &PlainCLIChannel{
		ctrl:  ctrl,
		in:    in,
		out:   out,
		theme: termmd.PlainTheme(),
		done:  make(chan struct{}),
		stop:  make(chan struct{}),
	}
}

func (c *PlainCLIChannel) Name() string { return "cli" }

// Done is closed when input ends or the user quits.
func (c *PlainCLIChannel) Done() <-chan struct{} { return c.done }

func (c *PlainCLIChannel) Start(ctx context.Context) error {
	logger.Info("cli channel started (plain mode)")

	for _, t := range c.ctrl.Snapshot().Turns {
		c.printTurn(t)
	}

	c.wg.Add(1)
	go c.readInput(ctx)
	return nil
}

func (c *PlainCLIChannel) Stop() error {
	c.stopOnce.Do(func() {
		close(c.stop)

		waitDone := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(waitDone)
		}()

		select {
		case <-waitDone:
		case <-time.After(cliStopWaitTimeout):
			logger.Warn("cli channel stop timed out waiting for input loop")
		}
		c.finish()
		logger.Info("cli channel stopped")
	})
	return nil
}

func (c *PlainCLIChannel) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *PlainCLIChannel) readInput(ctx context.Context) {
	defer c.wg.Done()
	defer c.finish()

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		default:
		}

		fmt.Fprint(c.out, cliPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return
		}

		text := scanner.Text()
		if isQuit(strings.TrimSpace(text)) {
			fmt.Fprintln(c.out, "Goodbye!")
			return
		}
		if !c.ctrl.Send(ctx, text) {
			continue
		}
		if err := c.ctrl.WaitIdle(ctx); err != nil {
			return
		}
		c.printTurn(c.ctrl.Snapshot().LastTurn())
	}
}

func (c *PlainCLIChannel) printTurn(t conversation.Turn) {
	if t.IsUser() {
		return
	}
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, termmd.RenderWith(c.theme, t.Content, 0))
	if t.HasArtifact() {
		fmt.Fprintln(c.out)
		fmt.Fprintf(c.out, "video: %s\n", t.Artifact.VideoRef)
		if t.Artifact.CodeText != "" {
			fmt.Fprintln(c.out, termmd.CodeWith(c.theme, t.Artifact.CodeText))
		}
	}
	fmt.Fprintln(c.out)
}
