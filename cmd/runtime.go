package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/linanwx/hypermath/backend"
	"github.com/linanwx/hypermath/bus"
	"github.com/linanwx/hypermath/config"
	"github.com/linanwx/hypermath/controller"
	"github.com/linanwx/hypermath/conversation"
	"github.com/linanwx/hypermath/logger"
)

const busQueueSize = 64

// session wires one conversation to the configured backend.
type session struct {
	bus    *bus.Bus
	client *backend.Client
	ctrl   *controller.Controller
}

func newSession(cfg *config.Config) (*session, error) {
	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}
	b := bus.New(busQueueSize)
	ctrl := controller.New(conversation.New(nil), client, controller.WithBus(b))
	logger.Info("session ready", "backendUrl", client.BaseURL(), "timeout", cfg.Backend.Timeout.String())
	return &session{bus: b, client: client, ctrl: ctrl}, nil
}

// Close waits for an in-flight reply briefly, then stops the bus.
func (s *session) Close(ctx context.Context) {
	if err := s.ctrl.WaitIdle(ctx); err != nil {
		logger.Warn("closing with a request in flight", "err", err)
	}
	s.bus.Close()
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
