package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/linanwx/hypermath/channel"
	"github.com/linanwx/hypermath/logger"
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the browser chat front-end",
	Long: `Serve the browser front-end. All open tabs share one conversation.

Examples:
  hypermath web
  hypermath web --addr 0.0.0.0:8080`,
	RunE: runWeb,
}

var webAddr string

func init() {
	webCmd.Flags().StringVar(&webAddr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")
	rootCmd.AddCommand(webCmd)
}

func runWeb(_ *cobra.Command, _ []string) error {
	sess, err := newSession(appCfg)
	if err != nil {
		return err
	}

	addr := strings.TrimSpace(webAddr)
	if addr == "" {
		addr = appCfg.Web.Addr
	}

	ctx, cancel := signalContext()
	defer cancel()

	manager := channel.NewManager()
	manager.Register(channel.NewWebChannel(addr, sess.ctrl, sess.bus))
	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}

	fmt.Printf("HyperMath web UI at http://%s (backend %s). Press Ctrl+C to stop.\n", addr, sess.client.BaseURL())
	<-ctx.Done()

	if err := manager.StopAll(); err != nil {
		logger.Error("error stopping channels", "err", err)
	}
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer closeCancel()
	sess.Close(closeCtx)
	return nil
}
