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

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat in the terminal",
	Long: `Start an interactive chat. On a terminal this opens the full-screen TUI;
with piped input it reads one question per line.

Examples:
  hypermath chat
  hypermath chat --web                 # also serve the browser UI
  echo "explain limits" | hypermath chat`,
	RunE: runChat,
}

var (
	chatWeb     bool
	chatWebAddr string
)

func init() {
	chatCmd.Flags().BoolVar(&chatWeb, "web", false, "Also serve the browser front-end on the same conversation")
	chatCmd.Flags().StringVar(&chatWebAddr, "addr", "", "Web listen address (default from config)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(_ *cobra.Command, _ []string) error {
	sess, err := newSession(appCfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	manager := channel.NewManager()
	if chatWeb {
		addr := strings.TrimSpace(chatWebAddr)
		if addr == "" {
			addr = appCfg.Web.Addr
		}
		manager.Register(channel.NewWebChannel(addr, sess.ctrl, sess.bus))
		logger.Info("web channel enabled", "addr", addr)
	}
	cli := channel.NewCLIChannel(sess.ctrl, sess.bus)
	manager.Register(cli)

	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-cli.Done():
	}

	if err := manager.StopAll(); err != nil {
		logger.Error("error stopping channels", "err", err)
	}
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer closeCancel()
	sess.Close(closeCtx)
	return nil
}
