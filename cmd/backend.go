package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linanwx/hypermath/apiserver"
	"github.com/linanwx/hypermath/config"
	"github.com/linanwx/hypermath/explainer"
	"github.com/linanwx/hypermath/logger"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Run the bundled explanation service",
	Long: `Run the bundled explanation service that implements POST /api/chat.

Explainers:
  demo       canned answers, no credentials (default)
  openai     any OpenAI-compatible endpoint (OPENAI_API_KEY)
  anthropic  Anthropic Messages API (ANTHROPIC_API_KEY)

Examples:
  hypermath backend
  hypermath backend --explainer openai --addr 0.0.0.0:5000`,
	RunE: runBackend,
}

var (
	backendAddr      string
	backendExplainer string
	backendStaticDir string
)

func init() {
	backendCmd.Flags().StringVar(&backendAddr, "addr", "", "Listen address (default from config, 127.0.0.1:5000)")
	backendCmd.Flags().StringVar(&backendExplainer, "explainer", "", "Explainer: demo, openai or anthropic (default from config)")
	backendCmd.Flags().StringVar(&backendStaticDir, "static-dir", "", "Directory for rendered videos (default <config-dir>/static)")
	rootCmd.AddCommand(backendCmd)
}

func runBackend(_ *cobra.Command, _ []string) error {
	srvCfg := appCfg.Server
	if v := strings.TrimSpace(backendAddr); v != "" {
		srvCfg.Addr = v
	}
	if v := strings.TrimSpace(backendExplainer); v != "" && v != srvCfg.Explainer {
		srvCfg.Explainer = v
		// The configured key belongs to the configured explainer.
		srvCfg.APIKey = ""
	}
	if v := strings.TrimSpace(backendStaticDir); v != "" {
		srvCfg.StaticDir = v
	}
	if srvCfg.APIKey == "" {
		srvCfg.APIKey = config.APIKeyFromEnv(srvCfg.Explainer)
	}

	cfg := *appCfg
	cfg.Server = srvCfg
	staticDir, err := cfg.StaticPath()
	if err != nil {
		return err
	}

	exp, err := explainer.New(explainer.Options{
		Kind:            srvCfg.Explainer,
		Model:           srvCfg.Model,
		APIKey:          srvCfg.APIKey,
		APIBase:         srvCfg.APIBase,
		MaxTokens:       srvCfg.MaxTokens,
		MaxPromptTokens: srvCfg.MaxPromptTokens,
	})
	if err != nil {
		return err
	}

	renderer, err := apiserver.NewRenderer(apiserver.RenderOptions{
		Kind:    srvCfg.Renderer,
		Command: srvCfg.RenderCommand,
		Args:    srvCfg.RenderArgs,
		Quality: srvCfg.RenderQuality,
	})
	if err != nil {
		return err
	}

	srv, err := apiserver.New(apiserver.Options{
		Addr:      srvCfg.Addr,
		StaticDir: staticDir,
		Explainer: exp,
		Renderer:  renderer,

		Retention:     srvCfg.Retention,
		SweepSchedule: srvCfg.SweepSchedule,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("HyperMath backend (%s) at http://%s. Press Ctrl+C to stop.\n", exp.Name(), srvCfg.Addr)
	<-ctx.Done()

	if err := srv.Stop(); err != nil {
		logger.Error("error stopping backend", "err", err)
	}
	return nil
}
