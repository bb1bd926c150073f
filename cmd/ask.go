package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linanwx/hypermath/controller"
	"github.com/linanwx/hypermath/termmd"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask one question and print the answer",
	Long: `Submit one question and print the reply.

Examples:
  hypermath ask -m "explain the pythagorean theorem"
  hypermath ask -m "quadratic equations" --json
  hypermath ask -m "quadratic equations" --code`,
	RunE: runAsk,
}

var (
	askMessage string
	askJSON    bool
	askCode    bool
)

// errReplyFailed marks an answer that came back as the apology turn.
var errReplyFailed = errors.New("the explanation service did not answer; see the log for details")

func init() {
	askCmd.Flags().StringVarP(&askMessage, "message", "m", "", "Question to ask (required)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the reply as JSON")
	askCmd.Flags().BoolVar(&askCode, "code", false, "Include the Manim code listing")
	_ = askCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(askCmd)
}

type askOutput struct {
	OK          bool   `json:"ok"`
	Explanation string `json:"explanation"`
	VideoURL    string `json:"video_url,omitempty"`
	ManimCode   string `json:"manim_code,omitempty"`
}

func runAsk(_ *cobra.Command, _ []string) error {
	sess, err := newSession(appCfg)
	if err != nil {
		return err
	}
	defer sess.bus.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return ask(ctx, sess.ctrl, askMessage, os.Stdout, askJSON, askCode)
}

func ask(ctx context.Context, ctrl *controller.Controller, prompt string, out io.Writer, asJSON, withCode bool) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("--message must not be blank")
	}
	if !ctrl.Send(ctx, prompt) {
		return fmt.Errorf("submission rejected")
	}
	if err := ctrl.WaitIdle(ctx); err != nil {
		return fmt.Errorf("waiting for reply: %w", err)
	}

	turn := ctrl.Snapshot().LastTurn()
	result := askOutput{OK: !turn.Failed, Explanation: turn.Content}
	if turn.HasArtifact() {
		result.VideoURL = turn.Artifact.VideoRef
		result.ManimCode = turn.Artifact.CodeText
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode reply: %w", err)
		}
	} else {
		theme := termmd.PlainTheme()
		if isTerminal(out) {
			theme = termmd.DefaultTheme()
		}
		fmt.Fprintln(out, termmd.RenderWith(theme, result.Explanation, 0))
		if result.VideoURL != "" {
			fmt.Fprintf(out, "\nvideo: %s\n", result.VideoURL)
		}
		if withCode && result.ManimCode != "" {
			fmt.Fprintln(out)
			fmt.Fprintln(out, termmd.CodeWith(theme, result.ManimCode))
		}
	}

	if !result.OK {
		return errReplyFailed
	}
	return nil
}
