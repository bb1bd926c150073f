package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/linanwx/hypermath/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize hypermath configuration",
	Long:  `Create the hypermath configuration directory and default config file.`,
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

// explainerKeyURLs maps explainer kinds to their API key portal URLs.
var explainerKeyURLs = map[string]string{
	"openai":    "https://platform.openai.com/api-keys",
	"anthropic": "https://console.anthropic.com",
}

// onboardAnswers holds the wizard results.
type onboardAnswers struct {
	Explainer  string
	Model      string
	APIKey     string
	BackendURL string
}

func runOnboard(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config already exists at:", configPath)
		fmt.Println("To reconfigure, edit the file directly or delete it first.")
		return nil
	}

	defaults := config.DefaultConfig()
	answers := onboardAnswers{
		Explainer:  defaults.Server.Explainer,
		BackendURL: defaults.Backend.URL,
	}

	// Step 1: explanation service
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose how the bundled backend explains").
				Description("demo needs no credentials and answers two topics.").
				Options(
					huh.NewOption("demo (canned answers) [Recommended]", "demo"),
					huh.NewOption("openai (any OpenAI-compatible endpoint)", "openai"),
					huh.NewOption("anthropic (Claude)", "anthropic"),
				).
				Value(&answers.Explainer),
			huh.NewInput().
				Title("Backend URL").
				Description("Where front-ends send questions. Keep the default to use 'hypermath backend'.").
				Validate(validateBackendURL).
				Value(&answers.BackendURL),
		),
	).Run()
	if err != nil {
		return err
	}

	// Step 2: credentials, skipped for demo
	if answers.Explainer != "demo" {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Enter your "+answers.Explainer+" API key").
					Description("Create one at "+explainerKeyURLs[answers.Explainer]+". Leave empty to read it from the environment.").
					EchoMode(huh.EchoModePassword).
					Value(&answers.APIKey),
				huh.NewInput().
					Title("Model").
					Description("Leave empty for the default model.").
					Value(&answers.Model),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	cfg := applyOnboard(defaults, answers)

	configDir, _ := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("hypermath initialized successfully!")
	fmt.Println()
	fmt.Println("  Config:", configPath)
	fmt.Println("  Backend:", cfg.Backend.URL)
	fmt.Println("  Explainer:", cfg.Server.Explainer)
	if cfg.Server.Model != "" {
		fmt.Println("  Model:", cfg.Server.Model)
	}
	fmt.Println()
	fmt.Println("Run 'hypermath backend' in one terminal and 'hypermath chat' in another.")
	return nil
}

func applyOnboard(cfg *config.Config, a onboardAnswers) *config.Config {
	cfg.Server.Explainer = a.Explainer
	cfg.Server.Model = strings.TrimSpace(a.Model)
	cfg.Server.APIKey = strings.TrimSpace(a.APIKey)
	if v := strings.TrimSpace(a.BackendURL); v != "" {
		cfg.Backend.URL = strings.TrimRight(v, "/")
	}
	return cfg
}

func validateBackendURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("enter an absolute URL such as http://localhost:5000")
	}
	return nil
}
