package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"subtrans/internal/config"
)

// newConfigureCommand updates the stored configuration additively:
// stored values are the base, the login string overlays them, and
// explicit flags win over both.
func newConfigureCommand(configFlag *string) *cobra.Command {
	var (
		loginString    string
		apiKey         string
		model          string
		apiURL         string
		delayMs        int
		retryMode      int
		contextBudget  int
		truncationMode string
		cacheMode      string
		sourceLanguage string
		targetLanguage string
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Update stored configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(*configFlag)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			if loginString != "" {
				cfg.UpdateFromLoginString(loginString)
			}

			flags := cmd.Flags()
			if flags.Changed("api-key") {
				cfg.APIKey = apiKey
			}
			if flags.Changed("model") {
				cfg.SelectedModel = model
			}
			if flags.Changed("api-url") {
				cfg.APIURL = apiURL
			}
			if flags.Changed("delay-ms") {
				cfg.DelayMs = delayMs
			}
			if flags.Changed("retry-mode") {
				cfg.RetryMode = retryMode
			}
			if flags.Changed("context-budget") {
				cfg.ContextBudget = contextBudget
			}
			if flags.Changed("truncation-mode") {
				cfg.TruncationMode = truncationMode
			}
			if flags.Changed("cache-mode") {
				cfg.CacheMode = cacheMode
			}
			if flags.Changed("source-language") {
				cfg.SourceLanguage = sourceLanguage
			}
			if flags.Changed("target-language") {
				cfg.TargetLanguage = targetLanguage
			}

			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&loginString, "login-string", "", "Pipe-separated settings string, first token is the model")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for the translation endpoint")
	cmd.Flags().StringVar(&model, "model", "", "Model identifier")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Chat completion endpoint URL")
	cmd.Flags().IntVar(&delayMs, "delay-ms", 0, "Delay between live requests in milliseconds")
	cmd.Flags().IntVar(&retryMode, "retry-mode", 0, "Retry aggressiveness (0 = no retries)")
	cmd.Flags().IntVar(&contextBudget, "context-budget", 0, "Token budget per request batch")
	cmd.Flags().StringVar(&truncationMode, "truncation-mode", "", "Oversized cue handling: sliding_window or reject")
	cmd.Flags().StringVar(&cacheMode, "cache-mode", "", "Translation cache mode: auto or off")
	cmd.Flags().StringVar(&sourceLanguage, "source-language", "", "Source language code, empty for auto-detect")
	cmd.Flags().StringVar(&targetLanguage, "target-language", "", "Target language code")

	return cmd
}
