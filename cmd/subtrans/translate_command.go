package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"subtrans/internal/cache"
	"subtrans/internal/config"
	"subtrans/internal/llm"
	"subtrans/internal/subtitle"
	"subtrans/internal/translator"
	"subtrans/pkg/log"
)

func newTranslateCommand(configFlag *string) *cobra.Command {
	var (
		inputPath       string
		outputPath      string
		includeOriginal bool
		apiKey          string
		sourceLanguage  string
		targetLanguage  string
		requireKey      bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a subtitle file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(*configFlag)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg.ApplyEnv()

			flags := cmd.Flags()
			if flags.Changed("api-key") {
				cfg.APIKey = apiKey
			}
			if flags.Changed("source-language") {
				cfg.SourceLanguage = sourceLanguage
			}
			if flags.Changed("target-language") {
				cfg.TargetLanguage = targetLanguage
			}
			cfg.NormalizeLanguages()
			if err := cfg.Validate(); err != nil {
				return err
			}

			if requireKey && cfg.APIKey == "" {
				return fmt.Errorf("no API key configured: %w", llm.ErrAuth)
			}

			doc, err := subtitle.ReadFile(inputPath)
			if err != nil {
				return err
			}

			client, err := llm.NewClient(llm.Config{
				APIURL:    cfg.APIURL,
				APIKey:    cfg.APIKey,
				Model:     cfg.SelectedModel,
				UserAgent: cfg.UserAgent,
				Retry:     llm.PresetFor(cfg.RetryMode),
			})
			if err != nil {
				return err
			}

			cachePath, err := cache.DefaultPath()
			if err != nil {
				log.Warn("cache path unavailable, continuing without cache: %v", err)
				cachePath = ""
			}
			store := cache.Open(cachePath, cfg.CacheMode)
			defer store.Close()

			report, err := translator.New(cfg, client, store).Run(cmd.Context(), doc)
			if err != nil {
				return err
			}

			opts := subtitle.WriteOptions{IncludeOriginal: includeOriginal}
			if err := subtitle.WriteFile(outputPath, doc, opts); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Translated %d cues (%d cached, %d live, %d passthrough) to %s\n",
				report.CuesTotal, report.FromCache, report.Live, report.Passthrough(), outputPath)
			for _, note := range report.Notes {
				fmt.Fprintf(out, "  note: %s\n", note)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input subtitle file (SRT)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output subtitle file")
	cmd.Flags().BoolVar(&includeOriginal, "include-original", false, "Keep original text below the translation")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key override for this run")
	cmd.Flags().StringVar(&sourceLanguage, "source-language", "", "Source language code, empty for auto-detect")
	cmd.Flags().StringVar(&targetLanguage, "target-language", "", "Target language code")
	cmd.Flags().BoolVar(&requireKey, "require-key", false, "Fail when no API key is resolvable")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
