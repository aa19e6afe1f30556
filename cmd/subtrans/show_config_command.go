package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"subtrans/internal/config"
)

// newShowConfigCommand prints the effective stored configuration as
// key=value lines sorted by key. Scalar values print bare; structured
// values (the token limit table) print as compact JSON.
func newShowConfigCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show-config",
		Short: "Print the stored configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(*configFlag)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			encoded, err := json.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(encoded, &fields); err != nil {
				return fmt.Errorf("decode config: %w", err)
			}

			keys := make([]string, 0, len(fields))
			for key := range fields {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			out := cmd.OutOrStdout()
			for _, key := range keys {
				fmt.Fprintf(out, "%s=%s\n", key, renderValue(fields[key]))
			}
			return nil
		},
	}
}

func renderValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
