package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type modeReport struct {
	Mode        string `json:"mode"`
	Environment string `json:"environment"`
	BaseURL     string `json:"base_url"`
	WebhookURL  string `json:"webhook_url,omitempty"`
}

func modeCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Print the credential mode implied by the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), nil)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			report := modeReport{
				Mode:        cfg.Mode().String(),
				Environment: cfg.Provider.Environment,
				BaseURL:     cfg.ProviderBaseURL(),
				WebhookURL:  cfg.Provider.WebhookURL,
			}
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mode: %s\nenvironment: %s\nbase_url: %s\n", report.Mode, report.Environment, report.BaseURL)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}
