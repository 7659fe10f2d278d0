package main

//
// Sources and config subcommands
//

import (
	"fmt"

	"github.com/apex/log"
	"github.com/ooni/geoquery/internal/engine"
	"github.com/spf13/cobra"
)

func newSourcesCommand(globalOptions *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Lists the configured backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(globalOptions)
			if err != nil {
				return err
			}
			defer eng.Close()
			sourcesMain(eng)
			return nil
		},
	}
}

func sourcesMain(eng *engine.Engine) {
	for _, source := range eng.Sources() {
		log.WithFields(log.Fields{
			"type":         "table",
			"kind":         source.Kind().String(),
			"weight":       source.Weight(),
			"available":    source.IsAvailable(),
			"success_rate": fmt.Sprintf("%.2f", source.SuccessRate()),
			"executions":   source.ExecutionCount(),
		}).Info(source.Name())
	}
}

func newConfigCommand(globalOptions *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Prints the effective configuration as JSON without tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(globalOptions)
			if err != nil {
				return err
			}
			data, err := c.Redacted().Marshal()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
