// Command geoquery resolves IP addresses to geographic and ISP
// information using local databases and free web APIs.
package main

import (
	"os"

	"github.com/apex/log"
	"github.com/ooni/geoquery/internal/config"
	"github.com/ooni/geoquery/internal/engine"
	"github.com/ooni/geoquery/internal/logx"
	"github.com/spf13/cobra"
)

// Options contains the options you can set from the CLI.
type Options struct {
	CacheSize     int
	ConfigPath    string
	SpeedPriority bool
	UserAgent     string
	Verbose       bool
}

// newRootCommand creates the root command and its subcommands.
func newRootCommand() *cobra.Command {
	globalOptions := &Options{}
	rootCmd := &cobra.Command{
		Use:   "geoquery",
		Short: "Resolves IP addresses to geographic and ISP information",
		Args:  cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if globalOptions.Verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
		SilenceUsage: true,
	}
	flags := rootCmd.PersistentFlags()

	flags.IntVar(
		&globalOptions.CacheSize,
		"cache-size",
		0,
		"override the maximum number of cached results (negative means unbounded)",
	)

	flags.StringVarP(
		&globalOptions.ConfigPath,
		"config",
		"c",
		"",
		"read the configuration from the given JSON or YAML file (default: free web APIs only)",
	)

	flags.BoolVar(
		&globalOptions.SpeedPriority,
		"speed-priority",
		false,
		"flatten the default web API weights to spread requests more evenly",
	)

	flags.StringVar(
		&globalOptions.UserAgent,
		"user-agent",
		"",
		"override the User-Agent used with web APIs",
	)

	flags.BoolVarP(
		&globalOptions.Verbose,
		"verbose",
		"v",
		false,
		"enable verbose logging",
	)

	rootCmd.AddCommand(newLookupCommand(globalOptions))
	rootCmd.AddCommand(newBenchCommand(globalOptions))
	rootCmd.AddCommand(newServeCommand(globalOptions))
	rootCmd.AddCommand(newSourcesCommand(globalOptions))
	rootCmd.AddCommand(newConfigCommand(globalOptions))
	return rootCmd
}

// loadConfig loads the configuration honoring the command line overrides.
func loadConfig(options *Options) (*config.Config, error) {
	c := config.Default(options.SpeedPriority)
	if options.ConfigPath != "" {
		var err error
		if c, err = config.Load(options.ConfigPath); err != nil {
			return nil, err
		}
	}
	if options.CacheSize != 0 {
		c.Cache.MaxEntries = options.CacheSize
	}
	return c, nil
}

// newEngine loads the configuration and creates the engine.
func newEngine(options *Options) (*engine.Engine, error) {
	c, err := loadConfig(options)
	if err != nil {
		return nil, err
	}
	return c.NewEngine(&config.Options{
		Logger:    log.Log,
		UserAgent: options.UserAgent,
	})
}

func main() {
	log.Log = &log.Logger{Level: log.InfoLevel, Handler: logx.NewHandlerWithDefaultSettings()}
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Error("geoquery failed")
		os.Exit(1)
	}
}
