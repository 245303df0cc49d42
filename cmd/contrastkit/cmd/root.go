// Package cmd holds the contrastkit command tree.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contrastkit/contrastkit/config"
	"github.com/contrastkit/contrastkit/log"
)

// AppName is the binary name.
const AppName = "contrastkit"

var (
	cfgFile   string
	appConfig *config.Config
	appLogger log.Logger
)

// NewRootCommand builds the command tree. Each call returns a fresh tree so
// tests can execute commands in isolation.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           AppName,
		Short:         "ContrastKit accessibility widget backend",
		Long:          `Serves the accessibility widget API for Webflow sites and manages session tokens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			appConfig = cfg

			level, ok := log.ParseLevel(cfg.LogLevel)
			appLogger = log.NewZerologAdapter(level, cfg.LogPretty)
			if !ok {
				appLogger.Warn(cmd.Context(), "Invalid log_level, defaulting to info", log.Fields{"log_level": cfg.LogLevel})
			}

			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is ./config.yaml or $HOME/.%s/config.yaml)", AppName))

	root.AddCommand(newServeCommand(), newTokenCommand())

	return root
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		if appLogger != nil {
			appLogger.Error(context.Background(), "Command failed", err)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}

		return err
	}

	return nil
}
