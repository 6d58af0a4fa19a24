// Package cmd provides the command line interface for lastfm-rp.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/strlkr/lastfm-rp/internal/log"
)

var (
	configPath string
	verbose    bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lastfm-rp",
		Short: "Show your Last.fm now-playing track as a Discord rich presence",
		Long: `lastfm-rp watches a Last.fm account and mirrors the currently
scrobbling track into Discord as a "Listening to" rich presence.

Run it in the foreground with "lastfm-rp run", or install it as a
systemd user service with "lastfm-rp service install".`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			log.Init(verbose)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newServiceCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		log.GetLogger().Error("command failed", "error", err)
	}
	return err
}
