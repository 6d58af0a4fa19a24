package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/strlkr/lastfm-rp/internal/config"
	"github.com/strlkr/lastfm-rp/internal/log"
	"github.com/strlkr/lastfm-rp/internal/systemd"
)

func newServiceCmd() *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the systemd user service",
	}

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install, enable and start the user service",
		Long: `Install writes a systemd user unit that runs this binary, enables it
and starts it. The unit points at the binary you invoke the command
with, so run it from the installed location.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			execPath, err := currentExecutable()
			if err != nil {
				return err
			}

			cfgPath, err := config.EnsureConfigFile()
			if err != nil {
				return fmt.Errorf("creating config file: %w", err)
			}

			mgr := systemd.NewManager(log.GetLogger())
			if err := mgr.Install(cmd.Context(), execPath); err != nil {
				return err
			}

			fmt.Printf("Installed and started %s.\n", systemd.UnitName)
			fmt.Printf("Config: %s\n", cfgPath)
			return nil
		},
	})

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Stop, disable and remove the user service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr := systemd.NewManager(log.GetLogger())
			if err := mgr.Uninstall(cmd.Context()); err != nil {
				return err
			}

			fmt.Printf("Uninstalled %s.\n", systemd.UnitName)
			return nil
		},
	})

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "restart",
		Short: "Restart the user service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr := systemd.NewManager(log.GetLogger())
			return mgr.Restart(cmd.Context())
		},
	})

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the user service status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr := systemd.NewManager(log.GetLogger())
			st, err := mgr.Status(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println(st)
			return nil
		},
	})

	return serviceCmd
}

// currentExecutable resolves the running binary to an absolute path with
// symlinks expanded, so the unit file survives PATH changes.
func currentExecutable() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolving executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return execPath, nil
}
