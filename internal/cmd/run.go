package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/strlkr/lastfm-rp/internal/config"
	"github.com/strlkr/lastfm-rp/internal/discord"
	"github.com/strlkr/lastfm-rp/internal/lastfm"
	"github.com/strlkr/lastfm-rp/internal/log"
	"github.com/strlkr/lastfm-rp/internal/notify"
	"github.com/strlkr/lastfm-rp/internal/presence"
	"github.com/strlkr/lastfm-rp/internal/state"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the presence daemon in the foreground",
		Long: `Run polls the Last.fm account and keeps the Discord rich presence in
sync until interrupted. This is also the entry point the systemd user
unit uses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd)
		},
	}
}

func runDaemon(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Verbose && !verbose {
		log.Init(true)
	}
	logger := log.GetLogger()

	if cfg.Lastfm.APIKey == "" {
		return fmt.Errorf("lastfm.api_key is not set")
	}
	if cfg.Discord.ClientID == "" {
		return fmt.Errorf("discord.client_id is not set")
	}

	stateMgr, err := state.Open()
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer stateMgr.Close()

	username, err := resolveUsername(cfg, stateMgr)
	if err != nil {
		return err
	}
	logger.Info("watching account", "username", username)

	notifier, err := notify.New()
	if err != nil {
		logger.Warn("notifications unavailable", "error", err)
	}

	presenceCfg := cfg.GetPresenceConfig()
	discordCfg := cfg.GetDiscordConfig()

	svc := presence.New(presence.Config{
		Poller:   lastfm.NewPoller(cfg.Lastfm.APIKey, username),
		Presence: discord.NewClient(discordCfg.ClientID),
		Store:    stateMgr,
		Notifier: notifier,
		Logger:   logger,
		Options: presence.Options{
			PollInterval:    presenceCfg.PollInterval,
			RefreshInterval: presenceCfg.RefreshInterval,
			SmallImage:      discordCfg.SmallImage,
			SmallText:       discordCfg.SmallText,
			Buttons:         *presenceCfg.Buttons,
			Notifications:   cfg.Notifications.Enabled,
		},
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("sd_notify ready failed", "error", err)
	} else if sent {
		logger.Debug("notified systemd of readiness")
	}
	defer func() {
		if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
			logger.Debug("sd_notify stopping failed", "error", err)
		}
	}()

	return svc.Run(ctx)
}

// resolveUsername picks the account to watch: an explicit config value wins,
// otherwise the account linked with "lastfm-rp auth".
func resolveUsername(cfg *config.Config, stateMgr *state.Manager) (string, error) {
	if cfg.Lastfm.Username != "" {
		return cfg.Lastfm.Username, nil
	}

	session, err := stateMgr.GetLastfmSession()
	if err != nil {
		return "", fmt.Errorf("reading stored session: %w", err)
	}
	if session != nil && session.Username != "" {
		return session.Username, nil
	}

	return "", fmt.Errorf("no Last.fm account: set lastfm.username or run \"lastfm-rp auth\"")
}
