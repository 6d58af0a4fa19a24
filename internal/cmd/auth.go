package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strlkr/lastfm-rp/internal/config"
	"github.com/strlkr/lastfm-rp/internal/lastfm"
	"github.com/strlkr/lastfm-rp/internal/log"
	"github.com/strlkr/lastfm-rp/internal/state"
)

const authTimeout = 3 * time.Minute

func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Link a Last.fm account",
		Long: `Auth runs the Last.fm desktop authorization flow: it opens the
authorization page in your browser and stores the resulting session,
so the daemon can discover the account to watch on its own.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runAuth()
		},
	}

	authCmd.AddCommand(&cobra.Command{
		Use:   "unlink",
		Short: "Forget the linked Last.fm account",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runUnlink()
		},
	})

	return authCmd
}

func runAuth() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.HasLastfmAuth() {
		return fmt.Errorf("lastfm.api_key and lastfm.api_secret must be set to link an account")
	}

	logger := log.GetLogger()
	client := lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)

	token, err := client.GetToken()
	if err != nil {
		return err
	}

	authServer, err := lastfm.StartAuthServer()
	if err != nil {
		return err
	}
	defer authServer.Shutdown()

	authURL := client.GetAuthURL(token)
	fmt.Printf("Opening Last.fm authorization page...\n\n  %s\n\n", authURL)
	if err := lastfm.OpenBrowser(authURL); err != nil {
		logger.Debug("could not open browser", "error", err)
		fmt.Println("Open the URL above in your browser to authorize.")
	}
	fmt.Println("Waiting for authorization...")

	select {
	case <-authServer.TokenChan():
		// Last.fm redirects with the same token we already hold; the
		// callback just signals that the user has authorized it.
	case <-time.After(authTimeout):
		return fmt.Errorf("timed out waiting for authorization")
	}

	username, sessionKey, err := client.GetSession(token)
	if err != nil {
		return err
	}

	stateMgr, err := state.Open()
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer stateMgr.Close()

	if err := stateMgr.SaveLastfmSession(username, sessionKey); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	fmt.Printf("Linked Last.fm account %q.\n", username)
	return nil
}

func runUnlink() error {
	stateMgr, err := state.Open()
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer stateMgr.Close()

	session, err := stateMgr.GetLastfmSession()
	if err != nil {
		return err
	}
	if session == nil {
		fmt.Println("No Last.fm account is linked.")
		return nil
	}

	if err := stateMgr.DeleteLastfmSession(); err != nil {
		return err
	}

	fmt.Printf("Unlinked Last.fm account %q.\n", session.Username)
	return nil
}
