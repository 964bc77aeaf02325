package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/djx/internal/server"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin authorizes the playback session. With auth_mode = "selector" the
// token comes from the selector's /token endpoint; with "oauth" an
// interactive browser flow runs against the provider's OAuth endpoints.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	if err := r.connectBridge(ctx); err != nil {
		return err
	}

	r.writePlain("✓ Playback session authorized\n")
	r.writePlain("Provider: %s (auth_mode: %s)\n", r.config.Provider.BaseURL, authModeName(r.config))
	return nil
}

// AuthStatus checks whether the playback session is live via the cheap
// validation ping.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)
	r.logger.Info("checking session status")

	if err := r.installToken(ctx); err != nil {
		return err
	}

	if err := r.bridge.Validate(ctx); err != nil {
		r.writePlain("✗ Session is not live: %v\n", err)
		r.writePlain("Run 'djx auth login' to authorize.\n")
		return nil
	}

	r.writePlain("✓ Session is live\n")
	return nil
}

func authModeName(config *shared.Config) string {
	if config.Provider.AuthMode == "" {
		return "selector"
	}
	return config.Provider.AuthMode
}

// oauthConfig builds the OAuth2 client config from the [provider] section.
func (r *Runner) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     r.config.Provider.ClientID,
		ClientSecret: r.config.Provider.ClientSecret,
		RedirectURL:  r.config.Provider.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  r.config.Provider.AuthURL,
			TokenURL: r.config.Provider.TokenURL,
		},
	}
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context) (*oauth2.Token, error) {
	if r.config.Provider.ClientID == "" || r.config.Provider.ClientSecret == "" {
		return nil, fmt.Errorf("%w: provider client_id and client_secret must be set for auth_mode = \"oauth\"", shared.ErrMissingConfig)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthConfig := r.oauthConfig()
	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)

	oauthHandler := server.NewOAuthHandler(oauthConfig, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	redirect, err := url.Parse(r.config.Provider.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: bad redirect_uri: %v", shared.ErrInvalidConfig, err)
	}

	httpServer := &http.Server{
		Addr:    redirect.Host,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", redirect.Host)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for provider authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}
