// Command inboxdomains-setup runs the Gmail consent flow once, stores the
// token and prints the refresh token.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"inboxdomains/internal/config"
	"inboxdomains/internal/gmail"
	"inboxdomains/internal/logging"
	"inboxdomains/internal/model"
	"inboxdomains/internal/token"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Provider != config.ProviderGmail {
		fmt.Fprintf(os.Stderr, "Setup only applies to the gmail provider (PROVIDER=%s)\n", cfg.Provider)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	store, err := token.Open(cfg.TokenBackend, cfg.TokenPath)
	if err != nil {
		logger.Error("Cannot open token store", "err", err)
		os.Exit(1)
	}
	authz := &gmail.Authorizer{
		Config:  gmail.NewOAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI),
		Timeout: cfg.AuthTimeout,
		Out:     os.Stdout,
		Logger:  logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, authz, store, os.Stdout)
	stop()
	if err != nil {
		logger.Error("Setup failed", "err", err)
		os.Exit(1)
	}
}

// run authorizes, saves the token to store and prints the refresh token.
func run(ctx context.Context, authz gmail.TokenAuthorizer, store token.Store, out io.Writer) error {
	fmt.Fprintln(out, "\nOpening browser for authorization...")
	tok, err := authz.Authorize(ctx)
	if err != nil {
		return err
	}
	if err := store.Save(tok); err != nil {
		return &model.AuthError{Op: "save token", Err: err}
	}
	fmt.Fprintln(out, "Token stored in:", store.Location())

	if tok.RefreshToken == "" {
		fmt.Fprintln(out, "\nNo refresh token was issued. Revoke the app's access in your Google account and run setup again.")
		return nil
	}
	fmt.Fprintln(out, "\nRefresh Token:", tok.RefreshToken)
	fmt.Fprintln(out, "\nAdd this token to your .env file as REFRESH_TOKEN=token_value")
	return nil
}
