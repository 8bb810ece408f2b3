package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"inboxdomains/internal/analyze"
	"inboxdomains/internal/config"
	"inboxdomains/internal/gmail"
	"inboxdomains/internal/imapmail"
	"inboxdomains/internal/logging"
	"inboxdomains/internal/model"
	"inboxdomains/internal/report"
	"inboxdomains/internal/store"
	"inboxdomains/internal/token"
	"inboxdomains/internal/tui"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		reportError(logger, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	client, namespace, closeFn, err := openProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if cfg.CachePath != "" {
		cache, err := store.Open(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("open header cache: %w", err)
		}
		defer cache.Close()
		cc := store.NewCachingClient(client, cache, namespace, logger)
		defer func() {
			hits, misses := cc.Stats()
			entries, err := cache.Count(context.WithoutCancel(ctx), namespace)
			if err != nil {
				logger.Warn("header cache count", "err", err)
			}
			logger.Debug("header cache", "namespace", namespace, "hits", hits, "misses", misses, "entries", entries)
		}()
		client = cc
	}

	quantity, err := tui.PromptQuantity(os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("\nFetching %d emails from your inbox...\n", quantity)

	a := analyze.New(client,
		analyze.WithPageCap(cfg.PageSize),
		analyze.WithLogger(logger),
		analyze.WithProgress(printProgress(os.Stdout)),
	)
	res, err := a.Run(ctx, quantity)
	if err != nil {
		return fmt.Errorf("analyzing emails: %w", err)
	}
	logger.Info("analysis complete", "listed", res.Listed, "counted", res.Counted, "skipped", res.Skipped, "domains", res.Counts.Len())

	return report.Render(os.Stdout, cfg.Output, analyze.Present(res.Counts))
}

// openProvider returns the configured mail provider, a cache namespace for
// its message ids and a function releasing its resources.
func openProvider(ctx context.Context, cfg *config.Config, logger *log.Logger) (analyze.Client, string, func(), error) {
	switch cfg.Provider {
	case config.ProviderIMAP:
		c := imapmail.New(cfg.IMAP.Host, cfg.IMAP.Port, cfg.IMAP.Username, cfg.IMAP.Password, cfg.IMAP.TLS, cfg.IMAP.Mailbox, logger)
		logger.Debug("using imap provider", "addr", cfg.IMAP.Addr(), "mailbox", cfg.IMAP.Mailbox)
		closeFn := func() {
			if err := c.Close(); err != nil {
				logger.Warn("imap close", "err", err)
			}
		}
		ns := store.Namespace(config.ProviderIMAP, cfg.IMAP.Username+"@"+cfg.IMAP.Addr()+"/"+cfg.IMAP.Mailbox)
		return c, ns, closeFn, nil
	}

	ts, err := token.Open(cfg.TokenBackend, cfg.TokenPath)
	if err != nil {
		return nil, "", nil, &model.AuthError{Op: "open token store", Err: err}
	}
	if seeded, err := token.SeedRefresh(ts, cfg.RefreshToken); err != nil {
		logger.Warn("could not store REFRESH_TOKEN", "err", err)
	} else if seeded {
		logger.Info("seeded token store from REFRESH_TOKEN", "location", ts.Location())
	}
	oauthCfg := gmail.NewOAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI)
	authz := &gmail.Authorizer{
		Config:  oauthCfg,
		Timeout: cfg.AuthTimeout,
		Out:     os.Stdout,
		Logger:  logger,
	}
	httpClient, err := gmail.Authenticate(ctx, oauthCfg, ts, authz, os.Stdout, logger)
	if err != nil {
		return nil, "", nil, err
	}
	c, err := gmail.NewClient(ctx, httpClient)
	if err != nil {
		return nil, "", nil, &model.AuthError{Op: "set up gmail client", Err: err}
	}

	ns := store.Namespace(config.ProviderGmail, cfg.ClientID)
	if cfg.CachePath != "" {
		if addr, err := c.Account(ctx); err == nil {
			ns = store.Namespace(config.ProviderGmail, addr)
		} else {
			logger.Warn("could not look up account, caching under client id", "err", err)
		}
	}
	return c, ns, func() {}, nil
}

func printProgress(w io.Writer) func(model.Progress) {
	return func(p model.Progress) {
		switch {
		case p.Phase == "list":
			fmt.Fprintf(w, "Fetched %d of %d emails...\n", p.Done, p.Total)
		case p.Phase == "fetch" && p.Done == 0:
			fmt.Fprintf(w, "Processing %d emails...\n", p.Total)
		}
	}
}

func reportError(logger *log.Logger, err error) {
	var (
		authErr      *model.AuthError
		transportErr *model.TransportError
	)
	switch {
	case errors.Is(err, tui.ErrCanceled), errors.Is(err, context.Canceled):
		logger.Warn("Canceled")
	case errors.As(err, &authErr):
		logger.Error("Authentication error", "op", authErr.Op, "err", authErr.Err)
	case errors.As(err, &transportErr):
		logger.Error("Error analyzing emails", "op", transportErr.Op, "message", transportErr.MessageID, "err", transportErr.Err)
	default:
		logger.Error("Application error", "err", err)
	}
}
