// Command recordshelf runs the record catalog and play ledger service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"recordshelf/internal/config"
	"recordshelf/internal/db"
	"recordshelf/internal/discogs"
	"recordshelf/internal/ledger"
	"recordshelf/internal/logging"
	"recordshelf/internal/sync"
	"recordshelf/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx, log); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	exchange := discogs.NewOAuth(discogs.OAuthConfig{
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		CallbackURL:    cfg.BaseURL + "/auth/provider/callback",
	})

	clients := discogs.NewClientFactory(discogs.FactoryConfig{
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		PersonalToken:  cfg.PersonalToken,
	})

	syncSvc := sync.New(database.Records(), clients, cfg.FallbackOwner, log)
	ledgerSvc := ledger.New(database.Plays())

	server := web.NewServer(web.ServerConfig{
		Addr:          cfg.HTTPAddr,
		SessionSecret: cfg.SessionSecret,
		FallbackOwner: cfg.FallbackOwner,
	}, log, exchange, syncSvc, ledgerSvc)

	return server.Run()
}
