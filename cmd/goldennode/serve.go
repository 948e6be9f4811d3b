package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Chloe-lh/Social-Gold/internal/api"
	"github.com/Chloe-lh/Social-Gold/internal/cache"
	"github.com/Chloe-lh/Social-Gold/internal/config"
	"github.com/Chloe-lh/Social-Gold/internal/inbox"
	"github.com/Chloe-lh/Social-Gold/internal/media"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the node's API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		var ec cache.EntryCache = cache.Noop{}
		if cfg.Redis.Addr != "" {
			rc, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password)
			if err != nil {
				log.Printf("Failed to connect to redis at %s, running uncached: %v", cfg.Redis.Addr, err)
			} else {
				ec = rc
			}
		}
		defer ec.Close()

		m, err := media.NewStore(cfg.Media.Dir)
		if err != nil {
			return err
		}

		d := inbox.NewDispatcher(st, cfg.Site.URL, cfg.Fanout.WorkerThreshold, cfg.Fanout.Timeout())
		srv := api.NewServer(cfg, st, ec, d, m)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()
		log.Printf("Serving %s on %s:%s", cfg.Site.URL, cfg.Server.Host, cfg.Server.Port)

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		stop()

		// Shutdown drains in-flight requests and pending deliveries.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
