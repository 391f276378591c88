package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Maphikza/iqube-ops/internal/api"
	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/lib/explorer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the explorer proxy and the ops API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d := loadDeps()
		defer d.Close()
		if d.store == nil {
			return fmt.Errorf("the ops API needs the result store at %s", viper.GetString("db_path"))
		}

		jwtKey, err := api.InitJWTKey(viper.GetString("jwt_keys_dir"))
		if err != nil {
			return err
		}
		opts := api.OptionsFromConfig()
		opts.JWTKey = jwtKey

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ops := d.anchoringService()
		go ops.InitializeEVMRPC(ctx)
		go expireChallenges(ctx, d, 2*time.Minute)

		server, err := api.NewServer(
			explorer.NewEsplora(viper.GetString("explorer.esplora_url"), 0),
			d.reconciler(newIndexer()),
			ops,
			d.store,
			opts,
		)
		if err != nil {
			return err
		}

		addr := fmt.Sprintf(":%d", viper.GetInt("api_port"))
		return server.ListenAndServe(ctx, addr)
	},
}

// expireChallenges retires login challenges older than maxAge until ctx ends.
func expireChallenges(ctx context.Context, d *deps, maxAge time.Duration) {
	ticker := time.NewTicker(maxAge)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.store.ExpireOldChallenges(maxAge); err != nil {
				logger.Warn("Failed to expire challenges", "error", err)
			}
		}
	}
}
