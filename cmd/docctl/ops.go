package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/config"
	"github.com/drfirst/go-clinidoc/internal/infrastructure/postgres"
	"github.com/drfirst/go-clinidoc/internal/infrastructure/redpanda"
	"github.com/drfirst/go-clinidoc/internal/observability/logging"
	"github.com/drfirst/go-clinidoc/pkg/idempotency"
)

func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	cfg.Log.Format = "console"
	logger, err := logging.New(cfg.Log, "docctl")
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func topicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage Redpanda topics",
	}

	withAdmin := func(fn func(ctx context.Context, cmd *cobra.Command, admin *redpanda.Admin) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			replication, _ := cmd.Flags().GetInt16("replication")
			admin, err := redpanda.NewAdmin(cfg.Redpanda.Brokers, replication, logger)
			if err != nil {
				return err
			}
			defer admin.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return fn(ctx, cmd, admin)
		}
	}

	cmd.PersistentFlags().Int16("replication", 1, "replication factor for created topics")

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the service topics if missing",
		RunE: withAdmin(func(ctx context.Context, cmd *cobra.Command, admin *redpanda.Admin) error {
			statuses, err := admin.Ensure(ctx, redpanda.Topics)
			for _, s := range statuses {
				state := "exists"
				if s.Created {
					state = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (partitions=%d) %s\n", s.Name, s.Partitions, state)
			}
			return err
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List topics",
		RunE: withAdmin(func(ctx context.Context, cmd *cobra.Command, admin *redpanda.Admin) error {
			topics, err := admin.List(ctx)
			if err != nil {
				return err
			}
			for _, t := range topics {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", t.Name, t.Partitions)
			}
			return nil
		}),
	})

	lag := &cobra.Command{
		Use:   "lag",
		Short: "Show consumer group lag",
		RunE: withAdmin(func(ctx context.Context, cmd *cobra.Command, admin *redpanda.Admin) error {
			group, _ := cmd.Flags().GetString("group")
			lags, err := admin.Lag(ctx, group)
			if err != nil {
				return err
			}
			for _, l := range lags {
				fmt.Fprintf(cmd.OutOrStdout(), "%s[%d] lag=%d\n", l.Topic, l.Partition, l.Lag)
			}
			return nil
		}),
	}
	lag.Flags().String("group", "render-worker", "consumer group")
	cmd.AddCommand(lag)

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the document store, outbox and inbox tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cfg.Database.URL == "" {
				return errors.New("database.url is not configured")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pool, err := pgxpool.New(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.NewStore(pool, logger).Migrate(ctx); err != nil {
				return err
			}
			if err := idempotency.NewPostgresBackend(pool).Migrate(ctx); err != nil {
				return err
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}
