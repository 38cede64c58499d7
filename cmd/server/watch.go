package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/feed"

	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	var tables []string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow changes to orders, reservations, reviews and contacts",
		Long: `Open a back-office session without a browser and print every applied
change event as one JSON line.

Examples:
  restaurant-service watch
  restaurant-service watch --table orders --table reservations`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var watched []domain.Table
			for _, name := range tables {
				t, err := domain.ParseTable(name)
				if err != nil {
					return err
				}
				watched = append(watched, t)
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			session := feed.NewSession(a.gateway, logger, feed.Options{Tables: watched, ActivitySize: cfg.Feed.ActivityWindow})
			if err := session.Start(ctx); err != nil {
				return err
			}
			defer session.Teardown()

			for t, n := range session.Unseen() {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s: %d unseen\n", t, n)
			}

			events, cancel := session.Watch()
			defer cancel()
			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				select {
				case <-ctx.Done():
					return nil
				case evt, ok := <-events:
					if !ok {
						return nil
					}
					if err := enc.Encode(evt); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().StringSliceVarP(&tables, "table", "t", nil, "tables to watch (default all)")
	return cmd
}
