package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Database.Validate(); err != nil {
			return err
		}

		store, err := openStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}

		log.Info("migrations applied", zap.String("driver", cfg.Database.Driver))
		return store.Close()
	},
}
