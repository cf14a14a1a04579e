package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"eventhub/config"
	"eventhub/logger"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
	log     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "eventhub",
	Short:   "Event registration API",
	Long:    `eventhub serves the event registration API: accounts, events and capacity-checked registrations.`,
	Version: version,
	// serve is the default command.
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}

		log, err = logger.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./eventhub.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db-driver", "", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database DSN")

	// Bind flags to viper
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	_ = viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("dsn"))

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
