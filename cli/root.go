// Package cli はrwa-onchainのコマンドライン
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rwa-onchain/config"
	"rwa-onchain/logger"
)

var (
	configPath string
	logLevel   string

	cfg       *config.Config
	appLogger *zap.Logger
)

// Execute はルートコマンドを実行する
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rwa-onchain",
		Short:         "Backend for the RWA tokenization marketplace",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			appLogger, err = logger.New(cfg.Log)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appLogger != nil {
				_ = appLogger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (env RWA_* overrides)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd(), listingsCmd(), quoteCmd(), priceCmd(), verifyTxCmd())
	return root
}
