package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rwa-onchain/config"
	adminHandler "rwa-onchain/handler/admin"
	investorHandler "rwa-onchain/handler/investor"
	issuerHandler "rwa-onchain/handler/issuer"
	managerHandler "rwa-onchain/handler/manager"
	marketplaceHandler "rwa-onchain/handler/marketplace"
	paymentHandler "rwa-onchain/handler/payment"
	"rwa-onchain/retry"
	"rwa-onchain/server"
)

func serveCmd() *cobra.Command {
	var skipVerify bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and contract event listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, appLogger, skipVerify)
		},
	}
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip the contract deployment check at startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, skipVerify bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if !skipVerify {
		policy := retry.Policy{Attempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay, Logger: logger}
		if err := a.chain.VerifyDeployment(ctx, policy); err != nil {
			return errors.Wrap(err, "verify contracts")
		}
	}

	// イベントリスナーを開始
	if cfg.Events.Enabled {
		if err := a.marketplace.StartEventListener(ctx); err != nil {
			logger.Warn("failed to start event listener", zap.Error(err))
		}
	}

	handlers := server.Handlers{
		Marketplace: marketplaceHandler.NewMarketplaceHandler(a.marketplace, a.prices, cfg.Contracts, cfg.Network.Currency, logger),
		Payment:     paymentHandler.NewPaymentHandler(a.marketplace),
		Investor:    investorHandler.NewInvestorHandler(a.investor),
		Issuer:      issuerHandler.NewIssuerHandler(a.issuer),
		Admin:       adminHandler.NewAdminHandler(a.admin),
		Manager:     managerHandler.NewManagerHandler(a.manager),
	}
	router := server.NewRouter(handlers, cfg.Server, server.NewMetrics(), logger)

	logger.Info("onchain service starting",
		zap.String("network", cfg.Network.Name),
		zap.Int64("chain_id", cfg.Network.ChainID),
		zap.String("signer", a.chain.SignerAddress().Hex()),
		zap.String("port", cfg.Server.Port))

	return runAndWait(cancel, func() error {
		return server.Run(ctx, ":"+cfg.Server.Port, router, logger)
	}, a.listener)
}

// runAndWait はサーバーの終了後にリスナーを止め、その終了を待つ
// Listenに失敗した場合もリスナーのctxをキャンセルする
func runAndWait(cancel context.CancelFunc, run func() error, listener interface{ Wait() }) error {
	err := run()
	cancel()
	listener.Wait()
	return err
}
