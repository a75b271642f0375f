package cli

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rwa-onchain/cache"
	"rwa-onchain/config"
	"rwa-onchain/gateway/authapi"
	"rwa-onchain/gateway/contract"
	"rwa-onchain/gateway/ipfs"
	paymentGateway "rwa-onchain/gateway/payment"
	"rwa-onchain/gateway/price"
	adminUsecase "rwa-onchain/usecase/admin"
	"rwa-onchain/usecase/asset"
	investorUsecase "rwa-onchain/usecase/investor"
	issuerUsecase "rwa-onchain/usecase/issuer"
	managerUsecase "rwa-onchain/usecase/manager"
	marketplaceUsecase "rwa-onchain/usecase/marketplace"
)

// app はコマンドが共有する依存関係
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   cache.Store
	client  *ethclient.Client
	chainID *big.Int
	chain   *contract.ChainGateway
	prices  *price.CoinGeckoGateway

	// events はイベント購読用 (WS URLがなければchainと同じ)
	events   *contract.ChainGateway
	wsClient *ethclient.Client

	marketplace marketplaceUsecase.MarketplaceUsecase
	investor    investorUsecase.InvestorUsecase
	issuer      issuerUsecase.IssuerUsecase
	admin       adminUsecase.AdminUsecase
	manager     managerUsecase.ManagerUsecase

	// listener はイベントリスナーの終了待ちに使う
	listener interface{ Wait() }
}

// newApp はキャッシュ・チェーン接続・ゲートウェイ・ユースケースを組み立てる
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	store, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, errors.Wrap(err, "init cache")
	}
	a.store = store

	// --- チェーン接続 ---
	a.client, a.chainID, err = contract.Dial(ctx, cfg.RPCURLs(), cfg.Network.ChainID, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.chain, err = contract.NewChainGateway(a.client, a.chainID, cfg, logger)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "init contract gateway")
	}
	a.events = a.chain
	if cfg.Network.WSURL != "" {
		ws, _, err := contract.Dial(ctx, []string{cfg.Network.WSURL}, cfg.Network.ChainID, logger)
		if err != nil {
			// HTTP clientでコントラクト機能は使用可能
			logger.Warn("websocket unavailable, events use the http endpoint", zap.Error(err))
		} else if g, err := contract.NewChainGateway(ws, a.chainID, cfg, logger); err == nil {
			a.wsClient, a.events = ws, g
		} else {
			ws.Close()
			logger.Warn("websocket gateway init failed", zap.Error(err))
		}
	}

	// --- ゲートウェイ ---
	ipfsGW := ipfs.NewPinataGateway(cfg.IPFS, store, logger)
	a.prices = price.NewCoinGeckoGateway(cfg.Price, store, logger)
	authGW := authapi.NewHTTPGateway(cfg.AuthAPI, logger)
	payments := paymentGateway.NewEthGateway(a.client, logger)
	enricher := asset.NewEnricher(a.chain, ipfsGW, cfg.IPFS.Concurrency, logger)

	signer := a.chain.SignerAddress()
	marketplaceAddr := a.chain.ContractAddress(config.ContractMarketplace)

	// --- ユースケース ---
	market := marketplaceUsecase.NewMarketplaceUsecase(marketplaceUsecase.Deps{
		Market:             a.chain,
		Tokens:             a.chain,
		Events:             a.events,
		Verifier:           a.chain,
		Payments:           payments,
		Assets:             enricher,
		Prices:             a.prices,
		MarketplaceAddress: marketplaceAddr,
	}, cfg, logger)
	a.marketplace = market
	a.listener = market

	a.investor = investorUsecase.NewInvestorUsecase(investorUsecase.Deps{
		Market: a.chain,
		Tokens: a.chain,
		Assets: enricher,
		Signer: signer,
	}, cfg, logger)

	a.issuer = issuerUsecase.NewIssuerUsecase(issuerUsecase.Deps{
		Admin:              a.chain,
		Issuer:             a.chain,
		Market:             a.chain,
		Tokens:             a.chain,
		IPFS:               ipfsGW,
		Assets:             enricher,
		Listings:           market,
		Signer:             signer,
		MarketplaceAddress: marketplaceAddr,
	}, logger)

	a.admin = adminUsecase.NewAdminUsecase(a.chain, ipfsGW, authGW, cfg.IPFS.Concurrency, logger)

	a.manager = managerUsecase.NewManagerUsecase(managerUsecase.Deps{
		Admin:    a.chain,
		Tokens:   a.chain,
		Market:   a.chain,
		Splitter: a.chain,
		Assets:   enricher,
		History:  store,
		Signer:   signer,
	}, logger)

	return a, nil
}

// Close は接続とキャッシュを閉じる
func (a *app) Close() {
	if a.wsClient != nil {
		a.wsClient.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close cache", zap.Error(err))
		}
	}
}
