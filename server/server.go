// Package server はHTTP APIのルーティングと起動
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"rwa-onchain/config"
	adminHandler "rwa-onchain/handler/admin"
	investorHandler "rwa-onchain/handler/investor"
	issuerHandler "rwa-onchain/handler/issuer"
	managerHandler "rwa-onchain/handler/manager"
	marketplaceHandler "rwa-onchain/handler/marketplace"
	paymentHandler "rwa-onchain/handler/payment"
)

// shutdownTimeout は停止時に処理中のリクエストを待つ時間
const shutdownTimeout = 10 * time.Second

// Handlers はルーターに登録するハンドラー
type Handlers struct {
	Marketplace *marketplaceHandler.MarketplaceHandler
	Payment     *paymentHandler.PaymentHandler
	Investor    *investorHandler.InvestorHandler
	Issuer      *issuerHandler.IssuerHandler
	Admin       *adminHandler.AdminHandler
	Manager     *managerHandler.ManagerHandler
}

// NewRouter はAPIのルーティングとミドルウェアを設定する
func NewRouter(h Handlers, cfg config.ServerConfig, metrics *Metrics, logger *zap.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(withRequestID, recoverPanic(logger), accessLog(logger), metrics.Middleware)

	// ヘルスチェック用エンドポイント
	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
	router.HandleFunc("/", health).Methods("GET")
	router.HandleFunc("/health", health).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Marketplace API
	api.HandleFunc("/listings", h.Marketplace.HandleListings).Methods("GET")
	api.HandleFunc("/listings/{tokenId}/quote", h.Marketplace.HandleQuote).Methods("GET")
	api.HandleFunc("/listings/{tokenId}/buy", h.Marketplace.HandleBuy).Methods("POST")
	api.HandleFunc("/activity", h.Marketplace.HandleActivity).Methods("GET")
	api.HandleFunc("/price", h.Marketplace.HandlePrice).Methods("GET")
	api.HandleFunc("/contract/info", h.Marketplace.HandleContractInfo).Methods("GET")
	api.HandleFunc("/contract/verify-tx", h.Marketplace.HandleVerifyTransaction).Methods("POST")

	// Payment API
	api.HandleFunc("/purchases/confirm", h.Payment.HandleConfirmPurchase).Methods("POST")

	// Investor API
	api.HandleFunc("/investors/{address}/portfolio", h.Investor.HandlePortfolio).Methods("GET")
	api.HandleFunc("/investors/{address}/holdings", h.Investor.HandleHoldings).Methods("GET")
	api.HandleFunc("/holdings/{tokenId}/quote", h.Investor.HandleQuoteSell).Methods("GET")
	api.HandleFunc("/holdings/{tokenId}/sell", h.Investor.HandleSell).Methods("POST")

	// Issuer API
	api.HandleFunc("/issuers/{address}/authorized", h.Issuer.HandleAuthorized).Methods("GET")
	api.HandleFunc("/issuers/{address}/listings", h.Issuer.HandlePortfolio).Methods("GET")
	api.HandleFunc("/assets", h.Issuer.HandleCreateAsset).Methods("POST")
	api.HandleFunc("/listings/{tokenId}", h.Issuer.HandleRemoveListing).Methods("DELETE")
	api.HandleFunc("/approval", h.Issuer.HandleApproveMarketplace).Methods("POST")

	// Admin API
	api.HandleFunc("/admin/overview", h.Admin.HandleOverview).Methods("GET")
	api.HandleFunc("/admin/users", h.Admin.HandleAddUser).Methods("POST")
	api.HandleFunc("/admin/users/{role}/{address}", h.Admin.HandleRemoveUser).Methods("DELETE")
	api.HandleFunc("/admin/marketplace/toggle", h.Admin.HandleToggleMarketplace).Methods("POST")
	api.HandleFunc("/admin/assignments", h.Admin.HandleAssignToken).Methods("POST")

	// Manager API
	api.HandleFunc("/managers/{address}/authorized", h.Manager.HandleAuthorized).Methods("GET")
	api.HandleFunc("/managers/{address}/assets", h.Manager.HandleAssignedAssets).Methods("GET")
	api.HandleFunc("/managers/{address}/income", h.Manager.HandleIncomeHistory).Methods("GET")
	api.HandleFunc("/income", h.Manager.HandleSubmitIncome).Methods("POST")

	// --- CORSミドルウェアの設定 ---
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// Run はctxがキャンセルされるまでサーバーを動かす
func Run(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "could not start server")
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
