package handler

import (
	"net/http"

	"go.uber.org/zap"

	"rwa-onchain/chainerr"
	"rwa-onchain/gateway/price"
	"rwa-onchain/handler/httpx"
	"rwa-onchain/model"
	marketplaceUsecase "rwa-onchain/usecase/marketplace"
)

// defaultActivityLimit はactivityのlimit未指定時の件数
const defaultActivityLimit = 50

type MarketplaceHandler struct {
	marketplaceUC marketplaceUsecase.MarketplaceUsecase
	prices        price.Gateway
	contracts     map[string]string
	symbol        string
	logger        *zap.Logger
}

func NewMarketplaceHandler(uc marketplaceUsecase.MarketplaceUsecase, prices price.Gateway, contracts map[string]string, symbol string, logger *zap.Logger) *MarketplaceHandler {
	return &MarketplaceHandler{
		marketplaceUC: uc,
		prices:        prices,
		contracts:     contracts,
		symbol:        symbol,
		logger:        logger.Named("marketplace_handler"),
	}
}

// ListingsResponse は出品一覧のレスポンス
// group=type の場合はCategoriesごとに分けたGroupsを返す
type ListingsResponse struct {
	*model.ListingsResult
	Groups map[string][]model.Listing `json:"groups,omitempty"`
}

// HandleListings は出品一覧を返す (?type= で資産種類を絞り込み)
func (h *MarketplaceHandler) HandleListings(w http.ResponseWriter, r *http.Request) {
	res, err := h.marketplaceUC.Listings(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if t := r.URL.Query().Get("type"); t != "" {
		res.Listings = marketplaceUsecase.FilterByType(res.Listings, t)
	}
	resp := ListingsResponse{ListingsResult: res}
	if r.URL.Query().Get("group") == "type" {
		resp.Groups = marketplaceUsecase.Partition(res.Listings)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleQuote は購入見積もりを返す (?quantity=)
func (h *MarketplaceHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	tokenID, err := httpx.TokenID(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	qty, err := httpx.QueryInt(r, "quantity", 1)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	q, err := h.marketplaceUC.QuoteBuy(r.Context(), tokenID, qty)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q)
}

// QuantityRequest は数量を指定するリクエスト
type QuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

// TxResponse はトランザクション送信の結果
type TxResponse struct {
	Tx    *model.TxResult `json:"tx"`
	Quote *model.Quote    `json:"quote"`
}

// HandleBuy はサーバーの署名者でbuyAssetを送信
func (h *MarketplaceHandler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	tokenID, err := httpx.TokenID(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req QuantityRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	tx, q, err := h.marketplaceUC.Buy(r.Context(), tokenID, req.Quantity)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, TxResponse{Tx: tx, Quote: q})
}

// HandleActivity は直近のコントラクトイベントを返す (?limit=)
func (h *MarketplaceHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := httpx.QueryInt(r, "limit", defaultActivityLimit)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": h.marketplaceUC.Activity(int(limit)),
	})
}

// VerifyTxRequest はトランザクション検証リクエスト
type VerifyTxRequest struct {
	TxHash string `json:"tx_hash"`
}

// HandleVerifyTransaction はトランザクションを検証
func (h *MarketplaceHandler) HandleVerifyTransaction(w http.ResponseWriter, r *http.Request) {
	var req VerifyTxRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.TxHash == "" {
		httpx.WriteError(w, chainerr.Validationf("tx_hash is required"))
		return
	}

	verification, err := h.marketplaceUC.VerifyTransaction(r.Context(), req.TxHash)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, verification)
}

// HandleContractInfo はコントラクトアドレスを返す
func (h *MarketplaceHandler) HandleContractInfo(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"contracts": h.contracts,
		"currency":  h.symbol,
	})
}

// PriceResponse は表示用のUSDレート
type PriceResponse struct {
	model.PriceData
	Symbol string `json:"symbol"`
	Label  string `json:"label"`
}

// HandlePrice は1通貨あたりのUSDレートを返す
func (h *MarketplaceHandler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	p := h.prices.USDPrice(r.Context())
	httpx.WriteJSON(w, http.StatusOK, PriceResponse{
		PriceData: p,
		Symbol:    h.symbol,
		Label:     price.FormatEtherWithUSD(1, p.USD, h.symbol),
	})
}
