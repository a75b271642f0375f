package handler

import (
	"net/http"

	"rwa-onchain/handler/httpx"
	"rwa-onchain/model"
	investorUsecase "rwa-onchain/usecase/investor"
)

type InvestorHandler struct {
	investorUC investorUsecase.InvestorUsecase
}

func NewInvestorHandler(uc investorUsecase.InvestorUsecase) *InvestorHandler {
	return &InvestorHandler{investorUC: uc}
}

// HandlePortfolio は保有資産と集計値を返す
func (h *InvestorHandler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	holder, err := httpx.Address(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	p, err := h.investorUC.Portfolio(r.Context(), holder)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// HandleHoldings は保有資産の一覧を返す
func (h *InvestorHandler) HandleHoldings(w http.ResponseWriter, r *http.Request) {
	holder, err := httpx.Address(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	holdings, err := h.investorUC.Holdings(r.Context(), holder)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if holdings == nil {
		holdings = []model.Holding{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"holdings": holdings})
}

// HandleQuoteSell は売却見積もりを返す (?quantity=)
func (h *InvestorHandler) HandleQuoteSell(w http.ResponseWriter, r *http.Request) {
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
	q, err := h.investorUC.QuoteSell(r.Context(), tokenID, qty)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q)
}

type sellRequest struct {
	Quantity int64 `json:"quantity"`
}

// HandleSell はsellAssetを送信
func (h *InvestorHandler) HandleSell(w http.ResponseWriter, r *http.Request) {
	tokenID, err := httpx.TokenID(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req sellRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	tx, q, err := h.investorUC.Sell(r.Context(), tokenID, req.Quantity)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"tx": tx, "quote": q})
}
