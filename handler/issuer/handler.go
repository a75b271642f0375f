package handler

import (
	"net/http"

	"rwa-onchain/handler/httpx"
	"rwa-onchain/model"
	issuerUsecase "rwa-onchain/usecase/issuer"
)

type IssuerHandler struct {
	issuerUC issuerUsecase.IssuerUsecase
}

func NewIssuerHandler(uc issuerUsecase.IssuerUsecase) *IssuerHandler {
	return &IssuerHandler{issuerUC: uc}
}

// HandleAuthorized はアドレスが発行者として登録されているか返す
func (h *IssuerHandler) HandleAuthorized(w http.ResponseWriter, r *http.Request) {
	addr, err := httpx.Address(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	ok, err := h.issuerUC.IsAuthorized(r.Context(), addr)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"address": addr.Hex(), "authorized": ok})
}

// HandlePortfolio は発行者の出品一覧を返す
func (h *IssuerHandler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	addr, err := httpx.Address(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	listings, err := h.issuerUC.Portfolio(r.Context(), addr)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"listings": listings})
}

// HandleCreateAsset はメタデータをピン留めしてトークンを発行
func (h *IssuerHandler) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var form issuerUsecase.CreateAssetForm
	if err := httpx.DecodeJSON(w, r, &form); err != nil {
		httpx.WriteError(w, err)
		return
	}
	res, err := h.issuerUC.CreateAsset(r.Context(), form)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}

// HandleRemoveListing は出品を取り下げ
func (h *IssuerHandler) HandleRemoveListing(w http.ResponseWriter, r *http.Request) {
	tokenID, err := httpx.TokenID(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	tx, err := h.issuerUC.RemoveListing(r.Context(), tokenID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

// HandleApproveMarketplace はマーケットプレイスを承認
func (h *IssuerHandler) HandleApproveMarketplace(w http.ResponseWriter, r *http.Request) {
	res, err := h.issuerUC.ApproveMarketplace(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
