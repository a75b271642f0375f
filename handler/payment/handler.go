package handler

import (
	"context"
	"net/http"

	"rwa-onchain/handler/httpx"
	"rwa-onchain/model"
	marketplaceUsecase "rwa-onchain/usecase/marketplace"
)

// PurchaseConfirmer は外部ウォレットからの購入を確認する
type PurchaseConfirmer interface {
	ConfirmPurchase(ctx context.Context, req marketplaceUsecase.PurchaseRequest) (*model.PurchaseConfirmation, error)
}

type PaymentHandler struct {
	confirmer PurchaseConfirmer
}

func NewPaymentHandler(c PurchaseConfirmer) *PaymentHandler {
	return &PaymentHandler{confirmer: c}
}

// ConfirmPurchaseRequest は購入確認APIの入力
type ConfirmPurchaseRequest struct {
	TxHash   string `json:"tx_hash"`
	TokenID  string `json:"token_id"`
	Quantity int64  `json:"quantity"`
	Buyer    string `json:"buyer_wallet"`
}

// HandleConfirmPurchase はbuyAssetの支払いトランザクションを検証する
func (h *PaymentHandler) HandleConfirmPurchase(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPurchaseRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	tokenID, err := httpx.ParseTokenID(req.TokenID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	// Usecaseにビジネスロジックを委譲
	conf, err := h.confirmer.ConfirmPurchase(r.Context(), marketplaceUsecase.PurchaseRequest{
		TxHash:   req.TxHash,
		TokenID:  tokenID,
		Quantity: req.Quantity,
		Buyer:    req.Buyer,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, conf)
}
