package handler

import (
	"net/http"

	"rwa-onchain/handler/httpx"
	"rwa-onchain/model"
	managerUsecase "rwa-onchain/usecase/manager"
)

type ManagerHandler struct {
	managerUC managerUsecase.ManagerUsecase
}

func NewManagerHandler(uc managerUsecase.ManagerUsecase) *ManagerHandler {
	return &ManagerHandler{managerUC: uc}
}

// HandleAuthorized はアドレスがマネージャーとして登録されているか返す
func (h *ManagerHandler) HandleAuthorized(w http.ResponseWriter, r *http.Request) {
	addr, err := httpx.Address(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	ok, err := h.managerUC.IsAuthorized(r.Context(), addr)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"address": addr.Hex(), "authorized": ok})
}

// HandleAssignedAssets は割り当てられた資産を返す
func (h *ManagerHandler) HandleAssignedAssets(w http.ResponseWriter, r *http.Request) {
	addr, err := httpx.Address(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	assets, err := h.managerUC.AssignedAssets(r.Context(), addr)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if assets == nil {
		assets = []model.AssignedAsset{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"assets": assets})
}

// HandleSubmitIncome は収益を分配コントラクトに送金
func (h *ManagerHandler) HandleSubmitIncome(w http.ResponseWriter, r *http.Request) {
	var form managerUsecase.IncomeForm
	if err := httpx.DecodeJSON(w, r, &form); err != nil {
		httpx.WriteError(w, err)
		return
	}
	rec, err := h.managerUC.SubmitIncome(r.Context(), form)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, rec)
}

// HandleIncomeHistory は送金履歴を返す
func (h *ManagerHandler) HandleIncomeHistory(w http.ResponseWriter, r *http.Request) {
	addr, err := httpx.Address(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	records, err := h.managerUC.IncomeHistory(r.Context(), addr)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}
