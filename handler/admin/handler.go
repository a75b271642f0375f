package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"rwa-onchain/handler/httpx"
	"rwa-onchain/model"
	adminUsecase "rwa-onchain/usecase/admin"
)

type AdminHandler struct {
	adminUC adminUsecase.AdminUsecase
}

func NewAdminHandler(uc adminUsecase.AdminUsecase) *AdminHandler {
	return &AdminHandler{adminUC: uc}
}

// HandleOverview は発行者・マネージャー一覧と停止状態を返す
func (h *AdminHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := h.adminUC.Overview(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

// HandleAddUser はユーザーを登録してコントラクトに追加
func (h *AdminHandler) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	var form adminUsecase.AddUserForm
	if err := httpx.DecodeJSON(w, r, &form); err != nil {
		httpx.WriteError(w, err)
		return
	}
	res, err := h.adminUC.AddUser(r.Context(), form)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}

// HandleRemoveUser は /users/{role}/{address} のユーザーを削除
func (h *AdminHandler) HandleRemoveUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tx, err := h.adminUC.RemoveUser(r.Context(), model.Role(vars["role"]), vars["address"])
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

// HandleToggleMarketplace はマーケットプレイスの停止・再開を切り替え
func (h *AdminHandler) HandleToggleMarketplace(w http.ResponseWriter, r *http.Request) {
	paused, tx, err := h.adminUC.ToggleMarketplace(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"paused": paused, "tx": tx})
}

// AssignRequest はトークン割り当てリクエスト
type AssignRequest struct {
	TokenID string `json:"token_id"`
	Manager string `json:"manager"`
}

// HandleAssignToken はトークンをマネージャーに割り当て
func (h *AdminHandler) HandleAssignToken(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	tx, err := h.adminUC.AssignToken(r.Context(), req.TokenID, req.Manager)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}
