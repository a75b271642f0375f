// Package httpx はハンドラー共通のリクエスト解析とJSONレスポンス
package httpx

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"rwa-onchain/chainerr"
)

// maxBodyBytes はJSONリクエストボディの上限
const maxBodyBytes = 1 << 20

// ErrorBody はエラーレスポンス
type ErrorBody struct {
	Error string        `json:"error"`
	Kind  chainerr.Kind `json:"kind"`
}

// WriteJSON はvをJSONで書き込む
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError はエラーの種類に応じたステータスで {error, kind} を返す
func WriteError(w http.ResponseWriter, err error) {
	kind := chainerr.KindOf(err)
	if kind == "" {
		kind = chainerr.KindUnknown
	}
	WriteJSON(w, chainerr.HTTPStatus(err), ErrorBody{Error: err.Error(), Kind: kind})
}

// DecodeJSON はリクエストボディをvに読み込む
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return chainerr.Validationf("Invalid request body")
	}
	return nil
}

// TokenID はパス変数 tokenId を取得
func TokenID(r *http.Request) (*big.Int, error) {
	return ParseTokenID(mux.Vars(r)["tokenId"])
}

// ParseTokenID は10進のトークンIDを解析
func ParseTokenID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || id.Sign() < 0 {
		return nil, chainerr.Validationf("Invalid token ID %q", s)
	}
	return id, nil
}

// Address はパス変数 address を取得
func Address(r *http.Request) (common.Address, error) {
	s := mux.Vars(r)["address"]
	if !common.IsHexAddress(s) {
		return common.Address{}, chainerr.Validationf("Invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// QueryInt はクエリパラメータを整数で取得 (未指定ならdef)
func QueryInt(r *http.Request, name string, def int64) (int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, chainerr.Validationf("Invalid %s %q", name, s)
	}
	return n, nil
}
