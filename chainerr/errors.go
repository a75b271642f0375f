// Package chainerr はチェーン・ウォレット由来のエラーを分類し、ユーザー向けメッセージに変換する
package chainerr

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// Kind はエラーの種類
type Kind string

const (
	KindUserRejected      Kind = "user_rejected"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindReverted          Kind = "reverted"
	KindGasEstimation     Kind = "gas_estimation"
	KindNetworkSync       Kind = "network_sync"
	KindNetwork           Kind = "network"
	KindValidation        Kind = "validation"
	KindNotAuthorized     Kind = "not_authorized"
	KindNotFound          Kind = "not_found"
	KindUnknown           Kind = "unknown"
)

// codeUserRejected はウォレットがユーザー拒否時に返すEIP-1193のエラーコード
const codeUserRejected = 4001

// Error は分類済みのエラー
type Error struct {
	Kind   Kind
	Op     Op
	Msg    string // ユーザー向けメッセージ
	Reason string // revert reason (あれば)
	Err    error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cause はpkg/errorsのCauserを満たす
func (e *Error) Cause() error {
	return e.Err
}

// New は種類とメッセージからエラーを作成
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Validationf は入力検証エラーを作成
func Validationf(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Msg: errors.Errorf(format, args...).Error()}
}

// NotAuthorized は権限エラーを作成
func NotAuthorized(msg string) error {
	return &Error{Kind: KindNotAuthorized, Msg: msg}
}

// NotFound は対象が存在しないエラーを作成
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Reverted はレシートのステータスが失敗だった場合のエラーを作成
func Reverted(txHash string) error {
	return &Error{Kind: KindReverted, Msg: "transaction reverted: " + txHash}
}

// KindOf はエラーの種類を返す
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Classify(err)
}

// Classify はチェーンクライアント・署名者から返されたエラーの形を調べて分類する
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUserRejected {
		return KindUserRejected
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "action_rejected"),
		strings.Contains(msg, "user rejected"),
		strings.Contains(msg, "user denied"):
		return KindUserRejected
	case strings.Contains(msg, "insufficient funds"):
		return KindInsufficientFunds
	case strings.Contains(msg, "missing trie node"),
		strings.Contains(msg, "call_exception"),
		strings.Contains(msg, "network synchronization"):
		return KindNetworkSync
	case strings.Contains(msg, "execution reverted"), strings.Contains(msg, "revert"):
		return KindReverted
	case strings.Contains(msg, "gas required exceeds"),
		strings.Contains(msg, "unpredictable_gas_limit"),
		strings.Contains(msg, "cannot estimate gas"):
		return KindGasEstimation
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "eof") {
		return KindNetwork
	}
	return KindUnknown
}

// RevertReason はエラーからrevert reasonを取り出す
// "execution reverted: <reason>" 形式のメッセージと、ABIエンコードされたrevertデータの両方に対応
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) && ce.Reason != "" {
		return ce.Reason
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}

	msg := err.Error()
	const marker = "execution reverted: "
	if i := strings.Index(msg, marker); i >= 0 {
		return strings.TrimSpace(msg[i+len(marker):])
	}
	return ""
}

// Wrap は操作名に応じたユーザー向けメッセージを付けてエラーを分類する
// 既に分類済みのエラーはそのまま返す
func Wrap(op Op, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		if ce.Op == "" {
			ce.Op = op
		}
		return err
	}
	kind := Classify(err)
	reason := RevertReason(err)
	return &Error{
		Kind:   kind,
		Op:     op,
		Msg:    message(op, kind, reason, err),
		Reason: reason,
		Err:    err,
	}
}

// HTTPStatus はエラー種類に対応するHTTPステータスを返す
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotAuthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInsufficientFunds:
		return http.StatusPaymentRequired
	case KindUserRejected:
		return http.StatusConflict
	case KindReverted, KindGasEstimation:
		return http.StatusUnprocessableEntity
	case KindNetwork, KindNetworkSync:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
