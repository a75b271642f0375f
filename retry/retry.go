// Package retry は一時的なRPC失敗に対する固定回数リトライを提供する
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rwa-onchain/chainerr"
)

// Policy はリトライ回数と基本待機時間
// n回目の失敗後は Delay * n だけ待つ (線形バックオフ)
type Policy struct {
	Attempts int
	Delay    time.Duration
	Logger   *zap.Logger
}

// Do はfnを最大Attempts回実行する
// 入力エラー・revert・ユーザー拒否などリトライしても結果が変わらないエラーは即座に返す
func (p Policy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !Transient(err) || attempt == attempts {
			break
		}
		wait := p.Delay * time.Duration(attempt)
		log.Warn("retrying call",
			zap.String("call", name),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// Transient はリトライで回復しうるエラーかどうかを返す
func Transient(err error) bool {
	switch chainerr.KindOf(err) {
	case chainerr.KindValidation,
		chainerr.KindNotAuthorized,
		chainerr.KindNotFound,
		chainerr.KindReverted,
		chainerr.KindUserRejected,
		chainerr.KindInsufficientFunds:
		return false
	}
	return true
}
