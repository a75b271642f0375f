package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rwa-onchain/model"
)

// ActivityFeed は直近のコントラクトイベントを保持する固定長のフィード
type ActivityFeed struct {
	mu     sync.RWMutex
	size   int
	events []model.ContractEvent
	seen   map[string]struct{}
}

func NewActivityFeed(size int) *ActivityFeed {
	if size < 1 {
		size = 1
	}
	return &ActivityFeed{size: size, seen: make(map[string]struct{})}
}

func eventKey(ev model.ContractEvent) string {
	return ev.TxHash + "/" + string(ev.Type) + "/" + ev.TokenID
}

// Add はイベントを追加する。同じトランザクションの同じイベントは一度だけ
func (f *ActivityFeed) Add(ev model.ContractEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := eventKey(ev)
	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	f.events = append(f.events, ev)
	if len(f.events) > f.size {
		delete(f.seen, eventKey(f.events[0]))
		f.events = f.events[1:]
	}
	return true
}

// Recent は新しい順に最大limit件を返す (limit <= 0 なら全件)
func (f *ActivityFeed) Recent(limit int) []model.ContractEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := len(f.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.ContractEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, f.events[i])
	}
	return out
}

// defaultPollInterval はpoll_interval未設定時のポーリング間隔
const defaultPollInterval = 15 * time.Second

// StartEventListener は過去イベントをスキャンしてから購読を開始する
// 購読できない (HTTPのみのRPC等) 場合はログのポーリングに切り替える
func (uc *marketplaceUsecase) StartEventListener(ctx context.Context) error {
	head, err := uc.events.LatestBlock(ctx)
	if err != nil {
		uc.logger.Warn("failed to get latest block", zap.Error(err))
	}
	past, err := uc.events.ScanPastEvents(ctx, 0, nil)
	if err != nil {
		uc.logger.Warn("past event scan failed", zap.Error(err))
	}
	for _, ev := range past {
		uc.feed.Add(ev)
	}

	eventChan, err := uc.events.SubscribeEvents(ctx)
	if err != nil {
		uc.logger.Warn("event subscription unavailable, polling logs",
			zap.Duration("interval", uc.interval()),
			zap.Error(err))
		uc.wg.Add(1)
		go func() {
			defer uc.wg.Done()
			uc.pollEvents(ctx, head)
		}()
		return nil
	}

	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		for ev := range eventChan {
			uc.handleEvent(ctx, ev)
		}
		uc.logger.Info("event listener stopped")
	}()

	uc.logger.Info("contract event listener started", zap.Int("past_events", len(past)))
	return nil
}

func (uc *marketplaceUsecase) interval() time.Duration {
	if uc.pollInterval <= 0 {
		return defaultPollInterval
	}
	return uc.pollInterval
}

// pollEvents はlastの次のブロックから最新ブロックまでを定期的にスキャンする
// lastが0の場合は直近scan_blocks分から始める
func (uc *marketplaceUsecase) pollEvents(ctx context.Context, last uint64) {
	ticker := time.NewTicker(uc.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("event poller stopped")
			return
		case <-ticker.C:
		}

		head, err := uc.events.LatestBlock(ctx)
		if err != nil {
			uc.logger.Warn("failed to get latest block", zap.Error(err))
			continue
		}
		if last != 0 && head <= last {
			continue
		}
		var from uint64
		if last != 0 {
			from = last + 1
		}
		evs, err := uc.events.ScanPastEvents(ctx, from, &head)
		if err != nil {
			uc.logger.Warn("event poll failed", zap.Uint64("from", from), zap.Error(err))
			continue
		}
		for _, ev := range evs {
			uc.handleEvent(ctx, ev)
		}
		last = head
	}
}

// Wait はイベントリスナーの終了を待つ
func (uc *marketplaceUsecase) Wait() {
	uc.wg.Wait()
}

// handleEvent はイベントをフィードに追加し、Webhookに通知
func (uc *marketplaceUsecase) handleEvent(ctx context.Context, ev model.ContractEvent) {
	if !uc.feed.Add(ev) {
		return
	}
	uc.logger.Info("received event",
		zap.String("type", string(ev.Type)),
		zap.String("token_id", ev.TokenID),
		zap.String("tx", ev.TxHash))

	if uc.webhookURL == "" {
		return
	}
	if err := uc.notifyWebhook(ctx, ev); err != nil {
		uc.logger.Warn("failed to notify webhook", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// notifyWebhook はイベントをJSONでPOSTする
func (uc *marketplaceUsecase) notifyWebhook(ctx context.Context, ev model.ContractEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uc.webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := uc.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Activity は直近のイベントを返す
func (uc *marketplaceUsecase) Activity(limit int) []model.ContractEvent {
	return uc.feed.Recent(limit)
}
