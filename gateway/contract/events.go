package contract

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rwa-onchain/model"
)

// EventSource はコントラクトイベントの購読とスキャン
type EventSource interface {
	// SubscribeEvents はコントラクトイベントをWebSocket経由で購読
	SubscribeEvents(ctx context.Context) (<-chan model.ContractEvent, error)
	// ScanPastEvents は過去のブロックからイベントをスキャン
	ScanPastEvents(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]model.ContractEvent, error)
	LatestBlock(ctx context.Context) (uint64, error)
}

// eventContracts はイベントを発行するコントラクト
func (g *ChainGateway) eventContracts() []*boundContract {
	return []*boundContract{g.marketplace, g.token, g.issuer, g.splitter, g.admin}
}

func (g *ChainGateway) eventQuery() ethereum.FilterQuery {
	var addrs []common.Address
	for _, c := range g.eventContracts() {
		addrs = append(addrs, c.address)
	}
	return ethereum.FilterQuery{Addresses: addrs}
}

func (g *ChainGateway) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := g.backend.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "get latest block")
	}
	return n, nil
}

// SubscribeEvents はイベントをチャネルに流す
// ctxのキャンセルか購読エラーでチャネルが閉じられる
func (g *ChainGateway) SubscribeEvents(ctx context.Context) (<-chan model.ContractEvent, error) {
	logs := make(chan types.Log)
	sub, err := g.backend.SubscribeFilterLogs(ctx, g.eventQuery(), logs)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe to contract logs")
	}
	g.logger.Info("subscribed to contract events", zap.Int("contracts", len(g.eventContracts())))

	events := make(chan model.ContractEvent, 100)
	go func() {
		defer close(events)
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				g.logger.Info("event subscription stopped")
				return
			case err := <-sub.Err():
				g.logger.Error("event subscription error", zap.Error(err))
				return
			case vLog := <-logs:
				ev, ok := g.parseLog(vLog)
				if !ok {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

// ScanPastEvents はfromBlockからtoBlockまでのログを取得する
// fromBlockが0なら直近scanBlocks分、toBlockがnilなら最新ブロックまで
func (g *ChainGateway) ScanPastEvents(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]model.ContractEvent, error) {
	current, err := g.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}

	from := fromBlock
	if from == 0 && current > g.scanBlocks {
		from = current - g.scanBlocks
	}
	to := current
	if toBlock != nil {
		to = *toBlock
	}
	if from > to {
		return nil, nil
	}

	q := g.eventQuery()
	q.FromBlock = new(big.Int).SetUint64(from)
	q.ToBlock = new(big.Int).SetUint64(to)
	logs, err := g.backend.FilterLogs(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "filter logs %d-%d", from, to)
	}

	var events []model.ContractEvent
	for _, vLog := range logs {
		if ev, ok := g.parseLog(vLog); ok {
			events = append(events, ev)
		}
	}
	g.logger.Info("scanned past events",
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("logs", len(logs)),
		zap.Int("events", len(events)))
	return events, nil
}

// parseLog はログをContractEventに変換
// 既知のコントラクト・イベントでなければfalse
func (g *ChainGateway) parseLog(vLog types.Log) (model.ContractEvent, bool) {
	if len(vLog.Topics) == 0 || vLog.Removed {
		return model.ContractEvent{}, false
	}
	for _, c := range g.eventContracts() {
		if c.address != vLog.Address {
			continue
		}
		ev, err := c.abi.EventByID(vLog.Topics[0])
		if err != nil {
			g.logger.Debug("unknown event signature",
				zap.String("contract", c.name),
				zap.String("topic", vLog.Topics[0].Hex()))
			return model.ContractEvent{}, false
		}
		fields, err := unpackEvent(ev, vLog)
		if err != nil {
			g.logger.Warn("failed to unpack event", zap.String("event", ev.Name), zap.Error(err))
			return model.ContractEvent{}, false
		}
		return buildEvent(c.name, ev.Name, vLog, fields), true
	}
	return model.ContractEvent{}, false
}

func unpackEvent(ev *abi.Event, vLog types.Log) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if len(vLog.Data) > 0 {
		if err := ev.Inputs.UnpackIntoMap(fields, vLog.Data); err != nil {
			return nil, errors.Wrap(err, "unpack data")
		}
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 && len(vLog.Topics) > 1 {
		if err := abi.ParseTopicsIntoMap(fields, indexed, vLog.Topics[1:]); err != nil {
			return nil, errors.Wrap(err, "parse topics")
		}
	}
	return fields, nil
}

func buildEvent(contractName, eventName string, vLog types.Log, fields map[string]interface{}) model.ContractEvent {
	ev := model.ContractEvent{
		Type:      model.EventType(eventName),
		Contract:  contractName,
		TxHash:    vLog.TxHash.Hex(),
		BlockNo:   vLog.BlockNumber,
		Timestamp: time.Now().UTC(),
	}
	if id, ok := fields["tokenId"].(*big.Int); ok {
		ev.TokenID = id.String()
	}
	for _, key := range []string{"issuer", "buyer", "seller", "manager"} {
		if a, ok := fields[key].(common.Address); ok {
			ev.Account = a.Hex()
			break
		}
	}
	if amount, ok := fields["amount"].(*big.Int); ok {
		ev.Amount = amount.String()
	}
	// 購入・売却は合計額、発行・出品は単価
	for _, key := range []string{"totalPrice", "price"} {
		if v, ok := fields[key].(*big.Int); ok {
			ev.ValueWei = v.String()
			break
		}
	}
	if ev.Type == model.EventRentalSubmitted {
		ev.ValueWei = ev.Amount
	}
	if paused, ok := fields["paused"].(bool); ok {
		ev.Paused = &paused
	}
	return ev
}
