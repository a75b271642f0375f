package contract

import (
	"context"
	"math/big"

	"rwa-onchain/model"
)

// SplitterContract は収益分配コントラクトとの連携
type SplitterContract interface {
	SubmitRental(ctx context.Context, tokenID, value *big.Int) (*model.TxResult, error)
}

// SubmitRental は収益をvalueとして送金し、保有者に分配させる
func (g *ChainGateway) SubmitRental(ctx context.Context, tokenID, value *big.Int) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.splitter, txOpts{value: value, gasLimit: g.gasLimit}, "submitRental", tokenID)
	return res, err
}
