package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rwa-onchain/model"
)

// TokenContract はERC-1155トークンコアとの連携
type TokenContract interface {
	// TokenMetadataURI はtokenMetadataを返し、空または失敗ならuriにフォールバックする
	TokenMetadataURI(ctx context.Context, tokenID *big.Int) (string, error)
	TokenPrice(ctx context.Context, tokenID *big.Int) (*big.Int, error)
	TokenIssuer(ctx context.Context, tokenID *big.Int) (common.Address, error)
	BalanceOf(ctx context.Context, account common.Address, tokenID *big.Int) (*big.Int, error)
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
	SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (*model.TxResult, error)
}

func (g *ChainGateway) TokenMetadataURI(ctx context.Context, tokenID *big.Int) (string, error) {
	out, err := g.call(ctx, g.token, nil, "tokenMetadata", tokenID)
	if err == nil && toString(out[0]) != "" {
		return toString(out[0]), nil
	}
	if err != nil {
		g.logger.Debug("tokenMetadata failed, trying uri", zap.String("token_id", tokenID.String()), zap.Error(err))
	}
	out, uriErr := g.call(ctx, g.token, nil, "uri", tokenID)
	if uriErr != nil {
		if err != nil {
			return "", err
		}
		return "", uriErr
	}
	return toString(out[0]), nil
}

func (g *ChainGateway) TokenPrice(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	out, err := g.call(ctx, g.token, nil, "tokenPrice", tokenID)
	if err != nil {
		return nil, err
	}
	return toBig(out[0]), nil
}

func (g *ChainGateway) TokenIssuer(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	out, err := g.call(ctx, g.token, nil, "tokenIssuer", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return toAddress(out[0]), nil
}

func (g *ChainGateway) BalanceOf(ctx context.Context, account common.Address, tokenID *big.Int) (*big.Int, error) {
	out, err := g.call(ctx, g.token, nil, "balanceOf", account, tokenID)
	if err != nil {
		return nil, err
	}
	return toBig(out[0]), nil
}

func (g *ChainGateway) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	out, err := g.call(ctx, g.token, nil, "isApprovedForAll", owner, operator)
	if err != nil {
		return false, err
	}
	return toBool(out[0]), nil
}

// SetApprovalForAll はoperator (通常はマーケットプレイス) に全トークンの移転を許可する
func (g *ChainGateway) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.token, txOpts{}, "setApprovalForAll", operator, approved)
	return res, err
}
