package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rwa-onchain/model"
)

// IssuerContract は発行者コントラクトとの連携
type IssuerContract interface {
	// CreateToken はトークンを発行し、発行されたトークンIDを返す
	CreateToken(ctx context.Context, amount, price *big.Int, metadataURI string) (*big.Int, *model.TxResult, error)
	// MyTokens は接続中ウォレットが発行したトークンID一覧
	MyTokens(ctx context.Context) ([]*big.Int, error)
}

// CreateToken はcreateTokenを送信する
// トークンIDはレシートのTokenMintedイベントから取得し、見つからなければgetMyTokensの末尾を使う
func (g *ChainGateway) CreateToken(ctx context.Context, amount, price *big.Int, metadataURI string) (*big.Int, *model.TxResult, error) {
	receipt, res, err := g.transact(ctx, g.issuer, txOpts{}, "createToken", amount, price, metadataURI)
	if err != nil {
		return nil, res, err
	}

	if id := g.mintedTokenID(receipt); id != nil {
		return id, res, nil
	}

	g.logger.Warn("TokenMinted event not found in receipt, falling back to getMyTokens", zap.String("tx", res.TxHash))
	ids, err := g.MyTokens(ctx)
	if err != nil {
		return nil, res, errors.Wrap(err, "token created but id lookup failed")
	}
	if len(ids) == 0 {
		return nil, res, errors.New("token created but no tokens found for issuer")
	}
	return ids[len(ids)-1], res, nil
}

// mintedTokenID はレシートからTokenMintedのtokenIdを探す
// イベントは発行者コントラクトかトークンコアのどちらかから発行される
func (g *ChainGateway) mintedTokenID(receipt *types.Receipt) *big.Int {
	if receipt == nil {
		return nil
	}
	for _, c := range []*boundContract{g.issuer, g.token} {
		ev, ok := c.abi.Events["TokenMinted"]
		if !ok {
			continue
		}
		for _, l := range receipt.Logs {
			if l.Address != c.address || len(l.Topics) < 2 || l.Topics[0] != ev.ID {
				continue
			}
			return new(big.Int).SetBytes(l.Topics[1].Bytes())
		}
	}
	return nil
}

func (g *ChainGateway) MyTokens(ctx context.Context) ([]*big.Int, error) {
	from := g.from
	out, err := g.call(ctx, g.issuer, &from, "getMyTokens")
	if err != nil {
		return nil, err
	}
	return toBigs(out[0]), nil
}
