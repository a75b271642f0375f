package contract

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rwa-onchain/config"
	"rwa-onchain/retry"
)

// Dial はRPC URLを順に試して接続し、チェーンIDを確認する
// 最初に接続とチェーンIDの取得に成功したクライアントを返す
func Dial(ctx context.Context, urls []string, wantChainID int64, logger *zap.Logger) (*ethclient.Client, *big.Int, error) {
	if len(urls) == 0 {
		return nil, nil, errors.New("no rpc url configured")
	}
	var lastErr error
	for _, url := range urls {
		client, chainID, err := dialOne(ctx, url, wantChainID)
		if err != nil {
			logger.Warn("rpc endpoint unavailable", zap.String("url", url), zap.Error(err))
			lastErr = err
			continue
		}
		logger.Info("connected to rpc", zap.String("url", url), zap.String("chain_id", chainID.String()))
		return client, chainID, nil
	}
	return nil, nil, errors.Wrap(lastErr, "all rpc endpoints failed")
}

func dialOne(ctx context.Context, url string, wantChainID int64) (*ethclient.Client, *big.Int, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, url)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dial %s", url)
	}
	chainID, err := client.ChainID(dialCtx)
	if err != nil {
		client.Close()
		return nil, nil, errors.Wrapf(err, "chain id from %s", url)
	}
	if err := CheckChainID(chainID, wantChainID); err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, chainID, nil
}

// CheckChainID は接続先が設定されたネットワークか確認する
func CheckChainID(got *big.Int, want int64) error {
	if got == nil || got.Cmp(big.NewInt(want)) != 0 {
		return errors.Errorf("wrong network: expected chain id %d, got %v", want, got)
	}
	return nil
}

// VerifyDeployment は全てのコントラクトアドレスにコードが存在するか確認する
// RPCの一時的な失敗はリトライする
func (g *ChainGateway) VerifyDeployment(ctx context.Context, policy retry.Policy) error {
	for _, c := range g.contracts() {
		var code []byte
		err := policy.Do(ctx, "getCode "+c.name, func(ctx context.Context) error {
			var err error
			code, err = g.backend.CodeAt(ctx, c.address, nil)
			return err
		})
		if err != nil {
			return errors.Wrapf(err, "get code for %s", c.name)
		}
		if len(code) == 0 {
			return errors.Errorf("%s contract not found at %s", c.name, c.address.Hex())
		}
		g.logger.Info("contract verified", zap.String("contract", c.name), zap.String("address", c.address.Hex()))
	}

	// マーケットプレイスが参照するトークンコントラクトが設定と一致するか
	if tokenAddr, err := g.MarketplaceToken(ctx); err != nil {
		g.logger.Warn("could not read marketplace token contract", zap.Error(err))
	} else if tokenAddr != (common.Address{}) && tokenAddr != g.token.address {
		g.logger.Warn("marketplace token contract differs from configured token",
			zap.String("marketplace_token", tokenAddr.Hex()),
			zap.String(config.ContractToken, g.token.address.Hex()))
	}
	return nil
}
