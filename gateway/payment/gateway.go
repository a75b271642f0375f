package gateway

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rwa-onchain/chainerr"
	"rwa-onchain/model"
)

// ===============================================
// 1. インターフェース定義
// ===============================================

// PaymentGateway は外部ウォレットで署名された支払いトランザクションを検証する
type PaymentGateway interface {
	// CheckPayment はトランザクションハッシュを受け取り、送金先と金額を検証する
	CheckPayment(ctx context.Context, txHash string, to common.Address, minWei *big.Int) (*model.PaymentCheck, error)
}

// TxReader はトランザクションとレシートの取得 (*ethclient.Client が満たす)
type TxReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ===============================================
// 2. 実装: EthGateway
// ===============================================

type EthGateway struct {
	client TxReader
	logger *zap.Logger
}

// NewEthGateway は TxReader を受け取る
func NewEthGateway(client TxReader, logger *zap.Logger) *EthGateway {
	return &EthGateway{
		client: client,
		logger: logger.Named("payment"),
	}
}

// CheckPayment は送金トランザクションを検証する
// pendingの場合はエラーではなくStatusPendingを返す
func (g *EthGateway) CheckPayment(ctx context.Context, txHash string, to common.Address, minWei *big.Int) (*model.PaymentCheck, error) {
	// 1. TxHashを検証可能な型に変換
	hash := common.HexToHash(txHash)
	if hash.Big().Sign() == 0 {
		return nil, chainerr.Validationf("invalid transaction hash format")
	}
	check := &model.PaymentCheck{TxHash: hash.Hex(), Status: model.StatusError}

	// 2. トランザクションが存在するか、Pendingでないかを確認
	tx, isPending, err := g.client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, chainerr.NotFound("transaction not found")
		}
		return nil, errors.Wrapf(err, "get transaction %s", txHash)
	}
	check.ValueWei = tx.Value().String()
	if tx.To() != nil {
		check.To = tx.To().Hex()
	}
	if isPending {
		check.Status = model.StatusPending
		return check, nil
	}

	// 3. レシートを取得し、Txが成功したかを確認
	receipt, err := g.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, errors.Wrapf(err, "get receipt %s", txHash)
	}
	if receipt.BlockNumber != nil {
		check.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		check.Reason = "transaction failed on chain (reverted)"
		return check, nil
	}

	// 4. 送金先アドレス (To Address) の検証
	if tx.To() == nil || *tx.To() != to {
		check.Reason = "transaction sent to wrong recipient address"
		return check, nil
	}

	// 5. 送金額 (Value) の検証 - 期待額以上であればOK
	if minWei != nil && tx.Value().Cmp(minWei) < 0 {
		g.logger.Warn("insufficient payment",
			zap.String("tx", txHash),
			zap.String("got_wei", tx.Value().String()),
			zap.String("want_wei", minWei.String()))
		check.Reason = "insufficient payment amount"
		return check, nil
	}

	check.Status = model.StatusPaid
	g.logger.Info("payment verified", zap.String("tx", txHash), zap.String("value_wei", check.ValueWei), zap.String("to", to.Hex()))
	return check, nil
}

var _ PaymentGateway = (*EthGateway)(nil)
