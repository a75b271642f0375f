package contract

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rwa-onchain/chainerr"
	"rwa-onchain/config"
	"rwa-onchain/model"
)

// Backend はゲートウェイが使うチェーンクライアントのメソッド (*ethclient.Client が満たす)
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	Close()
}

// boundContract はアドレスとABIの組
type boundContract struct {
	name    string
	address common.Address
	abi     abi.ABI
}

// ChainGateway は5つのコントラクトとの連携実装
// 署名鍵が設定されていない場合は読み取り専用
type ChainGateway struct {
	backend  Backend
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	from     common.Address
	gasLimit uint64

	admin       *boundContract
	issuer      *boundContract
	token       *boundContract
	marketplace *boundContract
	splitter    *boundContract

	explorerURL string
	scanBlocks  uint64
	receiptPoll time.Duration
	txMu        sync.Mutex
	logger      *zap.Logger
}

// NewChainGateway は新しいコントラクトゲートウェイを作成
func NewChainGateway(backend Backend, chainID *big.Int, cfg *config.Config, logger *zap.Logger) (*ChainGateway, error) {
	g := &ChainGateway{
		backend:     backend,
		chainID:     chainID,
		gasLimit:    cfg.Signer.GasLimit,
		explorerURL: strings.TrimRight(cfg.Network.BlockExplorer, "/"),
		scanBlocks:  cfg.Events.ScanBlocks,
		receiptPoll: time.Second,
		logger:      logger.Named("contract"),
	}

	bindings := []struct {
		dst  **boundContract
		name string
		abi  string
	}{
		{&g.admin, config.ContractAdmin, AdminABI},
		{&g.issuer, config.ContractIssuer, IssuerABI},
		{&g.token, config.ContractToken, TokenABI},
		{&g.marketplace, config.ContractMarketplace, MarketplaceABI},
		{&g.splitter, config.ContractPaymentSplitter, PaymentSplitterABI},
	}
	for _, s := range bindings {
		parsed, err := abi.JSON(strings.NewReader(s.abi))
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s abi", s.name)
		}
		addr := cfg.Address(s.name)
		if !common.IsHexAddress(addr) {
			return nil, errors.Errorf("invalid %s contract address %q", s.name, addr)
		}
		*s.dst = &boundContract{name: s.name, address: common.HexToAddress(addr), abi: parsed}
		g.logger.Debug("bound contract", zap.String("contract", s.name), zap.String("address", addr))
	}

	if cfg.Signer.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Signer.PrivateKey, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "parse signer key")
		}
		g.key = key
		g.from = crypto.PubkeyToAddress(key.PublicKey)
		g.logger.Info("signer configured", zap.String("address", g.from.Hex()))
	} else {
		g.logger.Warn("no signer key configured, write operations are disabled")
	}
	return g, nil
}

// SignerAddress は接続中ウォレットのアドレスを返す (未設定ならゼロアドレス)
func (g *ChainGateway) SignerAddress() common.Address {
	return g.from
}

// ContractAddress は名前からコントラクトアドレスを返す
func (g *ChainGateway) ContractAddress(name string) common.Address {
	for _, c := range g.contracts() {
		if c.name == name {
			return c.address
		}
	}
	return common.Address{}
}

func (g *ChainGateway) contracts() []*boundContract {
	return []*boundContract{g.admin, g.issuer, g.token, g.marketplace, g.splitter}
}

// call はviewメソッドを呼び出してデコード済みの戻り値を返す
// fromを指定するとmsg.senderとして扱われる (getMyAssets等)
func (g *ChainGateway) call(ctx context.Context, c *boundContract, from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s.%s", c.name, method)
	}
	msg := ethereum.CallMsg{To: &c.address, Data: data}
	if from != nil {
		msg.From = *from
	}
	res, err := g.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s.%s", c.name, method)
	}
	if len(res) == 0 && len(c.abi.Methods[method].Outputs) > 0 {
		return nil, errors.Errorf("call %s.%s: empty result (no contract code at %s?)", c.name, method, c.address.Hex())
	}
	out, err := c.abi.Unpack(method, res)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s.%s", c.name, method)
	}
	return out, nil
}

// txOpts は書き込みトランザクションのオプション
type txOpts struct {
	value    *big.Int
	gasLimit uint64 // 0ならEstimateGasの結果を使う
}

// transact はトランザクションを署名・送信し、マイニングを待つ
// レシートが失敗ステータスの場合はKindRevertedのエラーを返す
func (g *ChainGateway) transact(ctx context.Context, c *boundContract, opts txOpts, method string, args ...interface{}) (*types.Receipt, *model.TxResult, error) {
	if g.key == nil {
		return nil, nil, chainerr.NotAuthorized("no signer configured: wallet is not connected")
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, nil, chainerr.Validationf("invalid arguments for %s: %v", method, err)
	}
	value := opts.value
	if value == nil {
		value = new(big.Int)
	}

	g.txMu.Lock()
	signed, err := g.signAndSend(ctx, c, data, value, opts.gasLimit)
	g.txMu.Unlock()
	if err != nil {
		g.logger.Warn("transaction not sent",
			zap.String("contract", c.name),
			zap.String("method", method),
			zap.Error(err))
		return nil, nil, err
	}

	g.logger.Info("transaction sent",
		zap.String("contract", c.name),
		zap.String("method", method),
		zap.String("tx", signed.Hash().Hex()),
		zap.String("value_wei", value.String()))

	receipt, err := g.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, nil, errors.Wrapf(err, "wait for %s", signed.Hash().Hex())
	}
	result := g.txResult(receipt)
	if !result.Success {
		g.logger.Warn("transaction reverted", zap.String("method", method), zap.String("tx", result.TxHash))
		return receipt, result, chainerr.Reverted(result.TxHash)
	}
	g.logger.Info("transaction mined",
		zap.String("method", method),
		zap.String("tx", result.TxHash),
		zap.Uint64("block", result.BlockNumber),
		zap.Uint64("gas_used", result.GasUsed))
	return receipt, result, nil
}

func (g *ChainGateway) signAndSend(ctx context.Context, c *boundContract, data []byte, value *big.Int, gasLimit uint64) (*types.Transaction, error) {
	nonce, err := g.backend.PendingNonceAt(ctx, g.from)
	if err != nil {
		return nil, errors.Wrap(err, "get nonce")
	}
	gasPrice, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "suggest gas price")
	}
	if gasLimit == 0 {
		est, err := g.backend.EstimateGas(ctx, ethereum.CallMsg{From: g.from, To: &c.address, Value: value, Data: data})
		if err != nil {
			return nil, errors.Wrap(err, "estimate gas")
		}
		// 見積もりに20%の余裕を持たせる
		gasLimit = est * 12 / 10
		if g.gasLimit > 0 && gasLimit > g.gasLimit*4 {
			gasLimit = g.gasLimit * 4
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &c.address,
		Value:    value,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(g.chainID), g.key)
	if err != nil {
		return nil, errors.Wrap(err, "sign transaction")
	}
	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		return nil, errors.Wrap(err, "send transaction")
	}
	return signed, nil
}

// waitMined はレシートが取得できるまでポーリングする
func (g *ChainGateway) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(g.receiptPoll)
	defer ticker.Stop()
	for {
		receipt, err := g.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			g.logger.Debug("receipt not available yet", zap.String("tx", hash.Hex()), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *ChainGateway) txResult(receipt *types.Receipt) *model.TxResult {
	hash := receipt.TxHash.Hex()
	res := &model.TxResult{
		TxHash:      hash,
		GasUsed:     receipt.GasUsed,
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		ExplorerURL: g.explorerURL + "/tx/" + hash,
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return res
}

// VerifyTransaction はトランザクションを検証
func (g *ChainGateway) VerifyTransaction(ctx context.Context, txHash string) (*model.TxVerification, error) {
	txHashObj := common.HexToHash(txHash)
	if txHashObj.Big().Sign() == 0 {
		return nil, chainerr.Validationf("invalid transaction hash format")
	}

	tx, isPending, err := g.backend.TransactionByHash(ctx, txHashObj)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, chainerr.NotFound("transaction not found")
		}
		return nil, errors.Wrap(err, "get transaction")
	}
	if isPending {
		return &model.TxVerification{TxHash: txHash, Status: "pending"}, nil
	}

	receipt, err := g.backend.TransactionReceipt(ctx, txHashObj)
	if err != nil {
		return nil, errors.Wrap(err, "get transaction receipt")
	}

	verification := &model.TxVerification{
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		Status:      "failed",
	}
	if verification.Success {
		verification.Status = "success"
	}

	// いずれかのコントラクトへの呼び出しか
	if to := tx.To(); to != nil {
		for _, c := range g.contracts() {
			if *to == c.address {
				verification.IsContractCall = true
				verification.Contract = c.name
				break
			}
		}
	}
	return verification, nil
}

func toBig(v interface{}) *big.Int {
	if b, ok := v.(*big.Int); ok && b != nil {
		return b
	}
	return new(big.Int)
}

func toBigs(v interface{}) []*big.Int {
	if b, ok := v.([]*big.Int); ok {
		return b
	}
	return nil
}

func toAddress(v interface{}) common.Address {
	if a, ok := v.(common.Address); ok {
		return a
	}
	return common.Address{}
}

func toAddresses(v interface{}) []common.Address {
	if a, ok := v.([]common.Address); ok {
		return a
	}
	return nil
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func toBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

var (
	_ AdminContract       = (*ChainGateway)(nil)
	_ IssuerContract      = (*ChainGateway)(nil)
	_ TokenContract       = (*ChainGateway)(nil)
	_ MarketplaceContract = (*ChainGateway)(nil)
	_ SplitterContract    = (*ChainGateway)(nil)
	_ EventSource         = (*ChainGateway)(nil)
)
