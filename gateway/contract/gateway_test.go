package contract

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rwa-onchain/chainerr"
	"rwa-onchain/config"
	"rwa-onchain/model"
)

// fakeBackend はセレクタごとに固定の戻り値を返すチェーンクライアント
type fakeBackend struct {
	Backend

	mu        sync.Mutex
	responses map[string][]byte
	calls     []ethereum.CallMsg
	sent      []*types.Transaction

	receiptStatus uint64
	receiptLogs   []*types.Log

	block     uint64
	logs      []types.Log
	lastQuery ethereum.FilterQuery

	txByHash  *types.Transaction
	txPending bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		responses:     make(map[string][]byte),
		receiptStatus: types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) respond(t *testing.T, a abi.ABI, method string, values ...interface{}) {
	t.Helper()
	m, ok := a.Methods[method]
	require.True(t, ok, "unknown method %s", method)
	out, err := m.Outputs.Pack(values...)
	require.NoError(t, err)
	f.responses[string(m.ID)] = out
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	return f.responses[string(msg.Data[:4])], nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1e9), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{
		TxHash:      hash,
		Status:      f.receiptStatus,
		GasUsed:     21000,
		BlockNumber: big.NewInt(42),
		Logs:        f.receiptLogs,
	}, nil
}

func (f *fakeBackend) TransactionByHash(context.Context, common.Hash) (*types.Transaction, bool, error) {
	if f.txByHash == nil {
		return nil, false, ethereum.NotFound
	}
	return f.txByHash, f.txPending, nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	return f.block, nil
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.lastQuery = q
	return f.logs, nil
}

func newTestGateway(t *testing.T, withKey bool) (*ChainGateway, *fakeBackend) {
	t.Helper()
	cfg := config.Default()
	if withKey {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		cfg.Signer.PrivateKey = hex.EncodeToString(crypto.FromECDSA(key))
	}
	f := newFakeBackend()
	g, err := NewChainGateway(f, big.NewInt(cfg.Network.ChainID), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	g.receiptPoll = time.Millisecond
	return g, f
}

func TestNewChainGateway_InvalidAddress(t *testing.T) {
	cfg := config.Default()
	cfg.Contracts[config.ContractMarketplace] = "0x1234"
	_, err := NewChainGateway(newFakeBackend(), big.NewInt(1), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestChainGateway_ReadOnlyRejectsWrites(t *testing.T) {
	g, f := newTestGateway(t, false)
	assert.Equal(t, common.Address{}, g.SignerAddress())

	_, err := g.PauseMarketplace(context.Background())
	require.Error(t, err)
	assert.Equal(t, chainerr.KindNotAuthorized, chainerr.KindOf(err))
	assert.Empty(t, f.sent)
}

func TestChainGateway_Issuers(t *testing.T) {
	g, f := newTestGateway(t, false)
	want := []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")}
	f.respond(t, g.admin.abi, "getAllIssuers", want)

	got, err := g.Issuers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, g.admin.address, *f.calls[0].To)
}

func TestChainGateway_EmptyResult(t *testing.T) {
	g, _ := newTestGateway(t, false)
	_, err := g.Managers(context.Background())
	assert.ErrorContains(t, err, "empty result")
}

func TestChainGateway_AllListings(t *testing.T) {
	t.Run("four arrays", func(t *testing.T) {
		g, f := newTestGateway(t, false)
		ids := []*big.Int{big.NewInt(1), big.NewInt(2)}
		issuers := []common.Address{common.HexToAddress("0xaa")}
		f.respond(t, g.marketplace.abi, "getAllListings", ids, issuers, []*big.Int{big.NewInt(10)}, []*big.Int{big.NewInt(5)})

		got, err := g.AllListings(context.Background())
		require.NoError(t, err)
		assert.Len(t, got.TokenIDs, 2)
		assert.Equal(t, issuers, got.Issuers)
		assert.Len(t, got.Amounts, 1)
		assert.Len(t, got.Prices, 1)
	})

	t.Run("token ids only", func(t *testing.T) {
		g, f := newTestGateway(t, false)
		out, err := tokenIDsOnly.Pack([]*big.Int{big.NewInt(3), big.NewInt(4), big.NewInt(5)})
		require.NoError(t, err)
		f.responses[string(g.marketplace.abi.Methods["getAllListings"].ID)] = out

		got, err := g.AllListings(context.Background())
		require.NoError(t, err)
		assert.Len(t, got.TokenIDs, 3)
		assert.Empty(t, got.Issuers)
	})
}

func TestChainGateway_MyAssetsUsesHolderAsSender(t *testing.T) {
	g, f := newTestGateway(t, false)
	holder := common.HexToAddress("0xbeef")
	f.respond(t, g.marketplace.abi, "getMyAssets", []*big.Int{big.NewInt(1)}, []*big.Int{big.NewInt(7)})

	ids, amounts, err := g.MyAssets(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, "1", ids[0].String())
	assert.Equal(t, "7", amounts[0].String())
	assert.Equal(t, holder, f.calls[0].From)
}

func TestChainGateway_TokenMetadataURIFallsBackToURI(t *testing.T) {
	g, f := newTestGateway(t, false)
	f.respond(t, g.token.abi, "tokenMetadata", "")
	f.respond(t, g.token.abi, "uri", "ipfs://QmFallback")

	got, err := g.TokenMetadataURI(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmFallback", got)
}

func TestChainGateway_BuyAsset(t *testing.T) {
	g, f := newTestGateway(t, true)
	value := big.NewInt(1010)

	res, err := g.BuyAsset(context.Background(), big.NewInt(1), big.NewInt(2), value)
	require.NoError(t, err)
	require.Len(t, f.sent, 1)

	tx := f.sent[0]
	assert.Equal(t, g.marketplace.address, *tx.To())
	assert.Equal(t, value, tx.Value())
	assert.Equal(t, uint64(120000), tx.Gas())
	assert.True(t, res.Success)
	assert.Equal(t, tx.Hash().Hex(), res.TxHash)
	assert.Equal(t, uint64(42), res.BlockNumber)
	assert.Equal(t, "https://testnet.sonicscan.org/tx/"+res.TxHash, res.ExplorerURL)

	signer := types.LatestSignerForChainID(g.chainID)
	from, err := types.Sender(signer, tx)
	require.NoError(t, err)
	assert.Equal(t, g.SignerAddress(), from)
}

func TestChainGateway_SellAssetUsesFixedGas(t *testing.T) {
	g, f := newTestGateway(t, true)
	_, err := g.SellAsset(context.Background(), big.NewInt(1), big.NewInt(1), big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(500000), f.sent[0].Gas())
	assert.Equal(t, big.NewInt(10), f.sent[0].Value())
}

func TestChainGateway_RevertedReceipt(t *testing.T) {
	g, f := newTestGateway(t, true)
	f.receiptStatus = types.ReceiptStatusFailed

	res, err := g.RemoveListing(context.Background(), big.NewInt(1))
	require.Error(t, err)
	assert.Equal(t, chainerr.KindReverted, chainerr.KindOf(err))
	require.NotNil(t, res)
	assert.False(t, res.Success)
}

func TestChainGateway_CreateTokenFromMintedLog(t *testing.T) {
	g, f := newTestGateway(t, true)
	ev := g.token.abi.Events["TokenMinted"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(100), big.NewInt(5), "ipfs://Qm")
	require.NoError(t, err)
	f.receiptLogs = []*types.Log{{
		Address: g.token.address,
		Topics: []common.Hash{
			ev.ID,
			common.BigToHash(big.NewInt(7)),
			common.BytesToHash(g.SignerAddress().Bytes()),
		},
		Data: data,
	}}

	id, res, err := g.CreateToken(context.Background(), big.NewInt(100), big.NewInt(5), "ipfs://Qm")
	require.NoError(t, err)
	assert.Equal(t, "7", id.String())
	assert.True(t, res.Success)
}

func TestChainGateway_CreateTokenFallsBackToMyTokens(t *testing.T) {
	g, f := newTestGateway(t, true)
	f.respond(t, g.issuer.abi, "getMyTokens", []*big.Int{big.NewInt(3), big.NewInt(9)})

	id, _, err := g.CreateToken(context.Background(), big.NewInt(1), big.NewInt(1), "ipfs://Qm")
	require.NoError(t, err)
	assert.Equal(t, "9", id.String())
}

func TestChainGateway_ParseLog(t *testing.T) {
	g, _ := newTestGateway(t, false)
	ev := g.marketplace.abi.Events["AssetPurchased"]
	buyer := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(2), big.NewInt(2020))
	require.NoError(t, err)

	got, ok := g.parseLog(types.Log{
		Address:     g.marketplace.address,
		Topics:      []common.Hash{ev.ID, common.BigToHash(big.NewInt(5)), common.BytesToHash(buyer.Bytes())},
		Data:        data,
		BlockNumber: 77,
	})
	require.True(t, ok)
	assert.Equal(t, model.EventAssetPurchased, got.Type)
	assert.Equal(t, config.ContractMarketplace, got.Contract)
	assert.Equal(t, "5", got.TokenID)
	assert.Equal(t, buyer.Hex(), got.Account)
	assert.Equal(t, "2", got.Amount)
	assert.Equal(t, "2020", got.ValueWei)
	assert.Equal(t, uint64(77), got.BlockNo)

	_, ok = g.parseLog(types.Log{Address: common.HexToAddress("0x1"), Topics: []common.Hash{ev.ID}})
	assert.False(t, ok)
}

func TestChainGateway_ScanPastEvents(t *testing.T) {
	g, f := newTestGateway(t, false)
	f.block = 5000
	ev := g.admin.abi.Events["MarketplacePauseToggled"]
	data, err := ev.Inputs.NonIndexed().Pack(true)
	require.NoError(t, err)
	f.logs = []types.Log{{Address: g.admin.address, Topics: []common.Hash{ev.ID}, Data: data}}

	events, err := g.ScanPastEvents(context.Background(), 0, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Paused)
	assert.True(t, *events[0].Paused)
	assert.Equal(t, int64(4000), f.lastQuery.FromBlock.Int64())
	assert.Equal(t, int64(5000), f.lastQuery.ToBlock.Int64())
	assert.Len(t, f.lastQuery.Addresses, 5)
}

func TestChainGateway_VerifyTransaction(t *testing.T) {
	g, f := newTestGateway(t, false)

	_, err := g.VerifyTransaction(context.Background(), "0x")
	assert.Equal(t, chainerr.KindValidation, chainerr.KindOf(err))

	hash := "0x" + hex.EncodeToString(common.BigToHash(big.NewInt(99)).Bytes())
	_, err = g.VerifyTransaction(context.Background(), hash)
	assert.Equal(t, chainerr.KindNotFound, chainerr.KindOf(err))

	to := g.splitter.address
	f.txByHash = types.NewTx(&types.LegacyTx{To: &to, Value: big.NewInt(1), Gas: 21000, GasPrice: big.NewInt(1)})
	got, err := g.VerifyTransaction(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, "success", got.Status)
	assert.True(t, got.IsContractCall)
	assert.Equal(t, config.ContractPaymentSplitter, got.Contract)

	f.txPending = true
	got, err = g.VerifyTransaction(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)
}

func TestCheckChainID(t *testing.T) {
	assert.NoError(t, CheckChainID(big.NewInt(14601), 14601))
	assert.ErrorContains(t, CheckChainID(big.NewInt(1), 14601), "wrong network")
	assert.Error(t, CheckChainID(nil, 14601))
}
