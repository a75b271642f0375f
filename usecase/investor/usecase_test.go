package usecase

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rwa-onchain/chainerr"
	"rwa-onchain/config"
	"rwa-onchain/ether"
	"rwa-onchain/gateway/contract"
	"rwa-onchain/gateway/ipfs"
	"rwa-onchain/model"
	"rwa-onchain/usecase/asset"
)

type fakeMarket struct {
	contract.MarketplaceContract
	arrays    *model.ListingArrays
	listErr   error
	ids       []*big.Int
	amounts   []*big.Int
	holder    common.Address
	soldFee   *big.Int
	soldQty   *big.Int
	sellError error
}

func (f *fakeMarket) AllListings(context.Context) (*model.ListingArrays, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.arrays, nil
}

func (f *fakeMarket) MyAssets(_ context.Context, holder common.Address) ([]*big.Int, []*big.Int, error) {
	f.holder = holder
	return f.ids, f.amounts, nil
}

func (f *fakeMarket) SellAsset(_ context.Context, _, amount, fee *big.Int) (*model.TxResult, error) {
	if f.sellError != nil {
		return nil, f.sellError
	}
	f.soldQty, f.soldFee = amount, fee
	return &model.TxResult{TxHash: "0xsell", Success: true}, nil
}

type fakeTokens struct {
	contract.TokenContract
	uris     map[int64]string
	balances map[int64]int64
	prices   map[int64]*big.Int
}

func (f *fakeTokens) TokenMetadataURI(_ context.Context, id *big.Int) (string, error) {
	if uri, ok := f.uris[id.Int64()]; ok {
		return uri, nil
	}
	return "", errors.New("execution reverted")
}

func (f *fakeTokens) BalanceOf(_ context.Context, _ common.Address, id *big.Int) (*big.Int, error) {
	return big.NewInt(f.balances[id.Int64()]), nil
}

func (f *fakeTokens) TokenPrice(_ context.Context, id *big.Int) (*big.Int, error) {
	if p, ok := f.prices[id.Int64()]; ok {
		return p, nil
	}
	return nil, errors.New("execution reverted")
}

type fakeIPFS struct {
	ipfs.Gateway
	docs map[string]*model.AssetMetadata
}

func (f *fakeIPFS) FetchMetadata(_ context.Context, uri string) (*model.AssetMetadata, error) {
	if m, ok := f.docs[uri]; ok {
		return m, nil
	}
	return nil, errors.New("status 404")
}

var (
	holder  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	issuerA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func newTestUsecase(t *testing.T, market *fakeMarket, tokens *fakeTokens) *investorUsecase {
	t.Helper()
	cfg := config.Default()
	cfg.Retry.Delay = time.Millisecond
	logger := zaptest.NewLogger(t)
	gw := &fakeIPFS{docs: map[string]*model.AssetMetadata{
		"ipfs://villa": {Name: "Villa", Attributes: []model.Attribute{{TraitType: model.TraitAssetType, Value: "Real Estate"}}},
	}}
	return NewInvestorUsecase(Deps{
		Market: market,
		Tokens: tokens,
		Assets: asset.NewEnricher(tokens, gw, 2, logger),
		Signer: holder,
	}, cfg, logger)
}

func bigs(n ...int64) []*big.Int {
	out := make([]*big.Int, len(n))
	for i, v := range n {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestHoldings(t *testing.T) {
	market := &fakeMarket{
		arrays: &model.ListingArrays{
			TokenIDs: bigs(1, 2),
			Issuers:  []common.Address{issuerA},
			Amounts:  bigs(100, 50),
			Prices:   []*big.Int{ether.FromUint(2), ether.FromUint(1)},
		},
		ids:     bigs(1, 2, 1, 3),
		amounts: bigs(4, 0, 4, 2),
	}
	tokens := &fakeTokens{uris: map[int64]string{1: "ipfs://villa"}}
	uc := newTestUsecase(t, market, tokens)

	got, err := uc.Holdings(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, holder, market.holder)
	require.Len(t, got, 2)

	villa, unlisted := got[0], got[1]
	assert.Equal(t, "1", villa.TokenID)
	assert.Equal(t, "Villa", villa.Name)
	assert.Equal(t, "Real Estate", villa.AssetType)
	assert.Equal(t, issuerA.Hex(), villa.Seller)
	assert.Equal(t, int64(4), villa.Amount)

	assert.Equal(t, "3", unlisted.TokenID)
	assert.Equal(t, "Asset #3", unlisted.Name)
	assert.Equal(t, "A tokenized asset with ID 3", unlisted.Description)
	assert.Equal(t, asset.TypeRealWorldAsset, unlisted.AssetType)
	assert.Equal(t, holder.Hex(), unlisted.Seller)
	assert.Equal(t, "0", unlisted.PriceWei)
}

func TestPortfolio(t *testing.T) {
	market := &fakeMarket{
		arrays: &model.ListingArrays{
			TokenIDs: bigs(1),
			Issuers:  []common.Address{issuerA},
			Amounts:  bigs(100),
			Prices:   []*big.Int{ether.FromUint(2)},
		},
		ids:     bigs(1, 3),
		amounts: bigs(5, 1),
	}
	uc := newTestUsecase(t, market, &fakeTokens{})

	p, err := uc.Portfolio(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalAssets)
	assert.Equal(t, 1, p.ActiveInvestments)
	assert.InDelta(t, 10.0, p.CurrentValue, 1e-9)
	assert.InDelta(t, 10.0, p.TotalInvestment, 1e-9)
	assert.InDelta(t, 0.8, p.YearlyIncome, 1e-9)
}

func TestHoldingsWithoutListings(t *testing.T) {
	market := &fakeMarket{listErr: errors.New("execution reverted"), ids: bigs(7), amounts: bigs(1)}
	uc := newTestUsecase(t, market, &fakeTokens{})

	got, err := uc.Holdings(context.Background(), holder)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0", got[0].PriceWei)
}

func TestSell(t *testing.T) {
	market := &fakeMarket{
		arrays: &model.ListingArrays{
			TokenIDs: bigs(1),
			Issuers:  []common.Address{issuerA},
			Amounts:  bigs(100),
			Prices:   bigs(1000),
		},
	}
	tokens := &fakeTokens{balances: map[int64]int64{1: 5, 2: 3}, prices: map[int64]*big.Int{2: big.NewInt(400)}}
	uc := newTestUsecase(t, market, tokens)

	t.Run("amount above balance", func(t *testing.T) {
		_, _, err := uc.Sell(context.Background(), big.NewInt(1), 6)
		assert.Equal(t, chainerr.KindValidation, chainerr.KindOf(err))
		assert.EqualError(t, err, "Amount must be between 1 and 5")
	})

	t.Run("fee is paid as value", func(t *testing.T) {
		res, q, err := uc.Sell(context.Background(), big.NewInt(1), 5)
		require.NoError(t, err)
		assert.Equal(t, "0xsell", res.TxHash)
		assert.Equal(t, "50", market.soldFee.String())
		assert.Equal(t, "5", market.soldQty.String())
		assert.Equal(t, "4950", q.Net.String())
	})

	t.Run("unlisted token uses token price", func(t *testing.T) {
		q, err := uc.QuoteSell(context.Background(), big.NewInt(2), 3)
		require.NoError(t, err)
		assert.Equal(t, "1200", q.Subtotal.String())
		assert.Equal(t, "12", q.Fee.String())
	})

	t.Run("contract error message", func(t *testing.T) {
		market.sellError = errors.New("execution reverted: Insufficient marketplace funds")
		defer func() { market.sellError = nil }()
		_, _, err := uc.Sell(context.Background(), big.NewInt(1), 1)
		assert.EqualError(t, err, "Marketplace has insufficient funds to buy back this asset")
	})
}
