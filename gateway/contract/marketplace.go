package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rwa-onchain/model"
)

// MarketplaceContract はマーケットプレイスコントラクトとの連携
type MarketplaceContract interface {
	AllListings(ctx context.Context) (*model.ListingArrays, error)
	Listing(ctx context.Context, tokenID *big.Int) (*model.OnchainListing, error)
	MarketplaceToken(ctx context.Context) (common.Address, error)
	// MyAssets はholderをmsg.senderとしてgetMyAssetsを呼ぶ
	MyAssets(ctx context.Context, holder common.Address) ([]*big.Int, []*big.Int, error)
	UserBalance(ctx context.Context, user common.Address, tokenID *big.Int) (*big.Int, error)
	TotalTokensListed(ctx context.Context, tokenID *big.Int) (*big.Int, error)

	ListAsset(ctx context.Context, tokenID, amount *big.Int) (*model.TxResult, error)
	BuyAsset(ctx context.Context, tokenID, amount, value *big.Int) (*model.TxResult, error)
	SellAsset(ctx context.Context, tokenID, amount, fee *big.Int) (*model.TxResult, error)
	RemoveListing(ctx context.Context, tokenID *big.Int) (*model.TxResult, error)
}

// tokenIDsOnly は古いマーケットプレイスが返すuint256[]のみの形式
var tokenIDsOnly = func() abi.Arguments {
	t, err := abi.NewType("uint256[]", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}()

// AllListings はgetAllListingsを呼ぶ
// 4配列の形式で読めない場合はtokenIdsのみの形式として読み直す (他の配列は空になる)
func (g *ChainGateway) AllListings(ctx context.Context) (*model.ListingArrays, error) {
	c := g.marketplace
	data, err := c.abi.Pack("getAllListings")
	if err != nil {
		return nil, errors.Wrap(err, "pack getAllListings")
	}
	res, err := g.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "call getAllListings")
	}
	if len(res) == 0 {
		return nil, errors.Errorf("call getAllListings: empty result (no contract code at %s?)", c.address.Hex())
	}

	out, err := c.abi.Unpack("getAllListings", res)
	if err == nil && len(out) == 4 {
		return &model.ListingArrays{
			TokenIDs: toBigs(out[0]),
			Issuers:  toAddresses(out[1]),
			Amounts:  toBigs(out[2]),
			Prices:   toBigs(out[3]),
		}, nil
	}

	if err == nil {
		err = errors.Errorf("unexpected output length %d", len(out))
	}
	ids, idsErr := tokenIDsOnly.Unpack(res)
	if idsErr != nil || len(ids) == 0 {
		return nil, errors.Wrap(err, "unpack getAllListings")
	}
	g.logger.Debug("getAllListings returned token ids only", zap.Int("count", len(toBigs(ids[0]))))
	return &model.ListingArrays{TokenIDs: toBigs(ids[0])}, nil
}

// Listing はlistings(tokenId)の1件を取得
func (g *ChainGateway) Listing(ctx context.Context, tokenID *big.Int) (*model.OnchainListing, error) {
	out, err := g.call(ctx, g.marketplace, nil, "listings", tokenID)
	if err != nil {
		return nil, err
	}
	if len(out) < 5 {
		return nil, errors.Errorf("listings(%s): unexpected output length %d", tokenID, len(out))
	}
	return &model.OnchainListing{
		Issuer:   toAddress(out[0]),
		TokenID:  toBig(out[1]),
		Amount:   toBig(out[2]),
		Price:    toBig(out[3]),
		IsActive: toBool(out[4]),
	}, nil
}

// MarketplaceToken はマーケットプレイスが参照するトークンコントラクトのアドレス
func (g *ChainGateway) MarketplaceToken(ctx context.Context) (common.Address, error) {
	out, err := g.call(ctx, g.marketplace, nil, "tokenContract")
	if err != nil {
		return common.Address{}, err
	}
	return toAddress(out[0]), nil
}

func (g *ChainGateway) MyAssets(ctx context.Context, holder common.Address) ([]*big.Int, []*big.Int, error) {
	out, err := g.call(ctx, g.marketplace, &holder, "getMyAssets")
	if err != nil {
		return nil, nil, err
	}
	return toBigs(out[0]), toBigs(out[1]), nil
}

func (g *ChainGateway) UserBalance(ctx context.Context, user common.Address, tokenID *big.Int) (*big.Int, error) {
	out, err := g.call(ctx, g.marketplace, nil, "getUserBalance", user, tokenID)
	if err != nil {
		return nil, err
	}
	return toBig(out[0]), nil
}

func (g *ChainGateway) TotalTokensListed(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	out, err := g.call(ctx, g.marketplace, nil, "totalTokensListed", tokenID)
	if err != nil {
		return nil, err
	}
	return toBig(out[0]), nil
}

// ListAsset は発行済みトークンをマーケットプレイスに出品する
func (g *ChainGateway) ListAsset(ctx context.Context, tokenID, amount *big.Int) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.marketplace, txOpts{}, "listAsset", tokenID, amount)
	return res, err
}

// BuyAsset はvalue (小計+手数料) を送金して購入する
func (g *ChainGateway) BuyAsset(ctx context.Context, tokenID, amount, value *big.Int) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.marketplace, txOpts{value: value}, "buyAsset", tokenID, amount)
	return res, err
}

// SellAsset は手数料をvalueとして送金して売却する
// ガスは見積もらず固定上限を使う
func (g *ChainGateway) SellAsset(ctx context.Context, tokenID, amount, fee *big.Int) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.marketplace, txOpts{value: fee, gasLimit: g.gasLimit}, "sellAsset", tokenID, amount)
	return res, err
}

func (g *ChainGateway) RemoveListing(ctx context.Context, tokenID *big.Int) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.marketplace, txOpts{}, "removeListing", tokenID)
	return res, err
}
