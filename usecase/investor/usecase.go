package usecase

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rwa-onchain/chainerr"
	"rwa-onchain/config"
	"rwa-onchain/ether"
	"rwa-onchain/gateway/contract"
	"rwa-onchain/model"
	"rwa-onchain/retry"
	"rwa-onchain/usecase/asset"
	marketplaceUsecase "rwa-onchain/usecase/marketplace"
)

// yearlyIncomeRate は想定年間利回り
const yearlyIncomeRate = 0.08

// InvestorUsecase は投資家ダッシュボードのビジネスロジック
type InvestorUsecase interface {
	// Holdings は保有資産を取得
	Holdings(ctx context.Context, holder common.Address) ([]model.Holding, error)

	// Portfolio は保有資産の集計値を取得
	Portfolio(ctx context.Context, holder common.Address) (*model.Portfolio, error)

	// QuoteSell は売却の受取額と手数料を計算
	QuoteSell(ctx context.Context, tokenID *big.Int, qty int64) (*model.Quote, error)

	// Sell はsellAssetを送信
	Sell(ctx context.Context, tokenID *big.Int, qty int64) (*model.TxResult, *model.Quote, error)
}

// Deps は投資家ダッシュボードが使うゲートウェイ
type Deps struct {
	Market contract.MarketplaceContract
	Tokens contract.TokenContract
	Assets *asset.Enricher
	Signer common.Address
}

type investorUsecase struct {
	market     contract.MarketplaceContract
	tokens     contract.TokenContract
	assets     *asset.Enricher
	signer     common.Address
	retry      retry.Policy
	sellFeeBps int64
	logger     *zap.Logger
}

func NewInvestorUsecase(deps Deps, cfg *config.Config, logger *zap.Logger) *investorUsecase {
	logger = logger.Named("investor")
	return &investorUsecase{
		market:     deps.Market,
		tokens:     deps.Tokens,
		assets:     deps.Assets,
		signer:     deps.Signer,
		retry:      retry.Policy{Attempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay, Logger: logger},
		sellFeeBps: cfg.Fees.SellFeeBps,
		logger:     logger,
	}
}

// listingIndex はgetAllListingsから作ったトークンごとの価格と発行者
type listingIndex struct {
	prices  map[string]*big.Int
	issuers map[string]common.Address
}

func (uc *investorUsecase) listingIndex(ctx context.Context) listingIndex {
	idx := listingIndex{prices: map[string]*big.Int{}, issuers: map[string]common.Address{}}
	var arr *model.ListingArrays
	err := uc.retry.Do(ctx, "getAllListings", func(ctx context.Context) error {
		var err error
		arr, err = uc.market.AllListings(ctx)
		return err
	})
	if err != nil {
		uc.logger.Warn("listings unavailable, holdings priced at zero", zap.Error(err))
		return idx
	}
	for i, id := range arr.TokenIDs {
		key := id.String()
		if i < len(arr.Prices) {
			idx.prices[key] = arr.Prices[i]
		}
		if i < len(arr.Issuers) {
			idx.issuers[key] = arr.Issuers[i]
		}
	}
	return idx
}

// Holdings はgetMyAssetsの結果に出品価格とメタデータを付ける
// 残高0と重複したトークンは除く
func (uc *investorUsecase) Holdings(ctx context.Context, holder common.Address) ([]model.Holding, error) {
	var ids, amounts []*big.Int
	err := uc.retry.Do(ctx, "getMyAssets", func(ctx context.Context) error {
		var err error
		ids, amounts, err = uc.market.MyAssets(ctx, holder)
		return err
	})
	if err != nil {
		return nil, err
	}
	idx := uc.listingIndex(ctx)

	seen := make(map[string]struct{}, len(ids))
	holdings := make([]model.Holding, 0, len(ids))
	for i, id := range ids {
		if i >= len(amounts) {
			break
		}
		key := id.String()
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		row := model.RawListing{TokenID: id, Issuer: holder, Amount: amounts[i], Price: new(big.Int)}
		if p, ok := idx.prices[key]; ok && p != nil {
			row.Price = p
		}
		if issuer, ok := idx.issuers[key]; ok && issuer != (common.Address{}) {
			row.Issuer = issuer
		}

		l, err := uc.assets.Enrich(ctx, row, asset.TypeRealWorldAsset)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			uc.logger.Warn("skipping holding", zap.String("token_id", key), zap.Error(err))
			continue
		}
		if l.Metadata == nil {
			l.Name = fmt.Sprintf("Asset #%s", key)
			l.Description = fmt.Sprintf("A tokenized asset with ID %s", key)
		}
		holdings = append(holdings, model.Holding{Listing: l})
	}
	uc.logger.Info("holdings loaded", zap.String("holder", holder.Hex()), zap.Int("count", len(holdings)))
	return holdings, nil
}

// Portfolio は保有資産から評価額と想定年間収益を計算する
func (uc *investorUsecase) Portfolio(ctx context.Context, holder common.Address) (*model.Portfolio, error) {
	holdings, err := uc.Holdings(ctx, holder)
	if err != nil {
		return nil, err
	}
	return Summarize(holdings), nil
}

// Summarize は保有資産の評価額 (Σ 単価×数量) と年間収益 (8%) を集計する
func Summarize(holdings []model.Holding) *model.Portfolio {
	p := &model.Portfolio{Holdings: holdings, TotalAssets: len(holdings)}
	for _, h := range holdings {
		wei, ok := new(big.Int).SetString(h.PriceWei, 10)
		if !ok {
			continue
		}
		p.CurrentValue += ether.ToFloat(wei) * float64(h.Amount)
		if wei.Sign() > 0 {
			p.ActiveInvestments++
		}
	}
	p.TotalInvestment = p.CurrentValue
	p.YearlyIncome = p.CurrentValue * yearlyIncomeRate
	return p
}

// sellTerms は売却対象の残高と単価を取得する
func (uc *investorUsecase) sellTerms(ctx context.Context, tokenID *big.Int) (balance int64, unitPrice *big.Int, err error) {
	bal, err := uc.tokens.BalanceOf(ctx, uc.signer, tokenID)
	if err != nil {
		return 0, nil, err
	}
	if bal.IsInt64() {
		balance = bal.Int64()
	}

	idx := uc.listingIndex(ctx)
	if p, ok := idx.prices[tokenID.String()]; ok && p != nil && p.Sign() > 0 {
		return balance, p, nil
	}
	p, err := uc.tokens.TokenPrice(ctx, tokenID)
	if err != nil {
		return 0, nil, err
	}
	return balance, p, nil
}

// QuoteSell は数量が[1, 残高]に収まるか確認して見積もる
func (uc *investorUsecase) QuoteSell(ctx context.Context, tokenID *big.Int, qty int64) (*model.Quote, error) {
	balance, unitPrice, err := uc.sellTerms(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if qty < 1 || qty > balance {
		return nil, chainerr.Validationf("Amount must be between 1 and %d", balance)
	}
	q := marketplaceUsecase.QuoteSell(unitPrice, qty, uc.sellFeeBps)
	q.TokenID = tokenID.String()
	return &q, nil
}

// Sell は手数料をvalueとしてsellAssetを送信
func (uc *investorUsecase) Sell(ctx context.Context, tokenID *big.Int, qty int64) (*model.TxResult, *model.Quote, error) {
	q, err := uc.QuoteSell(ctx, tokenID, qty)
	if err != nil {
		return nil, nil, chainerr.Wrap(chainerr.OpSell, err)
	}
	res, err := uc.market.SellAsset(ctx, tokenID, big.NewInt(qty), q.Fee)
	if err != nil {
		return res, q, chainerr.Wrap(chainerr.OpSell, err)
	}
	uc.logger.Info("asset sold",
		zap.String("token_id", q.TokenID),
		zap.Int64("quantity", qty),
		zap.String("fee_wei", q.Fee.String()),
		zap.String("tx", res.TxHash))
	return res, q, nil
}

var _ InvestorUsecase = (*investorUsecase)(nil)
