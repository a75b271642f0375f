package usecase

import (
	"context"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rwa-onchain/chainerr"
	"rwa-onchain/config"
	"rwa-onchain/ether"
	"rwa-onchain/gateway/contract"
	paymentGateway "rwa-onchain/gateway/payment"
	"rwa-onchain/gateway/price"
	"rwa-onchain/model"
	"rwa-onchain/retry"
	"rwa-onchain/usecase/asset"
)

// MarketplaceUsecase はマーケットプレイス閲覧・購入のビジネスロジック
type MarketplaceUsecase interface {
	// Listings は出品一覧を取得。チェーンから取得できない場合はデモデータを返す
	Listings(ctx context.Context) (*model.ListingsResult, error)

	// RawListings はメタデータなしの出品行を取得
	RawListings(ctx context.Context) ([]model.RawListing, error)

	// QuoteBuy は購入の小計・手数料・合計を計算
	QuoteBuy(ctx context.Context, tokenID *big.Int, qty int64) (*model.Quote, error)

	// Buy はbuyAssetを送信
	Buy(ctx context.Context, tokenID *big.Int, qty int64) (*model.TxResult, *model.Quote, error)

	// ConfirmPurchase は外部ウォレットで送信された購入トランザクションを検証
	ConfirmPurchase(ctx context.Context, req PurchaseRequest) (*model.PurchaseConfirmation, error)

	// VerifyTransaction はトランザクションを検証
	VerifyTransaction(ctx context.Context, txHash string) (*model.TxVerification, error)

	// StartEventListener はイベントリスナーを開始
	StartEventListener(ctx context.Context) error

	// Activity は直近のイベントを返す
	Activity(limit int) []model.ContractEvent
}

// TxVerifier はトランザクションの検証
type TxVerifier interface {
	VerifyTransaction(ctx context.Context, txHash string) (*model.TxVerification, error)
}

// PurchaseRequest は購入確認リクエスト
type PurchaseRequest struct {
	TxHash   string
	TokenID  *big.Int
	Quantity int64
	Buyer    string
}

// Deps はマーケットプレイスが使うゲートウェイ
type Deps struct {
	Market   contract.MarketplaceContract
	Tokens   contract.TokenContract
	Events   contract.EventSource
	Verifier TxVerifier
	Payments paymentGateway.PaymentGateway
	Assets   *asset.Enricher
	Prices   price.Gateway

	MarketplaceAddress common.Address
}

type marketplaceUsecase struct {
	market   contract.MarketplaceContract
	tokens   contract.TokenContract
	events   contract.EventSource
	verifier TxVerifier
	payments paymentGateway.PaymentGateway
	assets   *asset.Enricher
	prices   price.Gateway

	marketplaceAddr common.Address
	retry           retry.Policy
	buyFeeBps       int64
	symbol          string

	feed         *ActivityFeed
	webhookURL   string
	pollInterval time.Duration
	httpClient   *http.Client
	wg           sync.WaitGroup

	logger *zap.Logger
}

func NewMarketplaceUsecase(deps Deps, cfg *config.Config, logger *zap.Logger) *marketplaceUsecase {
	logger = logger.Named("marketplace")
	return &marketplaceUsecase{
		market:          deps.Market,
		tokens:          deps.Tokens,
		events:          deps.Events,
		verifier:        deps.Verifier,
		payments:        deps.Payments,
		assets:          deps.Assets,
		prices:          deps.Prices,
		marketplaceAddr: deps.MarketplaceAddress,
		retry:           retry.Policy{Attempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay, Logger: logger},
		buyFeeBps:       cfg.Fees.BuyFeeBps,
		symbol:          cfg.Network.Currency,
		feed:            NewActivityFeed(cfg.Events.FeedSize),
		webhookURL:      cfg.Events.WebhookURL,
		pollInterval:    cfg.Events.PollInterval,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		logger:          logger,
	}
}

// Listings は出品一覧を取得し、メタデータとUSD表示を付与する
// 取得に失敗した場合はデモデータとユーザー向けメッセージを返す
func (uc *marketplaceUsecase) Listings(ctx context.Context) (*model.ListingsResult, error) {
	rows, err := uc.RawListings(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		wrapped := chainerr.Wrap(chainerr.OpListings, err)
		uc.logger.Warn("loading demo listings", zap.Error(err))
		demo := demoListings()
		uc.labelPrices(ctx, demo)
		return &model.ListingsResult{Listings: demo, Demo: true, Message: wrapped.Error()}, nil
	}

	listings, err := uc.assets.EnrichAll(ctx, rows, asset.TypeUnknown)
	if err != nil {
		return nil, err
	}
	uc.labelPrices(ctx, listings)
	uc.logger.Info("listings loaded", zap.Int("rows", len(rows)), zap.Int("listings", len(listings)))
	return &model.ListingsResult{Listings: listings}, nil
}

// RawListings はgetAllListingsをリトライ付きで呼び、欠けた行を補う
func (uc *marketplaceUsecase) RawListings(ctx context.Context) ([]model.RawListing, error) {
	var arr *model.ListingArrays
	err := uc.retry.Do(ctx, "getAllListings", func(ctx context.Context) error {
		var err error
		arr, err = uc.market.AllListings(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ReconcileListings(ctx, arr, uc.fillRow), nil
}

// fillRow はlistings(tokenId)とtokenPriceから1行を組み立てる
func (uc *marketplaceUsecase) fillRow(ctx context.Context, tokenID *big.Int) model.RawListing {
	row := DefaultRow(tokenID)
	l, err := uc.market.Listing(ctx, tokenID)
	if err != nil {
		uc.logger.Warn("listing lookup failed, using defaults", zap.String("token_id", tokenID.String()), zap.Error(err))
		return row
	}
	row.Issuer = l.Issuer
	row.Amount = l.Amount
	if p, err := uc.tokens.TokenPrice(ctx, tokenID); err == nil {
		row.Price = p
	} else {
		uc.logger.Debug("token price unavailable, using default", zap.String("token_id", tokenID.String()), zap.Error(err))
	}
	return row
}

// labelPrices は各出品に "x S (~$y)" 形式の価格表示を付ける
func (uc *marketplaceUsecase) labelPrices(ctx context.Context, listings []model.Listing) {
	if uc.prices == nil {
		return
	}
	rate := uc.prices.USDPrice(ctx)
	for i := range listings {
		wei, ok := new(big.Int).SetString(listings[i].PriceWei, 10)
		if !ok {
			continue
		}
		listings[i].PriceLabel = price.FormatEtherWithUSD(ether.ToFloat(wei), rate.USD, uc.symbol)
	}
}

func (uc *marketplaceUsecase) findRow(ctx context.Context, tokenID *big.Int) (*model.RawListing, error) {
	rows, err := uc.RawListings(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].TokenID != nil && rows[i].TokenID.Cmp(tokenID) == 0 {
			return &rows[i], nil
		}
	}
	return nil, chainerr.NotFound("listing not found for token " + tokenID.String())
}

// QuoteBuy は数量が[1, 在庫]に収まるか確認して見積もる
func (uc *marketplaceUsecase) QuoteBuy(ctx context.Context, tokenID *big.Int, qty int64) (*model.Quote, error) {
	row, err := uc.findRow(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	available := int64(0)
	if row.Amount != nil && row.Amount.IsInt64() {
		available = row.Amount.Int64()
	}
	if qty < 1 || qty > available {
		return nil, chainerr.Validationf("Quantity must be between 1 and %d", available)
	}

	q := QuoteBuy(row.Price, qty, uc.buyFeeBps)
	q.TokenID = tokenID.String()
	q.Display = uc.display(ctx, q.Total)
	return &q, nil
}

func (uc *marketplaceUsecase) display(ctx context.Context, wei *big.Int) string {
	if uc.prices == nil {
		return ether.Format(wei) + " " + uc.symbol
	}
	return price.FormatEtherWithUSD(ether.ToFloat(wei), uc.prices.USDPrice(ctx).USD, uc.symbol)
}

// Buy は合計額 (小計+手数料) をvalueとしてbuyAssetを送信
func (uc *marketplaceUsecase) Buy(ctx context.Context, tokenID *big.Int, qty int64) (*model.TxResult, *model.Quote, error) {
	q, err := uc.QuoteBuy(ctx, tokenID, qty)
	if err != nil {
		return nil, nil, chainerr.Wrap(chainerr.OpBuy, err)
	}
	res, err := uc.market.BuyAsset(ctx, tokenID, big.NewInt(qty), q.Total)
	if err != nil {
		return res, q, chainerr.Wrap(chainerr.OpBuy, err)
	}
	uc.logger.Info("asset purchased",
		zap.String("token_id", q.TokenID),
		zap.Int64("quantity", qty),
		zap.String("total_wei", q.Total.String()),
		zap.String("tx", res.TxHash))
	return res, q, nil
}

// ConfirmPurchase は支払い額が見積もり合計以上でマーケットプレイス宛てか確認する
// 購入後は在庫が減っているため数量の上限は確認しない
func (uc *marketplaceUsecase) ConfirmPurchase(ctx context.Context, req PurchaseRequest) (*model.PurchaseConfirmation, error) {
	if req.TokenID == nil || req.TokenID.Sign() < 0 {
		return nil, chainerr.Validationf("token id is required")
	}
	if req.Quantity < 1 {
		return nil, chainerr.Validationf("quantity must be at least 1")
	}

	unitPrice, err := uc.unitPrice(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}
	q := QuoteBuy(unitPrice, req.Quantity, uc.buyFeeBps)

	check, err := uc.payments.CheckPayment(ctx, req.TxHash, uc.marketplaceAddr, q.Total)
	if err != nil {
		return nil, err
	}
	conf := &model.PurchaseConfirmation{
		Payment:  check,
		TokenID:  req.TokenID.String(),
		Quantity: req.Quantity,
		TotalWei: q.Total.String(),
	}
	if check.Status == model.StatusPaid && common.IsHexAddress(req.Buyer) {
		bal, err := uc.tokens.BalanceOf(ctx, common.HexToAddress(req.Buyer), req.TokenID)
		if err != nil {
			uc.logger.Warn("buyer balance unavailable", zap.String("buyer", req.Buyer), zap.Error(err))
		} else {
			conf.Balance = bal.String()
		}
	}
	return conf, nil
}

// unitPrice は出品中ならその単価、なければtokenPriceを使う
func (uc *marketplaceUsecase) unitPrice(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	row, err := uc.findRow(ctx, tokenID)
	if err == nil {
		return row.Price, nil
	}
	p, priceErr := uc.tokens.TokenPrice(ctx, tokenID)
	if priceErr != nil {
		return nil, err
	}
	return p, nil
}

// VerifyTransaction はトランザクションを検証
func (uc *marketplaceUsecase) VerifyTransaction(ctx context.Context, txHash string) (*model.TxVerification, error) {
	return uc.verifier.VerifyTransaction(ctx, txHash)
}

var _ MarketplaceUsecase = (*marketplaceUsecase)(nil)
