package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rwa-onchain/cache"
	"rwa-onchain/chainerr"
	"rwa-onchain/ether"
	"rwa-onchain/gateway/contract"
	"rwa-onchain/model"
	"rwa-onchain/usecase/asset"
)

// defaultTotalTokens はtotalTokensListedが読めない場合の総発行数
const defaultTotalTokens = 1000

// 割り当て資産の表示種別
const (
	TypeRealEstate = "real-estate"
	TypeCommodity  = "commodity"
	TypeBonds      = "bonds"
	TypeEquity     = "equity"
)

// ManagerUsecase はマネージャー画面のビジネスロジック
type ManagerUsecase interface {
	// IsAuthorized はアドレスが登録済みのマネージャーか確認
	IsAuthorized(ctx context.Context, addr common.Address) (bool, error)

	// AssignedAssets は割り当てられた資産を取得
	AssignedAssets(ctx context.Context, addr common.Address) ([]model.AssignedAsset, error)

	// SubmitIncome は収益をPaymentSplitterに送金して記録
	SubmitIncome(ctx context.Context, form IncomeForm) (*model.IncomeRecord, error)

	// IncomeHistory は送金した収益の履歴を新しい順に取得
	IncomeHistory(ctx context.Context, addr common.Address) ([]model.IncomeRecord, error)
}

// IncomeForm は収益送金フォーム
type IncomeForm struct {
	TokenID   string           `json:"token_id"`
	AssetName string           `json:"asset_name"`
	Amount    string           `json:"amount"` // ETH表記
	Month     string           `json:"month"`
	Type      model.IncomeType `json:"type"`
	Notes     string           `json:"notes"`
}

// Deps はマネージャー画面が使うゲートウェイ
type Deps struct {
	Admin    contract.AdminContract
	Tokens   contract.TokenContract
	Market   contract.MarketplaceContract
	Splitter contract.SplitterContract
	Assets   *asset.Enricher
	History  cache.Store
	Signer   common.Address
}

type managerUsecase struct {
	admin    contract.AdminContract
	tokens   contract.TokenContract
	market   contract.MarketplaceContract
	splitter contract.SplitterContract
	assets   *asset.Enricher
	history  cache.Store
	signer   common.Address

	historyMu sync.Mutex
	now       func() time.Time
	logger    *zap.Logger
}

func NewManagerUsecase(deps Deps, logger *zap.Logger) *managerUsecase {
	return &managerUsecase{
		admin:    deps.Admin,
		tokens:   deps.Tokens,
		market:   deps.Market,
		splitter: deps.Splitter,
		assets:   deps.Assets,
		history:  deps.History,
		signer:   deps.Signer,
		now:      time.Now,
		logger:   logger.Named("manager"),
	}
}

// IsAuthorized はgetAllManagersにアドレスが含まれるか確認
func (uc *managerUsecase) IsAuthorized(ctx context.Context, addr common.Address) (bool, error) {
	managers, err := uc.admin.Managers(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range managers {
		if strings.EqualFold(m.Hex(), addr.Hex()) {
			return true, nil
		}
	}
	return false, nil
}

// AssignedAssets はgetManagerTokensの各トークンの情報を集める
// 個別の読み取りに失敗した項目は既定値のまま返す
func (uc *managerUsecase) AssignedAssets(ctx context.Context, addr common.Address) ([]model.AssignedAsset, error) {
	ids, err := uc.admin.ManagerTokens(ctx, addr)
	if err != nil {
		return nil, err
	}
	assets := make([]model.AssignedAsset, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		assets = append(assets, uc.assignedAsset(ctx, id))
	}
	uc.logger.Info("assigned assets loaded", zap.String("manager", addr.Hex()), zap.Int("count", len(assets)))
	return assets, nil
}

func (uc *managerUsecase) assignedAsset(ctx context.Context, tokenID *big.Int) model.AssignedAsset {
	id := tokenID.String()
	uri, meta := uc.assets.Metadata(ctx, tokenID)
	a := model.AssignedAsset{
		TokenID:     id,
		Name:        fmt.Sprintf("Asset #%s", id),
		Type:        DisplayType(meta),
		Location:    LocationOf(meta),
		TotalTokens: defaultTotalTokens,
		MetadataURI: uri,
	}
	if meta != nil && meta.Name != "" {
		a.Name = meta.Name
	}
	if p, err := uc.tokens.TokenPrice(ctx, tokenID); err == nil {
		a.CurrentValue = ether.ToFloat(p)
	}
	if issuer, err := uc.tokens.TokenIssuer(ctx, tokenID); err == nil {
		a.Issuer = issuer.Hex()
	}
	if listed, err := uc.market.TotalTokensListed(ctx, tokenID); err == nil && listed.IsInt64() {
		a.TotalTokens = listed.Int64()
	} else if err != nil {
		uc.logger.Debug("totalTokensListed unavailable", zap.String("token_id", id), zap.Error(err))
	}
	// 出品済みのトークンはすべて販売済みとみなす
	a.SoldTokens = a.TotalTokens
	return a
}

// DisplayType は資産種類の属性を表示種別に変換する (既定はreal-estate)
func DisplayType(meta *model.AssetMetadata) string {
	if meta == nil {
		return TypeRealEstate
	}
	var value string
	for _, attr := range meta.Attributes {
		if attr.TraitType == model.TraitAssetType || attr.TraitType == "asset_type" {
			value = strings.ToLower(attr.Value)
			break
		}
	}
	switch {
	case strings.Contains(value, "real"), strings.Contains(value, "estate"):
		return TypeRealEstate
	case strings.Contains(value, "commodity"), strings.Contains(value, "gold"):
		return TypeCommodity
	case strings.Contains(value, "bond"):
		return TypeBonds
	case strings.Contains(value, "stock"), strings.Contains(value, "equity"):
		return TypeEquity
	}
	return TypeRealEstate
}

// LocationOf はassetDetailsから所在地を取り出す
func LocationOf(meta *model.AssetMetadata) string {
	if meta == nil || meta.AssetDetails == nil {
		return "Unknown Location"
	}
	d := meta.AssetDetails
	switch {
	case d["location"] != "":
		return d["location"]
	case d["city"] != "" && d["state"] != "":
		return d["city"] + ", " + d["state"]
	case d["address"] != "":
		return d["address"]
	}
	return "Unknown Location"
}

func (f *IncomeForm) validate() (*big.Int, *big.Int, error) {
	if strings.TrimSpace(f.TokenID) == "" || strings.TrimSpace(f.Amount) == "" || strings.TrimSpace(f.Month) == "" {
		return nil, nil, chainerr.Validationf("Please fill all required fields")
	}
	id, ok := new(big.Int).SetString(strings.TrimSpace(f.TokenID), 10)
	if !ok || id.Sign() < 0 {
		return nil, nil, chainerr.Validationf("Token ID must be a valid positive number")
	}
	wei, err := ether.Parse(f.Amount)
	if err != nil {
		return nil, nil, chainerr.Validationf("Invalid amount: %v", err)
	}
	if wei.Sign() <= 0 {
		return nil, nil, chainerr.Validationf("Amount must be greater than 0")
	}
	switch f.Type {
	case "":
		f.Type = model.IncomeRental
	case model.IncomeRental, model.IncomeDividend, model.IncomeInterest:
	default:
		return nil, nil, chainerr.Validationf("Unsupported income type %q", f.Type)
	}
	return id, wei, nil
}

// SubmitIncome はsubmitRentalを金額をvalueとして送信し、結果を履歴に残す
func (uc *managerUsecase) SubmitIncome(ctx context.Context, form IncomeForm) (*model.IncomeRecord, error) {
	tokenID, wei, err := form.validate()
	if err != nil {
		return nil, err
	}

	today := uc.now().UTC().Format("2006-01-02")
	rec := model.IncomeRecord{
		ID:            uuid.NewString(),
		TokenID:       tokenID.String(),
		AssetName:     form.AssetName,
		AmountETH:     ether.Format(wei),
		AmountWei:     wei.String(),
		Month:         form.Month,
		Type:          form.Type,
		Notes:         form.Notes,
		SubmittedDate: today,
	}

	res, sendErr := uc.splitter.SubmitRental(ctx, tokenID, wei)
	if res != nil {
		rec.TxHash = res.TxHash
	}
	if sendErr != nil {
		rec.Status = "failed"
	} else {
		rec.Status = "distributed"
		rec.DistributedDate = today
	}
	if err := uc.appendHistory(ctx, uc.signer, rec); err != nil {
		uc.logger.Warn("failed to record income", zap.String("id", rec.ID), zap.Error(err))
	}

	if sendErr != nil {
		return &rec, chainerr.Wrap(chainerr.OpSubmitIncome, sendErr)
	}
	uc.logger.Info("income distributed",
		zap.String("token_id", rec.TokenID),
		zap.String("amount", rec.AmountETH),
		zap.String("type", string(rec.Type)),
		zap.String("tx", rec.TxHash))
	return &rec, nil
}

func historyKey(addr common.Address) string {
	return "income:" + strings.ToLower(addr.Hex())
}

func (uc *managerUsecase) appendHistory(ctx context.Context, addr common.Address, rec model.IncomeRecord) error {
	uc.historyMu.Lock()
	defer uc.historyMu.Unlock()

	records, err := uc.loadHistory(ctx, addr)
	if err != nil {
		return err
	}
	records = append([]model.IncomeRecord{rec}, records...)
	data, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "encode income history")
	}
	return uc.history.Set(ctx, historyKey(addr), data, 0)
}

func (uc *managerUsecase) loadHistory(ctx context.Context, addr common.Address) ([]model.IncomeRecord, error) {
	data, ok, err := uc.history.Get(ctx, historyKey(addr))
	if err != nil || !ok {
		return nil, err
	}
	var records []model.IncomeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "decode income history")
	}
	return records, nil
}

// IncomeHistory は送金履歴を新しい順に返す
func (uc *managerUsecase) IncomeHistory(ctx context.Context, addr common.Address) ([]model.IncomeRecord, error) {
	uc.historyMu.Lock()
	defer uc.historyMu.Unlock()
	records, err := uc.loadHistory(ctx, addr)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.IncomeRecord{}
	}
	return records, nil
}

var _ ManagerUsecase = (*managerUsecase)(nil)
