package usecase

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rwa-onchain/chainerr"
	"rwa-onchain/ether"
	"rwa-onchain/gateway/contract"
	"rwa-onchain/gateway/ipfs"
	"rwa-onchain/model"
	"rwa-onchain/usecase/asset"
)

// トークン種別
const (
	TokenTypeERC20 = "ERC20"
	TokenTypeNFT   = "NFT"
)

// assetDetailKeys は資産種類ごとにメタデータのassetDetailsへ残す項目
var assetDetailKeys = map[string][]string{
	"Real Estate":  {"size", "bedrooms", "location"},
	"Invoice":      {"issuer", "dueDate", "riskRating"},
	"Commodity":    {"weight", "purity", "storage"},
	"Stocks":       {"symbol", "exchange", "sector"},
	"CarbonCredit": {"standard", "projectType", "co2Offset"},
}

// IssuerUsecase は発行者画面のビジネスロジック
type IssuerUsecase interface {
	// IsAuthorized はアドレスが登録済みの発行者か確認
	IsAuthorized(ctx context.Context, addr common.Address) (bool, error)

	// Portfolio は発行者の出品一覧を取得
	Portfolio(ctx context.Context, addr common.Address) ([]model.Listing, error)

	// CreateAsset はメタデータをピン留めしてトークンを発行・出品
	CreateAsset(ctx context.Context, form CreateAssetForm) (*CreateAssetResult, error)

	// RemoveListing は出品を取り下げ
	RemoveListing(ctx context.Context, tokenID *big.Int) (*model.TxResult, error)

	// ApproveMarketplace はマーケットプレイスにトークン操作を許可
	ApproveMarketplace(ctx context.Context) (*ApprovalResult, error)
}

// ListingSource は補完済みの出品行を返す
type ListingSource interface {
	RawListings(ctx context.Context) ([]model.RawListing, error)
}

// CreateAssetForm は資産発行フォーム
type CreateAssetForm struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	AssetType     string            `json:"asset_type"`
	TokenType     string            `json:"token_type"`
	Amount        int64             `json:"amount"`
	PricePerToken string            `json:"price_per_token"` // ETH表記
	PriceToken    string            `json:"price_token"`
	EarnXP        string            `json:"earn_xp"`
	ImageURI      string            `json:"image_uri"`
	Details       map[string]string `json:"details"`
}

// CreateAssetResult は資産発行の結果
// 出品に失敗してもトークン発行は成功として扱い、ListingErrorに理由を入れる
type CreateAssetResult struct {
	TokenID      string          `json:"token_id"`
	MetadataURI  string          `json:"metadata_uri"`
	Create       *model.TxResult `json:"create_tx"`
	Listing      *model.TxResult `json:"listing_tx,omitempty"`
	Listed       bool            `json:"listed"`
	ListingError string          `json:"listing_error,omitempty"`
}

// ApprovalResult はsetApprovalForAllの結果
type ApprovalResult struct {
	AlreadyApproved bool            `json:"already_approved"`
	Tx              *model.TxResult `json:"tx,omitempty"`
}

// Deps は発行者画面が使うゲートウェイ
type Deps struct {
	Admin    contract.AdminContract
	Issuer   contract.IssuerContract
	Market   contract.MarketplaceContract
	Tokens   contract.TokenContract
	IPFS     ipfs.Gateway
	Assets   *asset.Enricher
	Listings ListingSource

	Signer             common.Address
	MarketplaceAddress common.Address
}

type issuerUsecase struct {
	admin    contract.AdminContract
	issuer   contract.IssuerContract
	market   contract.MarketplaceContract
	tokens   contract.TokenContract
	ipfs     ipfs.Gateway
	assets   *asset.Enricher
	listings ListingSource

	signer          common.Address
	marketplaceAddr common.Address
	now             func() time.Time
	logger          *zap.Logger
}

func NewIssuerUsecase(deps Deps, logger *zap.Logger) *issuerUsecase {
	return &issuerUsecase{
		admin:           deps.Admin,
		issuer:          deps.Issuer,
		market:          deps.Market,
		tokens:          deps.Tokens,
		ipfs:            deps.IPFS,
		assets:          deps.Assets,
		listings:        deps.Listings,
		signer:          deps.Signer,
		marketplaceAddr: deps.MarketplaceAddress,
		now:             time.Now,
		logger:          logger.Named("issuer"),
	}
}

// IsAuthorized はgetAllIssuersにアドレスが含まれるか確認 (大文字小文字は区別しない)
func (uc *issuerUsecase) IsAuthorized(ctx context.Context, addr common.Address) (bool, error) {
	issuers, err := uc.admin.Issuers(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range issuers {
		if strings.EqualFold(a.Hex(), addr.Hex()) {
			return true, nil
		}
	}
	return false, nil
}

// Portfolio は発行者が出品している行にメタデータを付けて返す
func (uc *issuerUsecase) Portfolio(ctx context.Context, addr common.Address) ([]model.Listing, error) {
	rows, err := uc.listings.RawListings(ctx)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.OpListings, err)
	}
	mine := make([]model.RawListing, 0, len(rows))
	for _, row := range rows {
		if row.Issuer == addr {
			mine = append(mine, row)
		}
	}
	return uc.assets.EnrichAll(ctx, mine, asset.TypeUnknown)
}

// validate はフォームを検証し、発行数と単価 (Wei) を返す
func (f *CreateAssetForm) validate() (*big.Int, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	if f.Title == "" || f.Description == "" || f.Amount == 0 || strings.TrimSpace(f.PricePerToken) == "" {
		return nil, chainerr.Validationf("Please fill all required fields")
	}
	if f.Amount < 0 {
		return nil, chainerr.Validationf("Amount must be greater than 0")
	}
	price, err := ether.Parse(f.PricePerToken)
	if err != nil {
		return nil, chainerr.Validationf("Invalid price per token: %v", err)
	}

	if f.TokenType == "" {
		f.TokenType = TokenTypeERC20
	}
	switch f.TokenType {
	case TokenTypeERC20:
	case TokenTypeNFT:
		if strings.TrimSpace(f.ImageURI) == "" {
			return nil, chainerr.Validationf("Please upload at least one image for NFT tokens")
		}
	default:
		return nil, chainerr.Validationf("Unsupported token type %q", f.TokenType)
	}
	if f.AssetType == "" {
		f.AssetType = "Real Estate"
	}
	if f.PriceToken == "" {
		f.PriceToken = "USD"
	}
	if f.EarnXP == "" {
		f.EarnXP = "32000"
	}
	return price, nil
}

// BuildMetadata はピン留めする資産メタデータを組み立てる
func BuildMetadata(f CreateAssetForm, createdBy common.Address, createdAt time.Time) model.AssetMetadata {
	details := map[string]string{}
	for _, k := range assetDetailKeys[f.AssetType] {
		details[k] = f.Details[k]
	}
	return model.AssetMetadata{
		Name:        f.Title,
		Description: f.Description,
		Image:       f.ImageURI,
		Attributes: []model.Attribute{
			{TraitType: model.TraitAssetType, Value: f.AssetType},
			{TraitType: "Price Token", Value: f.PriceToken},
			{TraitType: "Earn XP", Value: f.EarnXP},
		},
		AssetDetails: details,
		TokenType:    f.TokenType,
		CreatedAt:    createdAt.UTC().Format(time.RFC3339),
		CreatedBy:    createdBy.Hex(),
	}
}

// CreateAsset はピン留め → createToken → listAsset の順に実行する
func (uc *issuerUsecase) CreateAsset(ctx context.Context, form CreateAssetForm) (*CreateAssetResult, error) {
	ok, err := uc.IsAuthorized(ctx, uc.signer)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.OpCreateToken, err)
	}
	if !ok {
		return nil, chainerr.NotAuthorized("You are not authorized to create tokens. Please contact the admin.")
	}
	price, err := form.validate()
	if err != nil {
		return nil, err
	}

	meta := BuildMetadata(form, uc.signer, uc.now())
	hash, err := uc.ipfs.PinJSON(ctx, "asset-"+form.Title, meta)
	if err != nil {
		uc.logger.Error("failed to pin metadata", zap.Error(err))
		return nil, chainerr.New(chainerr.KindNetwork, "Failed to upload to IPFS")
	}
	metadataURI := "ipfs://" + hash

	amount := big.NewInt(form.Amount)
	tokenID, createTx, err := uc.issuer.CreateToken(ctx, amount, price, metadataURI)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.OpCreateToken, err)
	}
	res := &CreateAssetResult{TokenID: tokenID.String(), MetadataURI: metadataURI, Create: createTx}
	uc.logger.Info("token created",
		zap.String("token_id", res.TokenID),
		zap.String("metadata_uri", metadataURI),
		zap.String("tx", createTx.TxHash))

	listTx, err := uc.market.ListAsset(ctx, tokenID, amount)
	if err != nil {
		res.ListingError = chainerr.Wrap(chainerr.OpListAsset, err).Error()
		uc.logger.Warn("token created but listing failed", zap.String("token_id", res.TokenID), zap.Error(err))
		return res, nil
	}
	res.Listing = listTx
	res.Listed = true
	uc.logger.Info("asset listed", zap.String("token_id", res.TokenID), zap.String("tx", listTx.TxHash))
	return res, nil
}

// RemoveListing はremoveListingを送信
func (uc *issuerUsecase) RemoveListing(ctx context.Context, tokenID *big.Int) (*model.TxResult, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, chainerr.Validationf("invalid token id")
	}
	res, err := uc.market.RemoveListing(ctx, tokenID)
	if err != nil {
		return res, chainerr.Wrap(chainerr.OpRemoveListing, err)
	}
	uc.logger.Info("listing removed", zap.String("token_id", tokenID.String()), zap.String("tx", res.TxHash))
	return res, nil
}

// ApproveMarketplace は承認済みなら何もしない
func (uc *issuerUsecase) ApproveMarketplace(ctx context.Context) (*ApprovalResult, error) {
	approved, err := uc.tokens.IsApprovedForAll(ctx, uc.signer, uc.marketplaceAddr)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.OpApprove, err)
	}
	if approved {
		return &ApprovalResult{AlreadyApproved: true}, nil
	}
	res, err := uc.tokens.SetApprovalForAll(ctx, uc.marketplaceAddr, true)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.OpApprove, err)
	}
	uc.logger.Info("marketplace approved", zap.String("operator", uc.marketplaceAddr.Hex()), zap.String("tx", res.TxHash))
	return &ApprovalResult{Tx: res}, nil
}

var _ IssuerUsecase = (*issuerUsecase)(nil)
