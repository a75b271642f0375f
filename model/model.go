package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ===============================================
// 資産・リスティング関連のモデル
// ===============================================

// Attribute はメタデータの属性 (trait_type / value)
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// AssetMetadata はIPFS上のトークンメタデータ
type AssetMetadata struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Image        string            `json:"image"`
	Attributes   []Attribute       `json:"attributes"`
	AssetDetails map[string]string `json:"assetDetails,omitempty"`
	TokenType    string            `json:"tokenType,omitempty"`
	CreatedAt    string            `json:"createdAt,omitempty"`
	CreatedBy    string            `json:"createdBy,omitempty"`
}

// AssetType は属性 "Asset Type" の値を返す (なければ空文字)
func (m *AssetMetadata) AssetType() string {
	if m == nil {
		return ""
	}
	for _, attr := range m.Attributes {
		if attr.TraitType == TraitAssetType {
			return attr.Value
		}
	}
	return ""
}

// TraitAssetType は資産種別を表す属性名
const TraitAssetType = "Asset Type"

// RawListing は整形済みの出品1行分
type RawListing struct {
	TokenID *big.Int
	Issuer  common.Address
	Amount  *big.Int
	Price   *big.Int // 1トークンあたりの価格 (Wei)
}

// ListingArrays はgetAllListingsの生の戻り値
// コントラクトのバージョンによってはTokenIDs以外が短い (または空の) ことがある
type ListingArrays struct {
	TokenIDs []*big.Int
	Issuers  []common.Address
	Amounts  []*big.Int
	Prices   []*big.Int
}

// OnchainListing はlistings(tokenId)の戻り値
type OnchainListing struct {
	Issuer   common.Address
	TokenID  *big.Int
	Amount   *big.Int
	Price    *big.Int
	IsActive bool
}

// Listing はマーケットプレイスに表示する出品情報
type Listing struct {
	TokenID     string         `json:"token_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Image       string         `json:"image"`
	PriceWei    string         `json:"price_wei"`
	Amount      int64          `json:"amount"`
	Seller      string         `json:"seller"`
	MetadataURI string         `json:"metadata_uri"`
	AssetType   string         `json:"asset_type"`
	PriceLabel  string         `json:"price_label,omitempty"`
	Metadata    *AssetMetadata `json:"metadata,omitempty"`
	Attributes  []Attribute    `json:"attributes"`
}

// ListingsResult はリスティング一覧の取得結果
type ListingsResult struct {
	Listings []Listing `json:"listings"`
	Demo     bool      `json:"demo"`              // デモデータにフォールバックしたか
	Message  string    `json:"message,omitempty"` // ユーザー向けメッセージ
}

// Holding は投資家が保有する資産
type Holding struct {
	Listing
}

// Portfolio は投資家ダッシュボードの集計値 (ETH建て)
type Portfolio struct {
	TotalInvestment   float64   `json:"total_investment"`
	CurrentValue      float64   `json:"current_value"`
	TotalReturn       float64   `json:"total_return"`
	ReturnPercentage  float64   `json:"return_percentage"`
	YearlyIncome      float64   `json:"yearly_income"`
	TotalAssets       int       `json:"total_assets"`
	ActiveInvestments int       `json:"active_investments"`
	Holdings          []Holding `json:"holdings"`
}

// Quote は売買時の小計・手数料・合計 (Wei)
// 売却時のNetは小計から手数料を引いた受取額
type Quote struct {
	TokenID  string   `json:"token_id"`
	Quantity int64    `json:"quantity"`
	FeeBps   int64    `json:"fee_bps"`
	PriceWei *big.Int `json:"price_wei"`
	Subtotal *big.Int `json:"subtotal_wei"`
	Fee      *big.Int `json:"fee_wei"`
	Total    *big.Int `json:"total_wei"`
	Net      *big.Int `json:"net_wei,omitempty"`
	Display  string   `json:"display,omitempty"`
}

// ===============================================
// ユーザー・ロール関連のモデル
// ===============================================

// Role は管理画面で扱うロール
type Role string

const (
	RoleIssuer  Role = "issuer"
	RoleManager Role = "manager"
)

// User は発行者またはマネージャー
type User struct {
	Address        string   `json:"address"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Role           Role     `json:"role"`
	Status         string   `json:"status"`
	MetadataURI    string   `json:"metadata_uri"`
	JoinedDate     string   `json:"joined_date"`
	TokensManaged  int64    `json:"tokens_managed"`
	TotalVolume    float64  `json:"total_volume"`
	AssignedTokens []string `json:"assigned_tokens,omitempty"`
}

// AdminOverview は管理画面のサマリー
type AdminOverview struct {
	Issuers           []User `json:"issuers"`
	Managers          []User `json:"managers"`
	MarketplacePaused bool   `json:"marketplace_paused"`
	TotalIssuers      int    `json:"total_issuers"`
	TotalManagers     int    `json:"total_managers"`
}

// AssignedAsset はマネージャーに割り当てられた資産
type AssignedAsset struct {
	TokenID      string  `json:"token_id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"` // real-estate, commodity, bonds, equity
	Location     string  `json:"location"`
	Issuer       string  `json:"issuer"`
	TotalTokens  int64   `json:"total_tokens"`
	SoldTokens   int64   `json:"sold_tokens"`
	CurrentValue float64 `json:"current_value"`
	MetadataURI  string  `json:"metadata_uri"`
}

// IncomeType は収益の種類
type IncomeType string

const (
	IncomeRental   IncomeType = "rental"
	IncomeDividend IncomeType = "dividend"
	IncomeInterest IncomeType = "interest"
)

// IncomeRecord はマネージャーが送金した収益の記録
type IncomeRecord struct {
	ID              string     `json:"id"`
	TokenID         string     `json:"token_id"`
	AssetName       string     `json:"asset_name"`
	AmountETH       string     `json:"amount_eth"`
	AmountWei       string     `json:"amount_wei"`
	Month           string     `json:"month"`
	Type            IncomeType `json:"type"`
	Notes           string     `json:"notes,omitempty"`
	TxHash          string     `json:"tx_hash"`
	Status          string     `json:"status"` // distributed, failed
	SubmittedDate   string     `json:"submitted_date"`
	DistributedDate string     `json:"distributed_date,omitempty"`
}

// ===============================================
// トランザクション・イベント関連のモデル
// ===============================================

// TxResult は書き込みトランザクションの結果
type TxResult struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
	Success     bool   `json:"success"`
	ExplorerURL string `json:"explorer_url"`
}

// TxVerification はトランザクション検証結果
type TxVerification struct {
	TxHash         string `json:"tx_hash"`
	Status         string `json:"status"` // "pending", "success", "failed"
	BlockNumber    uint64 `json:"block_number,omitempty"`
	GasUsed        uint64 `json:"gas_used,omitempty"`
	Success        bool   `json:"success"`
	IsContractCall bool   `json:"is_contract_call"`
	Contract       string `json:"contract,omitempty"`
}

// EventType はコントラクトイベントの種類
type EventType string

const (
	EventAssetListed      EventType = "AssetListed"
	EventAssetPurchased   EventType = "AssetPurchased"
	EventAssetSold        EventType = "AssetSold"
	EventListingRemoved   EventType = "ListingRemoved"
	EventTokenMinted      EventType = "TokenMinted"
	EventRentalSubmitted  EventType = "RentalSubmitted"
	EventMarketplacePause EventType = "MarketplacePauseToggled"
)

// ContractEvent はコントラクトイベントを表す
type ContractEvent struct {
	Type      EventType `json:"type"`
	Contract  string    `json:"contract"`
	TxHash    string    `json:"tx_hash"`
	BlockNo   uint64    `json:"block_number"`
	TokenID   string    `json:"token_id,omitempty"`
	Account   string    `json:"account,omitempty"` // issuer / buyer / seller / manager
	Amount    string    `json:"amount,omitempty"`
	ValueWei  string    `json:"value_wei,omitempty"`
	Paused    *bool     `json:"paused,omitempty"`
	Timestamp time.Time `json:"observed_at"`
}

// PriceData はUSD換算レートのキャッシュ
type PriceData struct {
	USD       float64   `json:"usd"`
	FetchedAt time.Time `json:"fetched_at"`
	Fallback  bool      `json:"fallback"`
}

// ===============================================
// 支払い検証関連のモデル
// ===============================================

// PaymentStatus は外部署名された支払いの状態
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPaid    PaymentStatus = "paid"
	StatusError   PaymentStatus = "error"
)

// PaymentCheck は支払いトランザクションの検証結果
type PaymentCheck struct {
	TxHash      string        `json:"tx_hash"`
	Status      PaymentStatus `json:"status"`
	To          string        `json:"to,omitempty"`
	ValueWei    string        `json:"value_wei"`
	BlockNumber uint64        `json:"block_number,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// PurchaseConfirmation は外部ウォレットでの購入の確認結果
type PurchaseConfirmation struct {
	Payment  *PaymentCheck `json:"payment"`
	TokenID  string        `json:"token_id"`
	Quantity int64         `json:"quantity"`
	TotalWei string        `json:"expected_total_wei"`
	Balance  string        `json:"buyer_balance,omitempty"`
}
