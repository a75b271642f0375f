package usecase

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"rwa-onchain/ether"
	"rwa-onchain/model"
)

// DefaultListingPrice はtokenPriceが取得できない場合の単価 (1000 ETH)
var DefaultListingPrice = ether.FromUint(1000)

// Categories はマーケットプレイスの表示カテゴリ (Asset Type属性の値)
var Categories = []string{"Real Estate", "Invoice", "Commodity", "Stocks", "CarbonCredit"}

// RowFiller はtokenIdから欠けた出品行を補う
type RowFiller func(ctx context.Context, tokenID *big.Int) model.RawListing

// ReconcileListings はgetAllListingsの配列を行にまとめる
// issuers/amounts/pricesがtokenIdsより短い行はfillで補い、tokenIdsを超える要素は無視する
func ReconcileListings(ctx context.Context, arr *model.ListingArrays, fill RowFiller) []model.RawListing {
	if arr == nil {
		return nil
	}
	rows := make([]model.RawListing, 0, len(arr.TokenIDs))
	for i, id := range arr.TokenIDs {
		if i < len(arr.Issuers) && i < len(arr.Amounts) && i < len(arr.Prices) {
			rows = append(rows, model.RawListing{
				TokenID: id,
				Issuer:  arr.Issuers[i],
				Amount:  arr.Amounts[i],
				Price:   arr.Prices[i],
			})
			continue
		}
		rows = append(rows, fill(ctx, id))
	}
	return rows
}

// DefaultRow はlistingsの取得に失敗した行の既定値
func DefaultRow(tokenID *big.Int) model.RawListing {
	return model.RawListing{
		TokenID: tokenID,
		Issuer:  common.Address{},
		Amount:  new(big.Int),
		Price:   new(big.Int).Set(DefaultListingPrice),
	}
}

// FilterByType は資産種類が一致する出品を返す (大文字小文字は区別しない)
func FilterByType(listings []model.Listing, assetType string) []model.Listing {
	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if strings.EqualFold(listingType(l), assetType) {
			out = append(out, l)
		}
	}
	return out
}

// Partition はCategoriesごとに出品を分ける
// どのカテゴリにも属さない出品は含まれない
func Partition(listings []model.Listing) map[string][]model.Listing {
	parts := make(map[string][]model.Listing, len(Categories))
	for _, c := range Categories {
		parts[c] = FilterByType(listings, c)
	}
	return parts
}

// listingType は属性の "Asset Type" を優先し、なければAssetTypeを使う
func listingType(l model.Listing) string {
	for _, a := range l.Attributes {
		if a.TraitType == model.TraitAssetType {
			return a.Value
		}
	}
	return l.AssetType
}

// QuoteBuy は 小計 = 単価×数量、手数料 = 小計×bps/10000 (切り捨て)、合計 = 小計+手数料 を計算する
func QuoteBuy(price *big.Int, qty int64, feeBps int64) model.Quote {
	subtotal := new(big.Int).Mul(price, big.NewInt(qty))
	fee := feeOf(subtotal, feeBps)
	return model.Quote{
		Quantity: qty,
		FeeBps:   feeBps,
		PriceWei: new(big.Int).Set(price),
		Subtotal: subtotal,
		Fee:      fee,
		Total:    new(big.Int).Add(subtotal, fee),
	}
}

// QuoteSell は売却額と手数料を計算する
// 手数料はvalueとして別途支払うため、Totalは手数料と同額になる
func QuoteSell(price *big.Int, qty int64, feeBps int64) model.Quote {
	gross := new(big.Int).Mul(price, big.NewInt(qty))
	fee := feeOf(gross, feeBps)
	return model.Quote{
		Quantity: qty,
		FeeBps:   feeBps,
		PriceWei: new(big.Int).Set(price),
		Subtotal: gross,
		Fee:      fee,
		Total:    new(big.Int).Set(fee),
		Net:      new(big.Int).Sub(gross, fee),
	}
}

func feeOf(amount *big.Int, bps int64) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(bps))
	return fee.Quo(fee, big.NewInt(10000))
}

// ClampQuantity は数量を[1, available]に収める
// 在庫がない場合は0
func ClampQuantity(q, available int64) int64 {
	if available < 1 {
		return 0
	}
	if q < 1 {
		return 1
	}
	if q > available {
		return available
	}
	return q
}

// demoListings はチェーンから取得できない場合に表示するデモデータ
func demoListings() []model.Listing {
	mk := func(id, name, desc, image, priceEther string, amount int64, seller, uri string, attrs ...model.Attribute) model.Listing {
		price, _ := ether.Parse(priceEther)
		return model.Listing{
			TokenID:     id,
			Name:        name,
			Description: desc,
			Image:       image,
			PriceWei:    price.String(),
			Amount:      amount,
			Seller:      seller,
			MetadataURI: uri,
			AssetType:   attrs[0].Value,
			Attributes:  attrs,
		}
	}
	return []model.Listing{
		mk("1", "Luxury Villa in Miami", "A beautiful beachfront villa with stunning ocean views",
			"https://images.unsplash.com/photo-1571896349842-33c89424de2d?w=400", "250000", 100,
			"0x1234567890123456789012345678901234567890", "demo://villa-miami",
			model.Attribute{TraitType: model.TraitAssetType, Value: "Real Estate"},
			model.Attribute{TraitType: "Location", Value: "Miami, FL"},
			model.Attribute{TraitType: "Area", Value: "3,500 sq ft"},
			model.Attribute{TraitType: "Bedrooms", Value: "4"},
			model.Attribute{TraitType: "Bathrooms", Value: "3"}),
		mk("2", "Gold Bullion Investment", "Premium 1oz gold bars with certified authenticity",
			"https://images.unsplash.com/photo-1622976520928-53c6b59f4e7e?w=400", "2100", 50,
			"0x2345678901234567890123456789012345678901", "demo://gold-bullion",
			model.Attribute{TraitType: model.TraitAssetType, Value: "Commodity"},
			model.Attribute{TraitType: "Weight", Value: "1 oz"},
			model.Attribute{TraitType: "Purity", Value: "99.99%"},
			model.Attribute{TraitType: "Certification", Value: "LBMA Certified"}),
		mk("3", "Vintage Wine Collection", "Rare vintage wines from French vineyards",
			"https://images.unsplash.com/photo-1506377247886-a2c6fa3bf4fd?w=400", "5000", 25,
			"0x3456789012345678901234567890123456789012", "demo://vintage-wine",
			model.Attribute{TraitType: model.TraitAssetType, Value: "Wine"},
			model.Attribute{TraitType: "Vintage", Value: "1982"},
			model.Attribute{TraitType: "Region", Value: "Bordeaux"},
			model.Attribute{TraitType: "Bottles", Value: "12"}),
	}
}
