// Package asset はトークンIDと出品情報にIPFSメタデータを付与する
package asset

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rwa-onchain/gateway/ipfs"
	"rwa-onchain/model"
)

const (
	TypeUnknown          = "Unknown"
	TypeRealWorldAsset   = "Real World Asset"
	detailsAssetTypeKey  = "assetType"
	placeholderImageMark = "placeholder"
)

// fallbackImages は画像がないメタデータに使う種類別の画像
var fallbackImages = map[string]string{
	"Real Estate":  "https://images.unsplash.com/photo-1545324418-cc1a3fa10c00?w=800&h=600&fit=crop",
	"Invoice":      "https://images.unsplash.com/photo-1554224155-6726b3ff858f?w=800&h=600&fit=crop",
	"Commodity":    "https://images.unsplash.com/photo-1610375461246-83df859d849d?w=800&h=600&fit=crop",
	"Stocks":       "https://images.unsplash.com/photo-1611974789855-9c2a0a7236a3?w=800&h=600&fit=crop",
	"CarbonCredit": "https://images.unsplash.com/photo-1441974231531-c6227db76b6e?w=800&h=600&fit=crop",
	"Gold":         "https://images.unsplash.com/photo-1622976520928-53c6b59f4e7e?w=800&h=600&fit=crop",
	"Wine":         "https://images.unsplash.com/photo-1506377247886-a2c6fa3bf4fd?w=800&h=600&fit=crop",
	"Art":          "https://images.unsplash.com/photo-1541961017774-22349e4a1262?w=800&h=600&fit=crop",
	TypeUnknown:    "https://images.unsplash.com/photo-1560472354-b33ff0c44a43?w=800&h=600&fit=crop",
}

// FallbackImage は資産種類に対応する代替画像を返す
func FallbackImage(assetType string) string {
	if img, ok := fallbackImages[assetType]; ok {
		return img
	}
	return fallbackImages[TypeUnknown]
}

// MetadataURIReader はトークンのメタデータURIを取得する
type MetadataURIReader interface {
	TokenMetadataURI(ctx context.Context, tokenID *big.Int) (string, error)
}

// Enricher は出品行をメタデータ付きのListingに変換する
type Enricher struct {
	tokens      MetadataURIReader
	ipfs        ipfs.Gateway
	concurrency int
	logger      *zap.Logger
}

// NewEnricher はconcurrency件までメタデータを並行取得するEnricherを作成
func NewEnricher(tokens MetadataURIReader, gw ipfs.Gateway, concurrency int, logger *zap.Logger) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{tokens: tokens, ipfs: gw, concurrency: concurrency, logger: logger.Named("asset")}
}

// EnrichAll は全行を並行してEnrichし、元の順序で返す
// 1件の失敗はスキップし、ctxの終了のみエラーとして返す
func (e *Enricher) EnrichAll(ctx context.Context, rows []model.RawListing, defaultType string) ([]model.Listing, error) {
	results := make([]*model.Listing, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, row := range rows {
		g.Go(func() error {
			l, err := e.Enrich(gctx, row, defaultType)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				e.logger.Warn("skipping listing", zap.Int("index", i), zap.Error(err))
				return nil
			}
			results[i] = &l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	listings := make([]model.Listing, 0, len(rows))
	for _, l := range results {
		if l != nil {
			listings = append(listings, *l)
		}
	}
	return listings, nil
}

// Enrich はメタデータを取得してListingを組み立てる
// メタデータが取得できなくても既定値で埋める。ctxが終了している場合のみエラー
func (e *Enricher) Enrich(ctx context.Context, row model.RawListing, defaultType string) (model.Listing, error) {
	if row.TokenID == nil {
		return model.Listing{}, errors.New("listing without token id")
	}
	amount := row.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	if !amount.IsInt64() {
		return model.Listing{}, errors.Errorf("token %s: amount %s out of range", row.TokenID, amount)
	}
	id := row.TokenID.String()

	uri, meta := e.Metadata(ctx, row.TokenID)
	if err := ctx.Err(); err != nil {
		return model.Listing{}, err
	}

	assetType := TypeOf(meta, defaultType)
	l := model.Listing{
		TokenID:     id,
		Name:        fmt.Sprintf("Asset Token #%s", id),
		Description: fmt.Sprintf("Asset token listed on the marketplace. Token ID: %s", id),
		Image:       imageFor(meta, assetType),
		PriceWei:    priceString(row.Price),
		Amount:      amount.Int64(),
		Seller:      row.Issuer.Hex(),
		MetadataURI: uri,
		AssetType:   assetType,
		Metadata:    meta,
		Attributes:  []model.Attribute{{TraitType: model.TraitAssetType, Value: assetType}},
	}
	if l.MetadataURI == "" {
		l.MetadataURI = "placeholder-" + id
	}
	if meta != nil {
		if meta.Name != "" {
			l.Name = meta.Name
		}
		if meta.Description != "" {
			l.Description = meta.Description
		}
		if len(meta.Attributes) > 0 {
			l.Attributes = meta.Attributes
		}
	}
	return l, nil
}

// Metadata はメタデータURIとその内容を取得する (失敗時はnil)
func (e *Enricher) Metadata(ctx context.Context, tokenID *big.Int) (string, *model.AssetMetadata) {
	uri, err := e.tokens.TokenMetadataURI(ctx, tokenID)
	if err != nil {
		e.logger.Debug("metadata uri unavailable", zap.String("token_id", tokenID.String()), zap.Error(err))
		return "", nil
	}
	if uri == "" {
		return "", nil
	}
	meta, err := e.ipfs.FetchMetadata(ctx, uri)
	if err != nil {
		e.logger.Debug("metadata fetch failed", zap.String("token_id", tokenID.String()), zap.String("uri", uri), zap.Error(err))
		return uri, nil
	}
	return uri, meta
}

// TypeOf は "Asset Type" 属性、assetDetails.assetType、既定値の順に資産種類を決める
func TypeOf(meta *model.AssetMetadata, defaultType string) string {
	if t := meta.AssetType(); t != "" {
		return t
	}
	if meta != nil {
		if t := meta.AssetDetails[detailsAssetTypeKey]; t != "" {
			return t
		}
	}
	return defaultType
}

func imageFor(meta *model.AssetMetadata, assetType string) string {
	if meta != nil && strings.HasPrefix(meta.Image, "http") && !strings.Contains(meta.Image, placeholderImageMark) {
		return meta.Image
	}
	return FallbackImage(assetType)
}

func priceString(p *big.Int) string {
	if p == nil {
		return "0"
	}
	return p.String()
}
