package price

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"rwa-onchain/cache"
	"rwa-onchain/config"
	"rwa-onchain/model"
)

const cacheKey = "price:eth-usd"

// Gateway はネイティブ通貨のUSD換算レートを提供する (表示専用)
type Gateway interface {
	// USDPrice はレートを返す。取得に失敗した場合はフォールバック値を返しエラーにはしない
	USDPrice(ctx context.Context) model.PriceData
}

// CoinGeckoGateway はCoinGeckoのsimple/price APIを使う実装
type CoinGeckoGateway struct {
	httpClient *http.Client
	url        string
	ttl        time.Duration
	fallback   float64
	store      cache.Store
	logger     *zap.Logger
	now        func() time.Time

	mu sync.Mutex
}

// NewCoinGeckoGateway は新しい価格ゲートウェイを作成
func NewCoinGeckoGateway(cfg config.PriceConfig, store cache.Store, logger *zap.Logger) *CoinGeckoGateway {
	return &CoinGeckoGateway{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        cfg.URL,
		ttl:        cfg.CacheTTL,
		fallback:   cfg.FallbackUSD,
		store:      store,
		logger:     logger.Named("price"),
		now:        time.Now,
	}
}

// USDPrice はキャッシュが有効ならそれを返し、なければCoinGeckoから取得する
// 取得失敗時はフォールバック値をキャッシュして返す
func (g *CoinGeckoGateway) USDPrice(ctx context.Context) model.PriceData {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.cached(ctx); ok {
		return p
	}

	p := model.PriceData{FetchedAt: g.now()}
	usd, err := g.fetch(ctx)
	if err != nil {
		g.logger.Warn("price fetch failed, using fallback", zap.Float64("fallback", g.fallback), zap.Error(err))
		p.USD = g.fallback
		p.Fallback = true
	} else {
		g.logger.Info("fetched usd price", zap.Float64("usd", usd))
		p.USD = usd
	}

	if data, err := json.Marshal(p); err == nil {
		if err := g.store.Set(ctx, cacheKey, data, g.ttl); err != nil {
			g.logger.Warn("price cache write failed", zap.Error(err))
		}
	}
	return p
}

func (g *CoinGeckoGateway) cached(ctx context.Context) (model.PriceData, bool) {
	var p model.PriceData
	data, ok, err := g.store.Get(ctx, cacheKey)
	if err != nil || !ok {
		return p, false
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, false
	}
	if g.now().Sub(p.FetchedAt) >= g.ttl {
		return p, false
	}
	return p, true
}

func (g *CoinGeckoGateway) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build price request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "request price")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("coingecko api error: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, errors.Wrap(err, "read price body")
	}

	v := gjson.GetBytes(body, "ethereum.usd")
	if v.Type != gjson.Number || v.Float() <= 0 {
		return 0, errors.New("invalid price data from coingecko")
	}
	return v.Float(), nil
}
