package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rwa-onchain/cache"
	"rwa-onchain/config"
)

func newTestGateway(t *testing.T, url string) *CoinGeckoGateway {
	t.Helper()
	store, err := cache.NewMemory(time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewCoinGeckoGateway(config.PriceConfig{
		URL:         url,
		CacheTTL:    5 * time.Minute,
		FallbackUSD: 2500,
		Timeout:     time.Second,
	}, store, zaptest.NewLogger(t))
}

func TestUSDPriceCachesForTTL(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"ethereum":{"usd":3120.55}}`))
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	p := g.USDPrice(context.Background())
	assert.Equal(t, 3120.55, p.USD)
	assert.False(t, p.Fallback)

	now = now.Add(4 * time.Minute)
	g.USDPrice(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	now = now.Add(2 * time.Minute)
	g.USDPrice(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestUSDPriceFallback(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusTooManyRequests, `{}`},
		{"missing field", http.StatusOK, `{"bitcoin":{"usd":1}}`},
		{"not a number", http.StatusOK, `{"ethereum":{"usd":"3000"}}`},
		{"zero", http.StatusOK, `{"ethereum":{"usd":0}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g := newTestGateway(t, srv.URL)
			p := g.USDPrice(context.Background())
			assert.Equal(t, 2500.0, p.USD)
			assert.True(t, p.Fallback)

			// フォールバック値もキャッシュされる
			g.USDPrice(context.Background())
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
		})
	}
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$0.2500", FormatUSD(0.0001, 2500))
	assert.Equal(t, "$250.00", FormatUSD(0.1, 2500))
	assert.Equal(t, "$2,500.00", FormatUSD(1, 2500))
	assert.Equal(t, "$625,000,000.00", FormatUSD(250000, 2500))
	assert.Equal(t, "$999.99", FormatUSD(999.99, 1))
}

func TestFormatEtherWithUSD(t *testing.T) {
	assert.Equal(t, "1.5000 ETH (~$3,750.00)", FormatEtherWithUSD(1.5, 2500, ""))
	assert.Equal(t, "0.0100 S (~$25.00)", FormatEtherWithUSD(0.01, 2500, "S"))
}
