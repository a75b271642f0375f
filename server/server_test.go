package server

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rwa-onchain/chainerr"
	"rwa-onchain/config"
	adminHandler "rwa-onchain/handler/admin"
	"rwa-onchain/handler/httpx"
	investorHandler "rwa-onchain/handler/investor"
	issuerHandler "rwa-onchain/handler/issuer"
	managerHandler "rwa-onchain/handler/manager"
	marketplaceHandler "rwa-onchain/handler/marketplace"
	paymentHandler "rwa-onchain/handler/payment"
	"rwa-onchain/model"
	adminUsecase "rwa-onchain/usecase/admin"
	investorUsecase "rwa-onchain/usecase/investor"
	issuerUsecase "rwa-onchain/usecase/issuer"
	managerUsecase "rwa-onchain/usecase/manager"
	marketplaceUsecase "rwa-onchain/usecase/marketplace"
)

type fakeMarketplace struct {
	marketplaceUsecase.MarketplaceUsecase
	confirmed *marketplaceUsecase.PurchaseRequest
}

func (f *fakeMarketplace) Listings(context.Context) (*model.ListingsResult, error) {
	return &model.ListingsResult{Listings: []model.Listing{
		{TokenID: "1", AssetType: "Real Estate"},
		{TokenID: "2", AssetType: "Commodity"},
		{TokenID: "3", AssetType: "Real Estate"},
	}}, nil
}

func (f *fakeMarketplace) QuoteBuy(_ context.Context, id *big.Int, qty int64) (*model.Quote, error) {
	if qty > 5 {
		return nil, chainerr.Validationf("Quantity must be between 1 and 5")
	}
	return &model.Quote{TokenID: id.String(), Quantity: qty, Total: big.NewInt(qty * 100)}, nil
}

func (f *fakeMarketplace) Buy(context.Context, *big.Int, int64) (*model.TxResult, *model.Quote, error) {
	return nil, nil, chainerr.Wrap(chainerr.OpBuy, errors.New("insufficient funds for gas * price + value"))
}

func (f *fakeMarketplace) ConfirmPurchase(_ context.Context, req marketplaceUsecase.PurchaseRequest) (*model.PurchaseConfirmation, error) {
	f.confirmed = &req
	return &model.PurchaseConfirmation{
		Payment:  &model.PaymentCheck{TxHash: req.TxHash, Status: model.StatusPaid},
		TokenID:  req.TokenID.String(),
		Quantity: req.Quantity,
	}, nil
}

func (f *fakeMarketplace) Activity(limit int) []model.ContractEvent {
	return make([]model.ContractEvent, limit)
}

type fakePrices struct{}

func (fakePrices) USDPrice(context.Context) model.PriceData {
	return model.PriceData{USD: 2000}
}

type fakeInvestor struct {
	investorUsecase.InvestorUsecase
}

func (fakeInvestor) Portfolio(_ context.Context, holder common.Address) (*model.Portfolio, error) {
	return &model.Portfolio{TotalAssets: 1, CurrentValue: 1.5}, nil
}

type fakeIssuer struct {
	issuerUsecase.IssuerUsecase
}

func (fakeIssuer) IsAuthorized(context.Context, common.Address) (bool, error) {
	return false, nil
}

func (fakeIssuer) CreateAsset(context.Context, issuerUsecase.CreateAssetForm) (*issuerUsecase.CreateAssetResult, error) {
	return nil, chainerr.NotAuthorized("You are not authorized to create tokens. Please contact the admin.")
}

type fakeAdmin struct {
	adminUsecase.AdminUsecase
	removed string
}

func (f *fakeAdmin) RemoveUser(_ context.Context, role model.Role, address string) (*model.TxResult, error) {
	f.removed = string(role) + "/" + address
	return &model.TxResult{TxHash: "0xremove"}, nil
}

type fakeManager struct {
	managerUsecase.ManagerUsecase
}

func (fakeManager) IncomeHistory(context.Context, common.Address) ([]model.IncomeRecord, error) {
	return []model.IncomeRecord{{ID: "r1", Status: "distributed"}}, nil
}

func (fakeManager) AssignedAssets(context.Context, common.Address) ([]model.AssignedAsset, error) {
	panic("boom")
}

type fixture struct {
	server *httptest.Server
	market *fakeMarketplace
	admin  *fakeAdmin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	market := &fakeMarketplace{}
	admin := &fakeAdmin{}
	h := Handlers{
		Marketplace: marketplaceHandler.NewMarketplaceHandler(market, fakePrices{}, map[string]string{"marketplace": "0xabc"}, "S", logger),
		Payment:     paymentHandler.NewPaymentHandler(market),
		Investor:    investorHandler.NewInvestorHandler(fakeInvestor{}),
		Issuer:      issuerHandler.NewIssuerHandler(fakeIssuer{}),
		Admin:       adminHandler.NewAdminHandler(admin),
		Manager:     managerHandler.NewManagerHandler(fakeManager{}),
	}
	srv := httptest.NewServer(NewRouter(h, config.ServerConfig{AllowedOrigins: []string{"https://app.example"}}, NewMetrics(), logger))
	t.Cleanup(srv.Close)
	return &fixture{server: srv, market: market, admin: admin}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, r)
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, data []byte) httpx.ErrorBody {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t)

	resp, data := f.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(data))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	req, err := http.NewRequest("GET", f.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "req-42")
	resp2, err := f.server.Client().Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, "req-42", resp2.Header.Get(RequestIDHeader))
}

func TestListingsFilterAndGroup(t *testing.T) {
	f := newFixture(t)

	_, data := f.do(t, "GET", "/api/v1/listings?type=real%20estate", "")
	var filtered marketplaceHandler.ListingsResponse
	require.NoError(t, json.Unmarshal(data, &filtered))
	require.Len(t, filtered.Listings, 2)
	assert.Equal(t, "3", filtered.Listings[1].TokenID)
	assert.Nil(t, filtered.Groups)

	_, data = f.do(t, "GET", "/api/v1/listings?group=type", "")
	var grouped marketplaceHandler.ListingsResponse
	require.NoError(t, json.Unmarshal(data, &grouped))
	assert.Len(t, grouped.Groups["Real Estate"], 2)
	assert.Len(t, grouped.Groups["Commodity"], 1)
	assert.Empty(t, grouped.Groups["Stocks"])
}

func TestQuoteErrors(t *testing.T) {
	f := newFixture(t)

	resp, data := f.do(t, "GET", "/api/v1/listings/4/quote?quantity=2", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"total_wei":200`)

	resp, data = f.do(t, "GET", "/api/v1/listings/4/quote?quantity=9", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, httpx.ErrorBody{Error: "Quantity must be between 1 and 5", Kind: chainerr.KindValidation}, decodeError(t, data))

	resp, data = f.do(t, "GET", "/api/v1/listings/abc/quote", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, `Invalid token ID "abc"`, decodeError(t, data).Error)

	resp, _ = f.do(t, "GET", "/api/v1/listings/4/quote?quantity=x", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBuyInsufficientFunds(t *testing.T) {
	f := newFixture(t)

	resp, data := f.do(t, "POST", "/api/v1/listings/1/buy", `{"quantity":1}`)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, chainerr.KindInsufficientFunds, decodeError(t, data).Kind)

	resp, data = f.do(t, "POST", "/api/v1/listings/1/buy", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request body", decodeError(t, data).Error)
}

func TestConfirmPurchase(t *testing.T) {
	f := newFixture(t)

	resp, data := f.do(t, "POST", "/api/v1/purchases/confirm", `{"tx_hash":"0x01","token_id":"7","quantity":2,"buyer_wallet":"0xb"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.NotNil(t, f.market.confirmed)
	assert.Equal(t, "7", f.market.confirmed.TokenID.String())
	assert.Equal(t, int64(2), f.market.confirmed.Quantity)
	assert.Equal(t, "0xb", f.market.confirmed.Buyer)
	assert.Contains(t, string(data), `"status":"paid"`)
}

func TestActivityAndPrice(t *testing.T) {
	f := newFixture(t)

	_, data := f.do(t, "GET", "/api/v1/activity?limit=3", "")
	var activity struct {
		Events []model.ContractEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(data, &activity))
	assert.Len(t, activity.Events, 3)

	_, data = f.do(t, "GET", "/api/v1/price", "")
	var p marketplaceHandler.PriceResponse
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, 2000.0, p.USD)
	assert.Equal(t, "1.0000 S (~$2,000.00)", p.Label)
}

func TestRoleEndpoints(t *testing.T) {
	f := newFixture(t)
	addr := "0x00000000000000000000000000000000000000a1"

	resp, data := f.do(t, "GET", "/api/v1/investors/"+addr+"/portfolio", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"total_assets":1`)

	resp, _ = f.do(t, "GET", "/api/v1/investors/not-an-address/portfolio", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, data = f.do(t, "GET", "/api/v1/issuers/"+addr+"/authorized", "")
	assert.Contains(t, string(data), `"authorized":false`)

	resp, data = f.do(t, "POST", "/api/v1/assets", `{"title":"x"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, chainerr.KindNotAuthorized, decodeError(t, data).Kind)

	resp, _ = f.do(t, "DELETE", "/api/v1/admin/users/manager/"+addr, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "manager/"+addr, f.admin.removed)

	_, data = f.do(t, "GET", "/api/v1/managers/"+addr+"/income", "")
	assert.Contains(t, string(data), `"id":"r1"`)
}

func TestPanicRecovered(t *testing.T) {
	f := newFixture(t)

	resp, data := f.do(t, "GET", "/api/v1/managers/0x00000000000000000000000000000000000000a1/assets", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", decodeError(t, data).Error)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest("OPTIONS", f.server.URL+"/api/v1/listings", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)

	f.do(t, "GET", "/api/v1/listings/1/quote", "")
	resp, data := f.do(t, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `rwa_http_requests_total{method="GET",route="/api/v1/listings/{tokenId}/quote",status="200"} 1`)
}

func TestRunShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), zaptest.NewLogger(t))
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
