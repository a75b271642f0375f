package usecase

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rwa-onchain/chainerr"
	"rwa-onchain/gateway/authapi"
	"rwa-onchain/gateway/contract"
	"rwa-onchain/gateway/ipfs"
	"rwa-onchain/model"
)

const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type fakeAdmin struct {
	contract.AdminContract

	mu        sync.Mutex
	issuers   []common.Address
	managers  []common.Address
	uris      map[common.Address]string
	paused    bool
	issuerErr error

	added    map[string]string
	removed  []string
	assigned []string
	sendErr  error
}

func (f *fakeAdmin) Issuers(context.Context) ([]common.Address, error) {
	return f.issuers, f.issuerErr
}

func (f *fakeAdmin) Managers(context.Context) ([]common.Address, error) {
	return f.managers, nil
}

func (f *fakeAdmin) IssuerMetadata(_ context.Context, a common.Address) (string, error) {
	return f.uris[a], nil
}

func (f *fakeAdmin) ManagerMetadata(_ context.Context, a common.Address) (string, error) {
	uri, ok := f.uris[a]
	if !ok {
		return "", errors.New("execution reverted")
	}
	return uri, nil
}

func (f *fakeAdmin) MarketplacePaused(context.Context) (bool, error) {
	return f.paused, nil
}

func (f *fakeAdmin) record(kind string, a common.Address, uri string) (*model.TxResult, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.added == nil {
		f.added = map[string]string{}
	}
	f.added[kind+":"+a.Hex()] = uri
	return &model.TxResult{TxHash: "0x" + kind, Success: true}, nil
}

func (f *fakeAdmin) AddIssuer(_ context.Context, a common.Address, uri string) (*model.TxResult, error) {
	return f.record("issuer", a, uri)
}

func (f *fakeAdmin) AddManager(_ context.Context, a common.Address, uri string) (*model.TxResult, error) {
	return f.record("manager", a, uri)
}

func (f *fakeAdmin) RemoveIssuer(_ context.Context, a common.Address) (*model.TxResult, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.removed = append(f.removed, "issuer:"+a.Hex())
	return &model.TxResult{TxHash: "0xremove"}, nil
}

func (f *fakeAdmin) RemoveManager(_ context.Context, a common.Address) (*model.TxResult, error) {
	f.removed = append(f.removed, "manager:"+a.Hex())
	return &model.TxResult{TxHash: "0xremove"}, nil
}

func (f *fakeAdmin) PauseMarketplace(context.Context) (*model.TxResult, error) {
	f.paused = !f.paused
	return &model.TxResult{TxHash: "0xpause"}, nil
}

func (f *fakeAdmin) AssignManager(_ context.Context, a common.Address, id *big.Int) (*model.TxResult, error) {
	f.assigned = append(f.assigned, a.Hex()+"/"+id.String())
	return &model.TxResult{TxHash: "0xassign"}, nil
}

type fakeIPFS struct {
	ipfs.Gateway
	profiles map[string]*ipfs.Profile
	pinned   map[string]interface{}
	pinErr   error
}

func (f *fakeIPFS) FetchProfile(_ context.Context, uri string) (*ipfs.Profile, error) {
	p, ok := f.profiles[uri]
	if !ok {
		return nil, errors.New("status 404")
	}
	return p, nil
}

func (f *fakeIPFS) PinJSON(_ context.Context, name string, content interface{}) (string, error) {
	if f.pinErr != nil {
		return "", f.pinErr
	}
	f.pinned = content.(map[string]interface{})
	return "QmProfile", nil
}

type fakeAuth struct {
	got *authapi.RegisterRequest
	err error
}

func (f *fakeAuth) Register(_ context.Context, req authapi.RegisterRequest) error {
	f.got = &req
	return f.err
}

func newTestUsecase(t *testing.T, admin *fakeAdmin, gw *fakeIPFS, auth *fakeAuth) *adminUsecase {
	t.Helper()
	uc := NewAdminUsecase(admin, gw, auth, 2, zaptest.NewLogger(t))
	uc.now = func() time.Time { return time.Date(2025, 5, 4, 12, 0, 0, 0, time.UTC) }
	return uc
}

func addr(n int64) common.Address {
	return common.BigToAddress(big.NewInt(n))
}

func TestOverview(t *testing.T) {
	admin := &fakeAdmin{
		issuers:  []common.Address{addr(1), addr(2), addr(3)},
		managers: []common.Address{addr(4), addr(5)},
		uris: map[common.Address]string{
			addr(1): "ipfs://alice",
			addr(2): "ipfs://broken",
			addr(4): "ipfs://bob",
		},
		paused: true,
	}
	gw := &fakeIPFS{profiles: map[string]*ipfs.Profile{
		"ipfs://alice": {Name: "Alice", Email: "alice@rwa.io", JoinedDate: "2024-06-01", TokensManaged: 3},
		"ipfs://bob":   {Name: "Bob", AssignedTokens: []string{"1", "2"}},
	}}
	uc := newTestUsecase(t, admin, gw, &fakeAuth{})

	got, err := uc.Overview(context.Background())
	require.NoError(t, err)
	assert.True(t, got.MarketplacePaused)
	assert.Equal(t, 3, got.TotalIssuers)
	assert.Equal(t, 2, got.TotalManagers)

	alice := got.Issuers[0]
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, "alice@rwa.io", alice.Email)
	assert.Equal(t, "2024-06-01", alice.JoinedDate)
	assert.Equal(t, int64(3), alice.TokensManaged)

	broken := got.Issuers[1]
	assert.Equal(t, "Issuer 2", broken.Name)
	assert.Equal(t, "issuer2@example.com", broken.Email)
	assert.Equal(t, "ipfs://broken", broken.MetadataURI)

	assert.Equal(t, "Issuer 3", got.Issuers[2].Name)
	assert.Equal(t, "Bob", got.Managers[0].Name)
	assert.Equal(t, "manager1@example.com", got.Managers[0].Email)
	assert.Equal(t, []string{"1", "2"}, got.Managers[0].AssignedTokens)
	assert.Equal(t, "Manager 2", got.Managers[1].Name)
	assert.Equal(t, defaultJoinedDate, got.Managers[1].JoinedDate)
}

func TestOverviewDegrades(t *testing.T) {
	admin := &fakeAdmin{issuerErr: errors.New("missing trie node")}
	uc := newTestUsecase(t, admin, &fakeIPFS{}, &fakeAuth{})

	got, err := uc.Overview(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Issuers)
	assert.Zero(t, got.TotalIssuers)
}

func validForm(role model.Role) AddUserForm {
	return AddUserForm{
		FirstName:       "Hana",
		LastName:        "Sato",
		Email:           "hana@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		WalletAddress:   checksummed,
		Role:            role,
	}
}

func TestAddUser(t *testing.T) {
	t.Run("issuer", func(t *testing.T) {
		admin := &fakeAdmin{}
		gw := &fakeIPFS{}
		auth := &fakeAuth{}
		uc := newTestUsecase(t, admin, gw, auth)

		res, err := uc.AddUser(context.Background(), validForm(model.RoleIssuer))
		require.NoError(t, err)
		assert.Equal(t, "0xissuer", res.Tx.TxHash)
		assert.Equal(t, "Hana Sato", res.User.Name)
		assert.Equal(t, "2025-05-04", res.User.JoinedDate)
		assert.Equal(t, "ipfs://QmProfile", admin.added["issuer:"+checksummed])

		require.NotNil(t, auth.got)
		assert.Equal(t, "issuer", auth.got.Role)
		assert.Equal(t, "secret1", auth.got.ConfirmPassword)

		assert.Equal(t, "issuer-profile", gw.pinned["type"])
		assert.Equal(t, "admin", gw.pinned["createdBy"])
		assert.NotContains(t, gw.pinned, "assignedTokens")
	})

	t.Run("manager", func(t *testing.T) {
		admin := &fakeAdmin{}
		gw := &fakeIPFS{}
		uc := newTestUsecase(t, admin, gw, &fakeAuth{})

		_, err := uc.AddUser(context.Background(), validForm(model.RoleManager))
		require.NoError(t, err)
		assert.Contains(t, admin.added, "manager:"+checksummed)
		assert.Equal(t, "manager-profile", gw.pinned["type"])
		assert.Equal(t, []string{}, gw.pinned["assignedTokens"])
	})

	t.Run("backend rejects", func(t *testing.T) {
		admin := &fakeAdmin{}
		gw := &fakeIPFS{}
		uc := newTestUsecase(t, admin, gw, &fakeAuth{err: errors.New("Email already registered")})

		_, err := uc.AddUser(context.Background(), validForm(model.RoleIssuer))
		assert.EqualError(t, err, "Backend registration failed: Email already registered")
		assert.Nil(t, gw.pinned)
		assert.Empty(t, admin.added)
	})

	t.Run("pin fails", func(t *testing.T) {
		admin := &fakeAdmin{}
		uc := newTestUsecase(t, admin, &fakeIPFS{pinErr: errors.New("timeout")}, &fakeAuth{})

		_, err := uc.AddUser(context.Background(), validForm(model.RoleManager))
		assert.EqualError(t, err, "Failed to upload manager metadata to IPFS")
		assert.Empty(t, admin.added)
	})
}

func TestAddUserValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AddUserForm)
		want   string
	}{
		{"missing email", func(f *AddUserForm) { f.Email = "" }, "Please fill all required fields"},
		{"password mismatch", func(f *AddUserForm) { f.ConfirmPassword = "other12" }, "Passwords do not match"},
		{"short password", func(f *AddUserForm) { f.Password, f.ConfirmPassword = "abc", "abc" }, "Password must be at least 6 characters long"},
		{"short first name", func(f *AddUserForm) { f.FirstName = "H" }, "First name must be at least 2 characters long"},
		{"long last name", func(f *AddUserForm) { f.LastName = strings.Repeat("x", 51) }, "Last name cannot exceed 50 characters"},
		{"bad email", func(f *AddUserForm) { f.Email = "hana@example" }, "Please provide a valid email address"},
		{"bad checksum", func(f *AddUserForm) { f.WalletAddress = "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" }, "Invalid wallet address format or checksum"},
		{"not an address", func(f *AddUserForm) { f.WalletAddress = "0x1234" }, "Invalid wallet address format or checksum"},
		{"unknown role", func(f *AddUserForm) { f.Role = "admin" }, `Invalid user role "admin"`},
	}
	auth := &fakeAuth{}
	uc := newTestUsecase(t, &fakeAdmin{}, &fakeIPFS{}, auth)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm(model.RoleIssuer)
			tt.mutate(&form)
			_, err := uc.AddUser(context.Background(), form)
			assert.Equal(t, chainerr.KindValidation, chainerr.KindOf(err))
			assert.EqualError(t, err, tt.want)
		})
	}
	assert.Nil(t, auth.got)
}

func TestParseAddress(t *testing.T) {
	lower := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	a, err := ParseAddress(lower)
	require.NoError(t, err)
	assert.Equal(t, checksummed, a.Hex())

	_, err = ParseAddress(checksummed)
	assert.NoError(t, err)
}

func TestRemoveUser(t *testing.T) {
	admin := &fakeAdmin{}
	uc := newTestUsecase(t, admin, &fakeIPFS{}, &fakeAuth{})

	_, err := uc.RemoveUser(context.Background(), model.RoleManager, checksummed)
	require.NoError(t, err)
	assert.Equal(t, []string{"manager:" + checksummed}, admin.removed)

	admin.sendErr = errors.New("execution reverted: Not an issuer")
	_, err = uc.RemoveUser(context.Background(), model.RoleIssuer, checksummed)
	assert.EqualError(t, err, "This address is not registered as an issuer")

	_, err = uc.RemoveUser(context.Background(), "owner", checksummed)
	assert.Equal(t, chainerr.KindValidation, chainerr.KindOf(err))
}

func TestToggleMarketplace(t *testing.T) {
	admin := &fakeAdmin{}
	uc := newTestUsecase(t, admin, &fakeIPFS{}, &fakeAuth{})

	paused, res, err := uc.ToggleMarketplace(context.Background())
	require.NoError(t, err)
	assert.True(t, paused)
	assert.Equal(t, "0xpause", res.TxHash)

	paused, _, err = uc.ToggleMarketplace(context.Background())
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestAssignToken(t *testing.T) {
	admin := &fakeAdmin{}
	uc := newTestUsecase(t, admin, &fakeIPFS{}, &fakeAuth{})

	_, err := uc.AssignToken(context.Background(), "0", checksummed)
	require.NoError(t, err)
	assert.Equal(t, []string{checksummed + "/0"}, admin.assigned)

	for in, want := range map[string]string{
		"":    "Please enter a token ID",
		"-1":  "Token ID must be a valid positive number",
		"abc": "Token ID must be a valid positive number",
	} {
		_, err := uc.AssignToken(context.Background(), in, checksummed)
		assert.EqualError(t, err, want, "token id %q", in)
	}
	_, err = uc.AssignToken(context.Background(), "1", "")
	assert.EqualError(t, err, "Manager address is required")
}
