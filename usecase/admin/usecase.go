package usecase

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rwa-onchain/chainerr"
	"rwa-onchain/gateway/authapi"
	"rwa-onchain/gateway/contract"
	"rwa-onchain/gateway/ipfs"
	"rwa-onchain/model"
)

const defaultJoinedDate = "2024-01-01"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AdminUsecase は管理画面のビジネスロジック
type AdminUsecase interface {
	// Overview は発行者・マネージャー一覧と停止状態を取得
	Overview(ctx context.Context) (*model.AdminOverview, error)

	// AddUser はユーザーを登録し、コントラクトに追加
	AddUser(ctx context.Context, form AddUserForm) (*AddUserResult, error)

	// RemoveUser は発行者・マネージャーを削除
	RemoveUser(ctx context.Context, role model.Role, address string) (*model.TxResult, error)

	// ToggleMarketplace はマーケットプレイスの停止状態を切り替え、新しい状態を返す
	ToggleMarketplace(ctx context.Context) (bool, *model.TxResult, error)

	// AssignToken はトークンをマネージャーに割り当て
	AssignToken(ctx context.Context, tokenID, manager string) (*model.TxResult, error)
}

// AddUserForm はユーザー追加フォーム
type AddUserForm struct {
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Email           string     `json:"email"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"confirm_password"`
	WalletAddress   string     `json:"wallet_address"`
	Role            model.Role `json:"role"`
}

// AddUserResult はユーザー追加の結果
type AddUserResult struct {
	User model.User      `json:"user"`
	Tx   *model.TxResult `json:"tx"`
}

type adminUsecase struct {
	admin       contract.AdminContract
	ipfs        ipfs.Gateway
	auth        authapi.Gateway
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

func NewAdminUsecase(admin contract.AdminContract, gw ipfs.Gateway, auth authapi.Gateway, concurrency int, logger *zap.Logger) *adminUsecase {
	if concurrency < 1 {
		concurrency = 1
	}
	return &adminUsecase{
		admin:       admin,
		ipfs:        gw,
		auth:        auth,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger.Named("admin"),
	}
}

// Overview は一覧を取得する。読み取りに失敗した項目は空の値になる
func (uc *adminUsecase) Overview(ctx context.Context) (*model.AdminOverview, error) {
	issuers, err := uc.admin.Issuers(ctx)
	if err != nil {
		uc.logger.Warn("failed to load issuers", zap.Error(err))
	}
	managers, err := uc.admin.Managers(ctx)
	if err != nil {
		uc.logger.Warn("failed to load managers", zap.Error(err))
	}
	paused, err := uc.admin.MarketplacePaused(ctx)
	if err != nil {
		uc.logger.Warn("failed to load marketplace status", zap.Error(err))
	}

	issuerUsers, err := uc.users(ctx, model.RoleIssuer, issuers, uc.admin.IssuerMetadata)
	if err != nil {
		return nil, err
	}
	managerUsers, err := uc.users(ctx, model.RoleManager, managers, uc.admin.ManagerMetadata)
	if err != nil {
		return nil, err
	}
	return &model.AdminOverview{
		Issuers:           issuerUsers,
		Managers:          managerUsers,
		MarketplacePaused: paused,
		TotalIssuers:      len(issuerUsers),
		TotalManagers:     len(managerUsers),
	}, nil
}

type metadataReader func(ctx context.Context, addr common.Address) (string, error)

// users はアドレスごとにプロフィールを並行取得する
func (uc *adminUsecase) users(ctx context.Context, role model.Role, addrs []common.Address, readURI metadataReader) ([]model.User, error) {
	users := make([]model.User, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, addr := range addrs {
		g.Go(func() error {
			users[i] = uc.user(gctx, role, i, addr, readURI)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return users, nil
}

func (uc *adminUsecase) user(ctx context.Context, role model.Role, i int, addr common.Address, readURI metadataReader) model.User {
	u := FallbackUser(role, i, addr)
	uri, err := readURI(ctx, addr)
	if err != nil || uri == "" {
		if err != nil {
			uc.logger.Debug("profile uri unavailable", zap.String("address", addr.Hex()), zap.Error(err))
		}
		return u
	}
	u.MetadataURI = uri

	p, err := uc.ipfs.FetchProfile(ctx, uri)
	if err != nil {
		uc.logger.Debug("profile fetch failed", zap.String("address", addr.Hex()), zap.String("uri", uri), zap.Error(err))
		return u
	}
	if p.Name != "" {
		u.Name = p.Name
	}
	if p.Email != "" {
		u.Email = p.Email
	}
	if p.JoinedDate != "" {
		u.JoinedDate = p.JoinedDate
	}
	u.TokensManaged = p.TokensManaged
	u.TotalVolume = p.TotalVolume
	if role == model.RoleManager {
		u.AssignedTokens = p.AssignedTokens
	}
	return u
}

// FallbackUser はプロフィールがないユーザーの表示 ("Issuer 1", "issuer1@example.com" など)
func FallbackUser(role model.Role, i int, addr common.Address) model.User {
	label := "Issuer"
	if role == model.RoleManager {
		label = "Manager"
	}
	return model.User{
		Address:    addr.Hex(),
		Name:       fmt.Sprintf("%s %d", label, i+1),
		Email:      fmt.Sprintf("%s%d@example.com", role, i+1),
		Role:       role,
		Status:     "active",
		JoinedDate: defaultJoinedDate,
	}
}

// ParseAddress は16進アドレスを検証する
// 大文字小文字が混在する場合はEIP-55チェックサムが一致しなければならない
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, chainerr.Validationf("Invalid wallet address format or checksum")
	}
	addr := common.HexToAddress(s)
	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && "0x"+body != addr.Hex() {
		return common.Address{}, chainerr.Validationf("Invalid wallet address format or checksum")
	}
	return addr, nil
}

func (f *AddUserForm) validate() (common.Address, error) {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
	if f.FirstName == "" || f.LastName == "" || f.Email == "" || f.Password == "" || f.WalletAddress == "" {
		return common.Address{}, chainerr.Validationf("Please fill all required fields")
	}
	if f.Role != model.RoleIssuer && f.Role != model.RoleManager {
		return common.Address{}, chainerr.Validationf("Invalid user role %q", f.Role)
	}
	if f.Password != f.ConfirmPassword {
		return common.Address{}, chainerr.Validationf("Passwords do not match")
	}
	if len(f.Password) < 6 {
		return common.Address{}, chainerr.Validationf("Password must be at least 6 characters long")
	}
	for _, n := range []struct{ label, value string }{{"First name", f.FirstName}, {"Last name", f.LastName}} {
		switch l := len([]rune(n.value)); {
		case l < 2:
			return common.Address{}, chainerr.Validationf("%s must be at least 2 characters long", n.label)
		case l > 50:
			return common.Address{}, chainerr.Validationf("%s cannot exceed 50 characters", n.label)
		}
	}
	if !emailPattern.MatchString(f.Email) {
		return common.Address{}, chainerr.Validationf("Please provide a valid email address")
	}
	return ParseAddress(f.WalletAddress)
}

// profileDocument はピン留めするプロフィールJSON
func profileDocument(f AddUserForm, joined string) map[string]interface{} {
	doc := map[string]interface{}{
		"name":          f.FirstName + " " + f.LastName,
		"email":         f.Email,
		"walletAddress": f.WalletAddress,
		"role":          string(f.Role),
		"joinedDate":    joined,
		"createdBy":     "admin",
		"type":          string(f.Role) + "-profile",
	}
	if f.Role == model.RoleManager {
		doc["tokensManaged"] = 0
		doc["totalVolume"] = 0
		doc["assignedTokens"] = []string{}
	}
	return doc
}

// AddUser は 認証APIへの登録 → プロフィールのピン留め → addIssuer/addManager の順に実行する
func (uc *adminUsecase) AddUser(ctx context.Context, form AddUserForm) (*AddUserResult, error) {
	addr, err := form.validate()
	if err != nil {
		return nil, err
	}

	err = uc.auth.Register(ctx, authapi.RegisterRequest{
		FirstName:       form.FirstName,
		LastName:        form.LastName,
		Email:           form.Email,
		Password:        form.Password,
		ConfirmPassword: form.ConfirmPassword,
		WalletAddress:   form.WalletAddress,
		Role:            string(form.Role),
	})
	if err != nil {
		uc.logger.Error("backend registration failed", zap.String("email", form.Email), zap.Error(err))
		return nil, chainerr.New(chainerr.KindUnknown, "Backend registration failed: "+err.Error())
	}

	joined := uc.now().UTC().Format("2006-01-02")
	hash, err := uc.ipfs.PinJSON(ctx, string(form.Role)+"-"+addr.Hex(), profileDocument(form, joined))
	if err != nil {
		uc.logger.Error("failed to pin profile", zap.String("address", addr.Hex()), zap.Error(err))
		if form.Role == model.RoleManager {
			return nil, chainerr.New(chainerr.KindNetwork, "Failed to upload manager metadata to IPFS")
		}
		return nil, chainerr.New(chainerr.KindNetwork, "Failed to upload metadata to IPFS")
	}
	metadataURI := "ipfs://" + hash

	var res *model.TxResult
	if form.Role == model.RoleIssuer {
		res, err = uc.admin.AddIssuer(ctx, addr, metadataURI)
	} else {
		res, err = uc.admin.AddManager(ctx, addr, metadataURI)
	}
	if err != nil {
		return nil, chainerr.Wrap(chainerr.OpAddUser, err)
	}

	uc.logger.Info("user added",
		zap.String("role", string(form.Role)),
		zap.String("address", addr.Hex()),
		zap.String("tx", res.TxHash))
	return &AddUserResult{
		User: model.User{
			Address:     addr.Hex(),
			Name:        form.FirstName + " " + form.LastName,
			Email:       form.Email,
			Role:        form.Role,
			Status:      "active",
			MetadataURI: metadataURI,
			JoinedDate:  joined,
		},
		Tx: res,
	}, nil
}

// RemoveUser はroleに応じてremoveIssuer/removeManagerを送信
func (uc *adminUsecase) RemoveUser(ctx context.Context, role model.Role, address string) (*model.TxResult, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	var res *model.TxResult
	switch role {
	case model.RoleIssuer:
		res, err = uc.admin.RemoveIssuer(ctx, addr)
	case model.RoleManager:
		res, err = uc.admin.RemoveManager(ctx, addr)
	default:
		return nil, chainerr.Validationf("Invalid user role %q", role)
	}
	if err != nil {
		return nil, chainerr.Wrap(chainerr.OpRemoveUser, err)
	}
	uc.logger.Info("user removed", zap.String("role", string(role)), zap.String("address", addr.Hex()), zap.String("tx", res.TxHash))
	return res, nil
}

// ToggleMarketplace はpauseMarketplaceを送信し、確定後の状態を読み直す
func (uc *adminUsecase) ToggleMarketplace(ctx context.Context) (bool, *model.TxResult, error) {
	res, err := uc.admin.PauseMarketplace(ctx)
	if err != nil {
		return false, nil, chainerr.Wrap(chainerr.OpToggleMarketplace, err)
	}
	paused, err := uc.admin.MarketplacePaused(ctx)
	if err != nil {
		return false, res, chainerr.Wrap(chainerr.OpToggleMarketplace, err)
	}
	uc.logger.Info("marketplace toggled", zap.Bool("paused", paused), zap.String("tx", res.TxHash))
	return paused, res, nil
}

// AssignToken はassignManagerを送信
func (uc *adminUsecase) AssignToken(ctx context.Context, tokenID, manager string) (*model.TxResult, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil, chainerr.Validationf("Please enter a token ID")
	}
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok || id.Sign() < 0 {
		return nil, chainerr.Validationf("Token ID must be a valid positive number")
	}
	if strings.TrimSpace(manager) == "" {
		return nil, chainerr.Validationf("Manager address is required")
	}
	addr, err := ParseAddress(manager)
	if err != nil {
		return nil, err
	}

	res, err := uc.admin.AssignManager(ctx, addr, id)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.OpAssignManager, err)
	}
	uc.logger.Info("token assigned", zap.String("token_id", id.String()), zap.String("manager", addr.Hex()), zap.String("tx", res.TxHash))
	return res, nil
}

var _ AdminUsecase = (*adminUsecase)(nil)
