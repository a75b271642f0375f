package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"rwa-onchain/model"
)

// AdminContract は管理者レジストリとの連携
type AdminContract interface {
	Owner(ctx context.Context) (common.Address, error)
	Issuers(ctx context.Context) ([]common.Address, error)
	Managers(ctx context.Context) ([]common.Address, error)
	IssuerMetadata(ctx context.Context, issuer common.Address) (string, error)
	ManagerMetadata(ctx context.Context, manager common.Address) (string, error)
	MarketplacePaused(ctx context.Context) (bool, error)
	ManagerTokens(ctx context.Context, manager common.Address) ([]*big.Int, error)

	AddIssuer(ctx context.Context, issuer common.Address, metadataURI string) (*model.TxResult, error)
	RemoveIssuer(ctx context.Context, issuer common.Address) (*model.TxResult, error)
	AddManager(ctx context.Context, manager common.Address, metadataURI string) (*model.TxResult, error)
	RemoveManager(ctx context.Context, manager common.Address) (*model.TxResult, error)
	AssignManager(ctx context.Context, manager common.Address, tokenID *big.Int) (*model.TxResult, error)
	PauseMarketplace(ctx context.Context) (*model.TxResult, error)
}

func (g *ChainGateway) Owner(ctx context.Context) (common.Address, error) {
	out, err := g.call(ctx, g.admin, nil, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return toAddress(out[0]), nil
}

// Issuers は登録済みの発行者一覧を取得
func (g *ChainGateway) Issuers(ctx context.Context) ([]common.Address, error) {
	out, err := g.call(ctx, g.admin, nil, "getAllIssuers")
	if err != nil {
		return nil, err
	}
	return toAddresses(out[0]), nil
}

// Managers は登録済みのマネージャー一覧を取得
func (g *ChainGateway) Managers(ctx context.Context) ([]common.Address, error) {
	out, err := g.call(ctx, g.admin, nil, "getAllManagers")
	if err != nil {
		return nil, err
	}
	return toAddresses(out[0]), nil
}

func (g *ChainGateway) IssuerMetadata(ctx context.Context, issuer common.Address) (string, error) {
	out, err := g.call(ctx, g.admin, nil, "issuerMetadata", issuer)
	if err != nil {
		return "", err
	}
	return toString(out[0]), nil
}

func (g *ChainGateway) ManagerMetadata(ctx context.Context, manager common.Address) (string, error) {
	out, err := g.call(ctx, g.admin, nil, "managerMetadata", manager)
	if err != nil {
		return "", err
	}
	return toString(out[0]), nil
}

// MarketplacePaused はマーケットプレイスが一時停止中か取得
func (g *ChainGateway) MarketplacePaused(ctx context.Context) (bool, error) {
	out, err := g.call(ctx, g.admin, nil, "marketplacePaused")
	if err != nil {
		return false, err
	}
	return toBool(out[0]), nil
}

// ManagerTokens はマネージャーに割り当てられたトークンID一覧を取得
func (g *ChainGateway) ManagerTokens(ctx context.Context, manager common.Address) ([]*big.Int, error) {
	out, err := g.call(ctx, g.admin, nil, "getManagerTokens", manager)
	if err != nil {
		return nil, err
	}
	return toBigs(out[0]), nil
}

func (g *ChainGateway) AddIssuer(ctx context.Context, issuer common.Address, metadataURI string) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.admin, txOpts{}, "addIssuer", issuer, metadataURI)
	return res, err
}

func (g *ChainGateway) RemoveIssuer(ctx context.Context, issuer common.Address) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.admin, txOpts{}, "removeIssuer", issuer)
	return res, err
}

func (g *ChainGateway) AddManager(ctx context.Context, manager common.Address, metadataURI string) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.admin, txOpts{}, "addManager", manager, metadataURI)
	return res, err
}

func (g *ChainGateway) RemoveManager(ctx context.Context, manager common.Address) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.admin, txOpts{}, "removeManager", manager)
	return res, err
}

// AssignManager はトークンの運用マネージャーを割り当てる
func (g *ChainGateway) AssignManager(ctx context.Context, manager common.Address, tokenID *big.Int) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.admin, txOpts{}, "assignManager", manager, tokenID)
	return res, err
}

// PauseMarketplace は一時停止状態を切り替える
func (g *ChainGateway) PauseMarketplace(ctx context.Context) (*model.TxResult, error) {
	_, res, err := g.transact(ctx, g.admin, txOpts{}, "pauseMarketplace")
	return res, err
}
