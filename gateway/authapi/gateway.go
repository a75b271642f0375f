package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"rwa-onchain/config"
)

// RegisterRequest はユーザー登録APIの入力
type RegisterRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	WalletAddress   string `json:"walletAddress"`
	Role            string `json:"role"`
}

// Gateway は認証バックエンドとの連携を担当
type Gateway interface {
	// Register は発行者・マネージャーをバックエンドに登録する
	Register(ctx context.Context, req RegisterRequest) error
}

// HTTPGateway は認証バックエンドのREST API実装
type HTTPGateway struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewHTTPGateway は新しい認証APIゲートウェイを作成
func NewHTTPGateway(cfg config.AuthAPIConfig, logger *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger.Named("authapi"),
	}
}

// Register はPOST /api/auth/register を呼び出す
// 2xx以外はバックエンドのメッセージを含むエラーを返す
func (g *HTTPGateway) Register(ctx context.Context, in RegisterRequest) error {
	if g.baseURL == "" {
		return errors.New("auth api base url is not configured")
	}
	data, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encode register request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/auth/register", bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "build register request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("auth api unreachable", zap.Error(err))
		return errors.Wrap(err, "register user")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := backendMessage(body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		g.logger.Warn("auth api rejected registration",
			zap.Int("status", resp.StatusCode),
			zap.String("email", in.Email),
			zap.String("message", msg))
		return errors.Errorf("backend registration failed: %s", msg)
	}

	g.logger.Info("registered user in auth api", zap.String("email", in.Email), zap.String("role", in.Role))
	return nil
}

// backendMessage はエラーレスポンスからメッセージを取り出す
func backendMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"message", "error", "errors.0.msg"} {
			if v := gjson.GetBytes(body, path); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
	}
	return strings.TrimSpace(string(body))
}

var _ Gateway = (*HTTPGateway)(nil)
