package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"rwa-onchain/cache"
	"rwa-onchain/config"
	"rwa-onchain/model"
)

// bareCID はプレフィックスなしのCIDとみなす文字列
var bareCID = regexp.MustCompile(`^[a-zA-Z0-9]{46,59}$`)

// Gateway はIPFS上のメタデータ取得・ピン留めを担当
type Gateway interface {
	// ResolveURI はipfs://やCIDをHTTPゲートウェイURLに変換
	ResolveURI(uri string) string

	// FetchMetadata は資産メタデータを取得
	FetchMetadata(ctx context.Context, uri string) (*model.AssetMetadata, error)

	// FetchProfile は発行者・マネージャーのプロフィールを取得
	FetchProfile(ctx context.Context, uri string) (*Profile, error)

	// PinJSON はJSONをピン留めしてIPFSハッシュを返す
	PinJSON(ctx context.Context, name string, content interface{}) (string, error)
}

// Profile は発行者・マネージャーのプロフィールメタデータ
type Profile struct {
	Name           string
	Email          string
	WalletAddress  string
	Role           string
	JoinedDate     string
	TokensManaged  int64
	TotalVolume    float64
	AssignedTokens []string
}

// PinataGateway はPinataゲートウェイ経由の実装
type PinataGateway struct {
	httpClient   *http.Client
	gatewayURL   string
	pinataURL    string
	jwt          string
	fetchTimeout time.Duration
	store        cache.Store
	ttl          time.Duration
	logger       *zap.Logger
}

// NewPinataGateway は新しいIPFSゲートウェイを作成
func NewPinataGateway(cfg config.IPFSConfig, store cache.Store, logger *zap.Logger) *PinataGateway {
	gw := cfg.GatewayURL
	if !strings.HasSuffix(gw, "/") {
		gw += "/"
	}
	return &PinataGateway{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		gatewayURL:   gw,
		pinataURL:    strings.TrimRight(cfg.PinataURL, "/"),
		jwt:          cfg.PinataJWT,
		fetchTimeout: cfg.FetchTimeout,
		store:        store,
		ttl:          cfg.MetadataTTL,
		logger:       logger.Named("ipfs"),
	}
}

// ResolveURI はipfs://やCIDをHTTPゲートウェイURLに変換
// http(s)はそのまま、それ以外の形式も変更しない
func (g *PinataGateway) ResolveURI(uri string) string {
	return ResolveURI(g.gatewayURL, uri)
}

// ResolveURI はゲートウェイのベースURLを指定してURIを変換する
func ResolveURI(gatewayURL, uri string) string {
	switch {
	case uri == "":
		return ""
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri
	case strings.HasPrefix(uri, "ipfs://"):
		return gatewayURL + strings.TrimPrefix(uri, "ipfs://")
	case bareCID.MatchString(uri):
		return gatewayURL + uri
	default:
		return uri
	}
}

// FetchMetadata は資産メタデータを取得 (キャッシュ優先)
func (g *PinataGateway) FetchMetadata(ctx context.Context, uri string) (*model.AssetMetadata, error) {
	body, err := g.fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	return ParseMetadata(body, g.ResolveURI)
}

// FetchProfile は発行者・マネージャーのプロフィールを取得
func (g *PinataGateway) FetchProfile(ctx context.Context, uri string) (*Profile, error) {
	body, err := g.fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	return ParseProfile(body)
}

func (g *PinataGateway) fetch(ctx context.Context, uri string) ([]byte, error) {
	if uri == "" {
		return nil, errors.New("empty metadata uri")
	}
	key := "ipfs:" + uri
	if g.store != nil {
		if b, ok, err := g.store.Get(ctx, key); err == nil && ok {
			return b, nil
		} else if err != nil {
			g.logger.Warn("metadata cache read failed", zap.String("uri", uri), zap.Error(err))
		}
	}

	url := g.ResolveURI(uri)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, errors.Errorf("unsupported metadata uri %q", uri)
	}

	fetchCtx := ctx
	if g.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, g.fetchTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build metadata request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch metadata %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch metadata %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read metadata body")
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.Errorf("metadata at %s is not valid JSON", url)
	}

	if g.store != nil {
		if err := g.store.Set(ctx, key, body, g.ttl); err != nil {
			g.logger.Warn("metadata cache write failed", zap.String("uri", uri), zap.Error(err))
		}
	}
	g.logger.Debug("fetched metadata", zap.String("uri", uri), zap.Int("bytes", len(body)))
	return body, nil
}

// ParseMetadata はメタデータJSONを読み取り、画像URIを変換する
func ParseMetadata(body []byte, resolve func(string) string) (*model.AssetMetadata, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid metadata json")
	}
	r := gjson.ParseBytes(body)
	m := &model.AssetMetadata{
		Name:        r.Get("name").String(),
		Description: r.Get("description").String(),
		Image:       r.Get("image").String(),
		TokenType:   r.Get("tokenType").String(),
		CreatedAt:   r.Get("createdAt").String(),
		CreatedBy:   r.Get("createdBy").String(),
	}
	r.Get("attributes").ForEach(func(_, a gjson.Result) bool {
		m.Attributes = append(m.Attributes, model.Attribute{
			TraitType: a.Get("trait_type").String(),
			Value:     a.Get("value").String(),
		})
		return true
	})
	if details := r.Get("assetDetails"); details.IsObject() {
		m.AssetDetails = make(map[string]string)
		details.ForEach(func(k, v gjson.Result) bool {
			m.AssetDetails[k.String()] = v.String()
			return true
		})
	}
	if resolve != nil {
		m.Image = resolve(m.Image)
	}
	return m, nil
}

// ParseProfile はプロフィールJSONを読み取る
func ParseProfile(body []byte) (*Profile, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid profile json")
	}
	r := gjson.ParseBytes(body)
	p := &Profile{
		Name:          r.Get("name").String(),
		Email:         r.Get("email").String(),
		WalletAddress: r.Get("walletAddress").String(),
		Role:          r.Get("role").String(),
		JoinedDate:    r.Get("joinedDate").String(),
		TokensManaged: r.Get("tokensManaged").Int(),
		TotalVolume:   r.Get("totalVolume").Float(),
	}
	for _, t := range r.Get("assignedTokens").Array() {
		p.AssignedTokens = append(p.AssignedTokens, t.String())
	}
	return p, nil
}

// PinJSON はPinataにJSONをピン留めしてIPFSハッシュを返す
func (g *PinataGateway) PinJSON(ctx context.Context, name string, content interface{}) (string, error) {
	if g.jwt == "" {
		return "", errors.New("pinata jwt is not configured")
	}
	payload := map[string]interface{}{
		"pinataContent":  content,
		"pinataMetadata": map[string]string{"name": name},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "encode pin payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.pinataURL+"/pinning/pinJSONToIPFS", bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "build pin request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.jwt)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "pin json")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "read pin response")
	}
	if resp.StatusCode >= 300 {
		return "", errors.Errorf("pinata returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	hash := gjson.GetBytes(body, "IpfsHash").String()
	if hash == "" {
		return "", errors.New("pinata response missing IpfsHash")
	}
	g.logger.Info("pinned json to ipfs", zap.String("name", name), zap.String("hash", hash))
	return hash, nil
}
