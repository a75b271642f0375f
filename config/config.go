// Package config はサービス全体の設定 (YAML + 環境変数) を扱う
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// コントラクト名
const (
	ContractAdmin           = "ADMIN"
	ContractToken           = "ERC1155_CORE"
	ContractIssuer          = "ISSUER"
	ContractMarketplace     = "MARKETPLACE"
	ContractPaymentSplitter = "PAYMENT_SPLITTER"
)

// Config はサービスの設定
type Config struct {
	Network   NetworkConfig     `yaml:"network"`
	Contracts map[string]string `yaml:"contracts"`
	Signer    SignerConfig      `yaml:"signer"`
	Fees      FeeConfig         `yaml:"fees"`
	Price     PriceConfig       `yaml:"price"`
	IPFS      IPFSConfig        `yaml:"ipfs"`
	Retry     RetryConfig       `yaml:"retry"`
	Cache     CacheConfig       `yaml:"cache"`
	AuthAPI   AuthAPIConfig     `yaml:"auth_api"`
	Events    EventsConfig      `yaml:"events"`
	Server    ServerConfig      `yaml:"server"`
	Log       LogConfig         `yaml:"log"`
}

// NetworkConfig はチェーン設定
type NetworkConfig struct {
	Name          string   `yaml:"name"`
	ChainID       int64    `yaml:"chain_id"`
	RPCURL        string   `yaml:"rpc_url"`
	FallbackRPCs  []string `yaml:"fallback_rpc_urls"`
	WSURL         string   `yaml:"ws_url"`
	BlockExplorer string   `yaml:"block_explorer"`
	Currency      string   `yaml:"currency_symbol"`
	Decimals      int      `yaml:"currency_decimals"`
}

// SignerConfig は署名用ウォレットの設定
type SignerConfig struct {
	PrivateKey string `yaml:"private_key"`
	GasLimit   uint64 `yaml:"gas_limit"`
}

// FeeConfig はプラットフォーム手数料 (basis points)
type FeeConfig struct {
	BuyFeeBps  int64 `yaml:"buy_fee_bps"`
	SellFeeBps int64 `yaml:"sell_fee_bps"`
}

// PriceConfig はUSD換算レート取得の設定
type PriceConfig struct {
	URL         string        `yaml:"url"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	FallbackUSD float64       `yaml:"fallback_usd"`
	Timeout     time.Duration `yaml:"timeout"`
}

// IPFSConfig はIPFSゲートウェイ・ピン留めサービスの設定
type IPFSConfig struct {
	GatewayURL   string        `yaml:"gateway_url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	PinataURL    string        `yaml:"pinata_url"`
	PinataJWT    string        `yaml:"pinata_jwt"`
	MetadataTTL  time.Duration `yaml:"metadata_ttl"`
	Concurrency  int           `yaml:"concurrency"`
}

// RetryConfig はRPC読み取りのリトライ設定
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// CacheConfig はキャッシュバックエンドの設定
type CacheConfig struct {
	Backend       string `yaml:"backend"` // memory | redis
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// AuthAPIConfig はユーザー登録用バックエンドの設定
type AuthAPIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// EventsConfig はイベント購読の設定
// PollInterval は購読できないRPCでログをポーリングする間隔
type EventsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	ScanBlocks   uint64        `yaml:"scan_blocks"`
	FeedSize     int           `yaml:"feed_size"`
	WebhookURL   string        `yaml:"webhook_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig はロガーの設定
type LogConfig struct {
	Level      string `yaml:"level"`
	Encoding   string `yaml:"encoding"` // json | console
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default はSonic Testnet向けのデフォルト設定を返す
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			Name:          "Sonic Testnet Network",
			ChainID:       14601,
			RPCURL:        "https://rpc.testnet.soniclabs.com",
			BlockExplorer: "https://testnet.sonicscan.org",
			Currency:      "S",
			Decimals:      18,
		},
		Contracts: map[string]string{
			ContractAdmin:           "0x071A4FCcEEe657c8d4729F664957e1777f6A719E",
			ContractToken:           "0xF4Ef996bF8d60B1C17aFb174f3D0a5434139001c",
			ContractIssuer:          "0xDc00F1531fdbB8995D03569A0c1bcd26dF84caC1",
			ContractMarketplace:     "0x7EBE05a43847d779b6e46bB1e5F9506155cAb249",
			ContractPaymentSplitter: "0xf344dd57a07Cf302F75502aa2Eb846593fDCa323",
		},
		Signer: SignerConfig{GasLimit: 500000},
		Fees:   FeeConfig{BuyFeeBps: 100, SellFeeBps: 100},
		Price: PriceConfig{
			URL:         "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd",
			CacheTTL:    5 * time.Minute,
			FallbackUSD: 2500,
			Timeout:     10 * time.Second,
		},
		IPFS: IPFSConfig{
			GatewayURL:   "https://gateway.pinata.cloud/ipfs/",
			FetchTimeout: 3 * time.Second,
			PinataURL:    "https://api.pinata.cloud",
			MetadataTTL:  time.Hour,
			Concurrency:  4,
		},
		Retry:   RetryConfig{Attempts: 3, Delay: time.Second},
		Cache:   CacheConfig{Backend: "memory", KeyPrefix: "rwa:"},
		AuthAPI: AuthAPIConfig{Timeout: 10 * time.Second},
		Events:  EventsConfig{Enabled: true, ScanBlocks: 1000, FeedSize: 200, PollInterval: 15 * time.Second},
		Server:  ServerConfig{Port: "8080", AllowedOrigins: []string{"*"}},
		Log:     LogConfig{Level: "info", Encoding: "json", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
	}
}

// Load はYAMLファイル (空なら省略) を読み込み、環境変数で上書きする
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Network.RPCURL, "RWA_RPC_URL")
	setString(&c.Network.WSURL, "RWA_WS_URL")
	setString(&c.Signer.PrivateKey, "RWA_SIGNER_KEY")
	setString(&c.IPFS.PinataJWT, "RWA_PINATA_JWT")
	setString(&c.AuthAPI.BaseURL, "RWA_AUTH_API_URL")
	setString(&c.Cache.RedisAddr, "RWA_REDIS_ADDR")
	setString(&c.Events.WebhookURL, "RWA_EVENTS_WEBHOOK_URL")
	setString(&c.Log.Level, "RWA_LOG_LEVEL")
	setString(&c.Server.Port, "PORT")
	if v := os.Getenv("RWA_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Network.ChainID = id
		}
	}
	for name := range c.Contracts {
		setAddr := c.Contracts[name]
		setString(&setAddr, "RWA_CONTRACT_"+name)
		c.Contracts[name] = setAddr
	}
	if c.Cache.RedisAddr != "" && os.Getenv("RWA_CACHE_BACKEND") == "" {
		c.Cache.Backend = "redis"
	}
	setString(&c.Cache.Backend, "RWA_CACHE_BACKEND")
}

// Validate は設定値の整合性を検証する
func (c *Config) Validate() error {
	if c.Network.RPCURL == "" {
		return errors.New("network.rpc_url is required")
	}
	if c.Network.ChainID <= 0 {
		return errors.New("network.chain_id must be positive")
	}
	if err := c.ValidateAddresses(); err != nil {
		return err
	}
	if c.Fees.BuyFeeBps < 0 || c.Fees.BuyFeeBps > 10000 || c.Fees.SellFeeBps < 0 || c.Fees.SellFeeBps > 10000 {
		return errors.New("fees must be between 0 and 10000 bps")
	}
	if c.Retry.Attempts < 1 {
		return errors.New("retry.attempts must be at least 1")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for redis backend")
		}
	default:
		return errors.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

// ValidateAddresses は全てのコントラクトアドレスが設定済みか確認する
func (c *Config) ValidateAddresses() error {
	for _, name := range []string{ContractAdmin, ContractToken, ContractIssuer, ContractMarketplace, ContractPaymentSplitter} {
		addr := c.Contracts[name]
		if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
			return errors.Errorf("contract %s has invalid address %q", name, addr)
		}
	}
	return nil
}

// Address は名前からコントラクトアドレスを返す
func (c *Config) Address(name string) string {
	return c.Contracts[name]
}

// RPCURLs はプライマリとフォールバックのRPC URLを重複なしで返す
func (c *Config) RPCURLs() []string {
	seen := make(map[string]bool)
	var urls []string
	for _, u := range append([]string{c.Network.RPCURL}, c.Network.FallbackRPCs...) {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// ExplorerTxURL はトランザクションのエクスプローラURLを返す
func (c *Config) ExplorerTxURL(txHash string) string {
	return strings.TrimRight(c.Network.BlockExplorer, "/") + "/tx/" + txHash
}
