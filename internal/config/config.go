package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。Read once at startup, immutable afterwards.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Music  MusicConfig
	Store  StoreConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	music, err := loadMusicConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Music:  music,
		Store:  loadStoreConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// Scoring and letter calls use different sampling profiles: the scorer only
// has to emit a number, the letter wants room for a full message.
const (
	scoringTemperature = 0.3
	scoringMaxTokens   = 10
	letterTemperature  = 0.7
	letterMaxTokens    = 1000
)

// NewScoringModel 创建用于强度打分的模型实例。
func (c AIConfig) NewScoringModel(ctx context.Context) (model.ChatModel, error) {
	return c.newChatModel(ctx, scoringTemperature, scoringMaxTokens)
}

// NewLetterModel creates the model used for letter writing. The optional
// ARK_TEMPERATURE / ARK_MAX_TOKENS overrides apply to this instance only.
func (c AIConfig) NewLetterModel(ctx context.Context) (model.ChatModel, error) {
	temperature := letterTemperature
	if c.Temperature != nil {
		temperature = *c.Temperature
	}
	maxTokens := letterMaxTokens
	if c.MaxTokens != nil {
		maxTokens = *c.MaxTokens
	}
	return c.newChatModel(ctx, temperature, maxTokens)
}

func (c AIConfig) newChatModel(ctx context.Context, temperature float64, maxTokens int) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	temp := float32(temperature)

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temp,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := loadRequestTimeout()
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	}, nil
}

// MusicConfig 描述音乐目录相关配置。
type MusicConfig struct {
	ClientID     string
	ClientSecret string
	Market       string
	TokenURL     string
	APIURL       string
	Timeout      time.Duration
}

// Enabled 表示是否提供了目录凭证。
func (c MusicConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func loadMusicConfig() (MusicConfig, error) {
	timeout, err := loadRequestTimeout()
	if err != nil {
		return MusicConfig{}, err
	}

	return MusicConfig{
		ClientID:     strings.TrimSpace(os.Getenv("SPOTIFY_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("SPOTIFY_CLIENT_SECRET")),
		Market:       getEnvOrDefault("SPOTIFY_MARKET", "KR"),
		TokenURL:     getEnvOrDefault("SPOTIFY_TOKEN_URL", "https://accounts.spotify.com/api/token"),
		APIURL:       getEnvOrDefault("SPOTIFY_API_URL", "https://api.spotify.com/v1"),
		Timeout:      timeout,
	}, nil
}

// StoreConfig 描述持久化存储位置。
type StoreConfig struct {
	Path string
}

func loadStoreConfig() StoreConfig {
	dataDir := getEnvOrDefault("DATA_DIR", "data")
	return StoreConfig{Path: filepath.Join(dataDir, "letterbox.db")}
}

// loadRequestTimeout bounds every external call. The downstream contracts
// still hold on timeout: scoring falls back, matching yields nothing, letter
// generation reports failure.
func loadRequestTimeout() (time.Duration, error) {
	timeoutSeconds := 30
	if timeoutOverride, err := parseOptionalIntEnv("REQUEST_TIMEOUT"); err != nil {
		return 0, err
	} else if timeoutOverride != nil && *timeoutOverride > 0 {
		timeoutSeconds = *timeoutOverride
	}
	return time.Duration(timeoutSeconds) * time.Second, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
