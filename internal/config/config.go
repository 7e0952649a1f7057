package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names accepted in AI_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// ErrMissingAPIKey 表示未配置模型 API Key。
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY (or ARK_API_KEY for AI_PROVIDER=ark) not found in environment or .env file; please set it and restart the application")

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Session SessionConfig
	// ProfilePath points at an optional TOML agent profile.
	ProfilePath string
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

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:      server,
		AI:          ai,
		Session:     session,
		ProfilePath: strings.TrimSpace(os.Getenv("AGENT_PROFILE")),
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
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Validate 检查必需的密钥与 provider。
func (c AIConfig) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderArk:
	default:
		return fmt.Errorf("invalid AI_PROVIDER value %q: want %q or %q", c.Provider, ProviderGemini, ProviderArk)
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Model == "" {
		return errors.New("AI_MODEL must not be empty")
	}
	return nil
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderGemini))

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if provider == ProviderArk {
		if arkKey := strings.TrimSpace(os.Getenv("ARK_API_KEY")); arkKey != "" {
			apiKey = arkKey
		}
	}

	return AIConfig{
		Provider:    provider,
		APIKey:      apiKey,
		Model:       getEnvOrDefault("AI_MODEL", "gemini-2.0-flash"),
		BaseURL:     getEnvOrDefault("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
		Region:      getEnvOrDefault("AI_REGION", ""),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// SessionConfig 描述会话生命周期配置。
type SessionConfig struct {
	// IdleTTL 之后未活动的会话会被清理，0 表示不清理。
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_IDLE_TTL", 2*time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}
	if ttl < 0 {
		return SessionConfig{}, fmt.Errorf("invalid SESSION_IDLE_TTL value %q: must not be negative", ttl)
	}
	return SessionConfig{IdleTTL: ttl, SweepInterval: time.Minute}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
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
