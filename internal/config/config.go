package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/ilyakaznacheev/cleanenv"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "mcp-weather-server"

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Weather WeatherConfig
	Session SessionConfig
	AI      AIConfig
	Metrics MetricsConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Usage renders the environment variables understood by Load.
func Usage() string {
	header := "Environment variables:"
	text, err := cleanenv.GetDescription(&Config{}, &header)
	if err != nil {
		return header
	}
	return text
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	switch c.Weather.Units {
	case "metric", "imperial", "standard":
	default:
		return fmt.Errorf("invalid WEATHER_UNITS value %q", c.Weather.Units)
	}
	if c.Weather.Timeout <= 0 {
		return fmt.Errorf("invalid WEATHER_TIMEOUT value %s", c.Weather.Timeout)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("invalid SESSION_TTL value %s", c.Session.TTL)
	}
	if c.Session.MaxEntries < 0 {
		return fmt.Errorf("invalid SESSION_MAX_ENTRIES value %d", c.Session.MaxEntries)
	}
	if c.Session.SweepInterval < 0 {
		return fmt.Errorf("invalid SESSION_SWEEP_INTERVAL value %s", c.Session.SweepInterval)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid METRICS_PATH value %q", c.Metrics.Path)
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" env-default:"8000" env-description:"listen port or host:port"`
	Addr string
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(raw string) (string, error) {
	port := strings.TrimSpace(raw)
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info" env-description:"logrus level"`
	Format string `env:"LOG_FORMAT" env-default:"text" env-description:"text or json"`
}

// WeatherConfig describes the OpenWeather upstream.
type WeatherConfig struct {
	APIKey  string        `env:"OPENWEATHER_API_KEY" env-description:"OpenWeather API key"`
	BaseURL string        `env:"OPENWEATHER_BASE_URL" env-default:"https://api.openweathermap.org/data/2.5"`
	Units   string        `env:"WEATHER_UNITS" env-default:"metric" env-description:"standard, metric or imperial"`
	Timeout time.Duration `env:"WEATHER_TIMEOUT" env-default:"5s" env-description:"per-call provider timeout"`
}

// SessionConfig bounds the streaming session store.
type SessionConfig struct {
	TTL           time.Duration `env:"SESSION_TTL" env-default:"300s" env-description:"idle lifetime of a streaming session"`
	MaxEntries    int           `env:"SESSION_MAX_ENTRIES" env-default:"10000" env-description:"store capacity, 0 disables the bound"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" env-default:"0s" env-description:"background sweep period, 0 keeps lazy sweeping only"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" env-default:"true"`
	Path    string `env:"METRICS_PATH" env-default:"/metrics"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey          string  `env:"ARK_API_KEY"`
	AccessKey       string  `env:"ARK_ACCESS_KEY"`
	SecretKey       string  `env:"ARK_SECRET_KEY"`
	Model           string  `env:"ARK_MODEL"`
	BaseURL         string  `env:"ARK_BASE_URL" env-default:"https://ark.cn-beijing.volces.com/api/v3"`
	Region          string  `env:"ARK_REGION" env-default:"cn-beijing"`
	Temperature     float64 `env:"ARK_TEMPERATURE" env-description:"0 keeps the model default"`
	MaxTokens       int     `env:"ARK_MAX_TOKENS" env-description:"0 keeps the model default"`
	NarratorEnabled bool    `env:"NARRATOR_ENABLED" env-default:"false" env-description:"rephrase weather reports with the Ark model"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_MODEL with ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	var temperature *float32
	if c.Temperature > 0 {
		val := float32(c.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if c.MaxTokens > 0 {
		val := c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}
