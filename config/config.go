package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"kyb-gateway/pkg/kyb"
	"kyb-gateway/pkg/logger"

	"gopkg.in/yaml.v2"
)

//go:embed config.default.yaml
var embeddedConfig []byte

type DatabaseConfig struct {
	URL string `yaml:"url"`
	DB  string `yaml:"db"`
}

// KYBConfig 验证服务商配置
type KYBConfig struct {
	BaseURL          string `yaml:"base_url"`
	AppToken         string `yaml:"app_token"`
	SecretKey        string `yaml:"secret_key"`
	ApplicantLevel   string `yaml:"applicant_level"`
	AccessTokenLevel string `yaml:"access_token_level"`
	TimeoutMS        int    `yaml:"timeout_ms"`
	WebhookSecret    string `yaml:"webhook_secret"` // 为空时不校验回调摘要
}

// SigningConfig 提取签名相关配置
func (k KYBConfig) SigningConfig() kyb.SigningConfig {
	return kyb.SigningConfig{
		BaseURL:   k.BaseURL,
		AppToken:  k.AppToken,
		SecretKey: k.SecretKey,
	}
}

// Timeout 单次调用超时，未配置时为 15 秒
func (k KYBConfig) Timeout() time.Duration {
	if k.TimeoutMS <= 0 {
		return kyb.DefaultTimeout
	}
	return time.Duration(k.TimeoutMS) * time.Millisecond
}

type RateLimitConfig struct {
	Enabled    bool `yaml:"enabled"`
	DefaultQPS int  `yaml:"default_qps"`
}

type AsyncConfig struct {
	Enabled     bool        `yaml:"enabled"`
	WorkerCount int         `yaml:"worker_count"`
	Redis       RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	QueueKey string `yaml:"queue_key"`
}

type Config struct {
	Port      int             `yaml:"port"`
	Log       logger.Config   `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	KYB       KYBConfig       `yaml:"kyb"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Async     AsyncConfig     `yaml:"async"`
}

// 环境变量覆盖，密钥类配置不建议写入文件
var envOverrides = []struct {
	name  string
	apply func(c *Config, v string)
}{
	{"KYB_BASE_URL", func(c *Config, v string) { c.KYB.BaseURL = v }},
	{"KYB_APP_TOKEN", func(c *Config, v string) { c.KYB.AppToken = v }},
	{"KYB_SECRET_KEY", func(c *Config, v string) { c.KYB.SecretKey = v }},
	{"KYB_WEBHOOK_SECRET", func(c *Config, v string) { c.KYB.WebhookSecret = v }},
	{"MONGO_URL", func(c *Config, v string) { c.Database.URL = v }},
	{"REDIS_ADDR", func(c *Config, v string) { c.Async.Redis.Addr = v }},
}

// NewConfig 读取 CONFIG_PATH 指定的文件，未指定时使用内置默认配置
func NewConfig() (*Config, error) {
	configData := embeddedConfig

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		configData = data
	}

	c, err := Parse(configData)
	if err != nil {
		return nil, err
	}

	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(c, v)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Parse 解析 YAML 并补齐默认值
func Parse(data []byte) (*Config, error) {
	c := new(Config)
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if c.Port == 0 {
		c.Port = 8080
	}
	if c.KYB.ApplicantLevel == "" {
		c.KYB.ApplicantLevel = kyb.DefaultLevel
	}
	if c.KYB.AccessTokenLevel == "" {
		c.KYB.AccessTokenLevel = c.KYB.ApplicantLevel
	}
	if c.RateLimit.DefaultQPS <= 0 {
		c.RateLimit.DefaultQPS = 10
	}
	if c.Async.WorkerCount <= 0 {
		c.Async.WorkerCount = 1
	}
	return c, nil
}

// Validate 缺少服务商配置时返回 *kyb.ConfigurationError
func (c *Config) Validate() error {
	if err := c.KYB.SigningConfig().Validate(); err != nil {
		return err
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Async.Enabled && c.Async.Redis.Addr == "" {
		return fmt.Errorf("async.redis.addr is required when async is enabled")
	}
	return nil
}
