package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Premium  PremiumConfig  `mapstructure:"premium"`
	Database DatabaseConfig `mapstructure:"database"`
}

type TelegramConfig struct {
	Token         string        `mapstructure:"token"`
	Username      string        `mapstructure:"username"`
	SupportHandle string        `mapstructure:"support_handle"`
	AdminID       int64         `mapstructure:"admin_id"`
	UpdateTimeout time.Duration `mapstructure:"update_timeout"`
}

type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	TopP        float64       `mapstructure:"top_p"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type LimitsConfig struct {
	FreeDailyLimit int   `mapstructure:"free_daily_limit"`
	MaxResumeChars int   `mapstructure:"max_resume_chars"`
	MaxJobChars    int   `mapstructure:"max_job_chars"`
	MinResumeChars int   `mapstructure:"min_resume_chars"`
	MinJobChars    int   `mapstructure:"min_job_chars"`
	MaxFileBytes   int64 `mapstructure:"max_file_bytes"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type PremiumConfig struct {
	ProviderToken string `mapstructure:"provider_token"`
	PriceCents    int    `mapstructure:"price_cents"`
	Currency      string `mapstructure:"currency"`
	Days          int    `mapstructure:"days"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("telegram.support_handle", "@CareerAISupport")
	v.SetDefault("telegram.update_timeout", "25s")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.max_tokens", 4000)
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.top_p", 0.95)
	v.SetDefault("gemini.timeout", "30s")
	v.SetDefault("limits.free_daily_limit", 3)
	v.SetDefault("limits.max_resume_chars", 3500)
	v.SetDefault("limits.max_job_chars", 4000)
	v.SetDefault("limits.min_resume_chars", 100)
	v.SetDefault("limits.min_job_chars", 80)
	v.SetDefault("limits.max_file_bytes", 2*1024*1024)
	v.SetDefault("cache.ttl", "6h")
	v.SetDefault("premium.price_cents", 999)
	v.SetDefault("premium.currency", "USD")
	v.SetDefault("premium.days", 30)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", true)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}

	if baseURL := v.GetString("GEMINI_BASE_URL"); baseURL != "" {
		config.Gemini.BaseURL = baseURL
	}

	if providerToken := v.GetString("PAYMENT_PROVIDER_TOKEN"); providerToken != "" {
		config.Premium.ProviderToken = providerToken
	}

	if adminID := v.GetInt64("ADMIN_ID"); adminID != 0 {
		config.Telegram.AdminID = adminID
	}

	config.Gemini.BaseURL = normalizeBaseURL(config.Gemini.BaseURL)
	config.Premium.Currency = strings.ToUpper(strings.TrimSpace(config.Premium.Currency))

	return &config, nil
}

func normalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return u
}
