package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the chefbot service.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Storage StorageConfig `mapstructure:"storage"`
	Chef    ChefConfig    `mapstructure:"chef"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Tools   ToolsConfig   `mapstructure:"tools"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains the model backend settings.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// StorageConfig groups the backing stores.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the config.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
	if p.Timeout > 0 {
		dsn += fmt.Sprintf("&connect_timeout=%d", int(p.Timeout.Seconds()))
	}
	return dsn
}

// RedisConfig contains Redis connection settings. Redis is optional: it only
// serializes ingestion batches across replicas.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// ChefConfig controls the turn orchestration engine.
type ChefConfig struct {
	HistoryWindow   int    `mapstructure:"history_window"`
	MemoryTopK      int    `mapstructure:"memory_top_k"`
	ChunkSize       int    `mapstructure:"chunk_size"`
	ChunkOverlap    int    `mapstructure:"chunk_overlap"`
	FallbackReply   string `mapstructure:"fallback_reply"`
	StrictGrounding bool   `mapstructure:"strict_grounding"`
}

// ScraperConfig controls the knowledge-base ingestion pipeline.
type ScraperConfig struct {
	URLDelay      time.Duration `mapstructure:"url_delay"`
	NavTimeout    time.Duration `mapstructure:"nav_timeout"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	MaxPageChars  int           `mapstructure:"max_page_chars"`
	SearchTopK    int           `mapstructure:"search_top_k"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	EmbedBatch    int           `mapstructure:"embed_batch"`
	EmbeddingDims int           `mapstructure:"embedding_dims"`
}

// ToolsConfig configures the callable tool backends.
type ToolsConfig struct {
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Email     EmailConfig     `mapstructure:"email"`
}

// WebSearchConfig selects a search backend (brave or serper).
type WebSearchConfig struct {
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	MaxHits  int    `mapstructure:"max_hits"`
}

// FetchConfig bounds the page-content fetch tool.
type FetchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// EmailConfig configures the Resend mail backend. Empty APIKey disables the
// email tool entirely.
type EmailConfig struct {
	APIKey      string `mapstructure:"api_key"`
	SenderEmail string `mapstructure:"sender_email"`
	ReplyTo     string `mapstructure:"reply_to"`
}

// LoadConfig loads config from file, with CHEFBOT_* env overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.address", ":8090")
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.completion_model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.85)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("chef.history_window", 20)
	viper.SetDefault("chef.memory_top_k", 2)
	viper.SetDefault("chef.chunk_size", 800)
	viper.SetDefault("chef.chunk_overlap", 400)
	viper.SetDefault("chef.fallback_reply", "I am sorry, my kitchen is on fire. Please give me a moment and try again.")
	viper.SetDefault("chef.strict_grounding", false)
	viper.SetDefault("scraper.url_delay", 2*time.Second)
	viper.SetDefault("scraper.nav_timeout", 30*time.Second)
	viper.SetDefault("scraper.settle_delay", 2*time.Second)
	viper.SetDefault("scraper.max_page_chars", 20000)
	viper.SetDefault("scraper.search_top_k", 5)
	viper.SetDefault("scraper.lock_ttl", 10*time.Minute)
	viper.SetDefault("scraper.embed_batch", 16)
	viper.SetDefault("scraper.embedding_dims", 1536)
	viper.SetDefault("tools.web_search.provider", "brave")
	viper.SetDefault("tools.web_search.max_hits", 5)
	viper.SetDefault("tools.fetch.timeout", 20*time.Second)
	viper.SetDefault("tools.fetch.max_chars", 5000)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CHEFBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; defaults plus env are enough to boot.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return &config
}
