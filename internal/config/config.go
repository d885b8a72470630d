package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Scraper   ScraperConfig
	Speech    SpeechConfig
	Vision    VisionConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type StorageConfig struct {
	DataDir string
}

type ScraperConfig struct {
	PrimaryURL string
	MirrorURL  string
	UserAgent  string
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
}

type SpeechConfig struct {
	BaseURL string
	ModelID string
	Timeout time.Duration
}

type VisionConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type WorkerConfig struct {
	Concurrency int
}

type RateLimitConfig struct {
	JobsPerHour  int
	VoicesPerMin int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("storage.data_dir", "./data")
	viper.SetDefault("scraper.primary_url", "https://cdn.syndication.twimg.com")
	viper.SetDefault("scraper.mirror_url", "https://nitter.net")
	viper.SetDefault("scraper.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	viper.SetDefault("scraper.retries", 3)
	viper.SetDefault("scraper.retry_delay", "2s")
	viper.SetDefault("scraper.timeout", "30s")
	viper.SetDefault("speech.base_url", "https://api.elevenlabs.io/v1")
	viper.SetDefault("speech.model_id", "eleven_multilingual_v2")
	viper.SetDefault("speech.timeout", "60s")
	viper.SetDefault("vision.base_url", "https://api.openai.com/v1")
	viper.SetDefault("vision.model", "gpt-4o")
	viper.SetDefault("vision.timeout", "60s")
	viper.SetDefault("worker.concurrency", 4)
	viper.SetDefault("ratelimit.jobs_per_hour", 20)
	viper.SetDefault("ratelimit.voices_per_min", 30)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		Storage: StorageConfig{
			DataDir: viper.GetString("storage.data_dir"),
		},
		Scraper: ScraperConfig{
			PrimaryURL: viper.GetString("scraper.primary_url"),
			MirrorURL:  viper.GetString("scraper.mirror_url"),
			UserAgent:  viper.GetString("scraper.user_agent"),
			Retries:    viper.GetInt("scraper.retries"),
			RetryDelay: viper.GetDuration("scraper.retry_delay"),
			Timeout:    viper.GetDuration("scraper.timeout"),
		},
		Speech: SpeechConfig{
			BaseURL: viper.GetString("speech.base_url"),
			ModelID: viper.GetString("speech.model_id"),
			Timeout: viper.GetDuration("speech.timeout"),
		},
		Vision: VisionConfig{
			BaseURL: viper.GetString("vision.base_url"),
			Model:   viper.GetString("vision.model"),
			Timeout: viper.GetDuration("vision.timeout"),
		},
		Worker: WorkerConfig{
			Concurrency: viper.GetInt("worker.concurrency"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour:  viper.GetInt("ratelimit.jobs_per_hour"),
			VoicesPerMin: viper.GetInt("ratelimit.voices_per_min"),
		},
	}

	return cfg, nil
}
