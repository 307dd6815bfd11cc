package cfg

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	if Version != "" {
		return Version
	}
	return "unknown"
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"dealpress_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"dealpress_password" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"dealpress" description:"Database name"`

	// Cache configuration
	RedisURL string `long:"redis-url" env:"REDIS_URL" description:"Redis URL for copy cache and quota counters (omit to use in-process store)"`

	// Application configuration
	RulesDir     string `long:"rules-dir" env:"RULES_DIR" default:"./rules" description:"Directory containing automation rule files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for pipeline processing"`
	PollInterval int    `long:"poll-interval" env:"POLL_INTERVAL" default:"300" description:"Marketplace poll interval in seconds"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	LinkBaseUrl  string `long:"link-base-url" env:"LINK_BASE_URL" description:"Public base URL for listing short links (e.g., https://go.example.com)"`
	Locale       string `long:"locale" env:"LOCALE" default:"en" description:"Locale used for price formatting in rendered copy"`

	// Marketplace source
	SourceURL         string   `long:"source-url" env:"SOURCE_URL" default:"http://localhost:9090/listings" description:"Marketplace listings endpoint"`
	SourceAPIKey      string   `long:"source-api-key" env:"SOURCE_API_KEY" description:"Marketplace API key (optional)"`
	SourceCategories  []string `long:"source-category" env:"SOURCE_CATEGORIES" env-delim:"," description:"Category IDs to poll (repeatable)"`
	SourceMinDiscount int      `long:"source-min-discount" env:"SOURCE_MIN_DISCOUNT" default:"0" description:"Minimum discount percentage filter for the source query"`
	SourceMinReviews  int      `long:"source-min-reviews" env:"SOURCE_MIN_REVIEWS" default:"0" description:"Minimum review count filter for the source query"`
	SourceTimeout     int      `long:"source-timeout" env:"SOURCE_TIMEOUT" default:"30" description:"Marketplace request timeout in seconds"`

	// Generative model provider
	ModelEndpoint string `long:"model-endpoint" env:"MODEL_ENDPOINT" default:"https://api.openai.com/v1/chat/completions" description:"OpenAI-compatible completions endpoint"`
	ModelAPIKey   string `long:"model-api-key" env:"MODEL_API_KEY" description:"Model provider API key"`
	ModelTimeout  int    `long:"model-timeout" env:"MODEL_TIMEOUT" default:"20" description:"Model call timeout in seconds"`

	// Copy generation
	CopyTTLHours      int `long:"copy-ttl-hours" env:"COPY_TTL_HOURS" default:"24" description:"Generated copy cache TTL in hours"`
	DefaultDailyQuota int `long:"default-daily-quota" env:"DEFAULT_DAILY_QUOTA" default:"50" description:"Default per-rule daily generation quota"`

	// Scoring weights
	WeightDiscount   float64 `long:"weight-discount" env:"WEIGHT_DISCOUNT" default:"0.4" description:"Scoring weight for the discount sub-score"`
	WeightPopularity float64 `long:"weight-popularity" env:"WEIGHT_POPULARITY" default:"0.25" description:"Scoring weight for the sales-rank sub-score"`
	WeightQuality    float64 `long:"weight-quality" env:"WEIGHT_QUALITY" default:"0.35" description:"Scoring weight for the rating sub-score"`
	DiscountCap      int     `long:"discount-cap" env:"DISCOUNT_CAP" default:"70" description:"Discount percentage that maps to a full discount sub-score"`
	ReviewFloor      int     `long:"review-floor" env:"REVIEW_FLOOR" default:"10" description:"Review count below which ratings carry reduced confidence"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"DealPress/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:            raw.DBHost,
		DBPort:            raw.DBPort,
		DBUser:            raw.DBUser,
		DBPassword:        raw.DBPassword,
		DBName:            raw.DBName,
		RedisURL:          raw.RedisURL,
		RulesDir:          raw.RulesDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		PollInterval:      raw.PollInterval,
		APIAccessKey:      raw.APIAccessKey,
		LinkBaseUrl:       raw.LinkBaseUrl,
		Locale:            raw.Locale,
		SourceURL:         raw.SourceURL,
		SourceAPIKey:      raw.SourceAPIKey,
		SourceCategories:  raw.SourceCategories,
		SourceMinDiscount: raw.SourceMinDiscount,
		SourceMinReviews:  raw.SourceMinReviews,
		SourceTimeout:     raw.SourceTimeout,
		ModelEndpoint:     raw.ModelEndpoint,
		ModelAPIKey:       raw.ModelAPIKey,
		ModelTimeout:      raw.ModelTimeout,
		CopyTTLHours:      raw.CopyTTLHours,
		DefaultDailyQuota: raw.DefaultDailyQuota,
		WeightDiscount:    raw.WeightDiscount,
		WeightPopularity:  raw.WeightPopularity,
		WeightQuality:     raw.WeightQuality,
		DiscountCap:       raw.DiscountCap,
		ReviewFloor:       raw.ReviewFloor,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
