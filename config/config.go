package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"fxscanner/internal/model"
	"fxscanner/internal/strategy"
)

// Candle providers.
const (
	ProviderTwelveData = "twelvedata"
	ProviderAngel      = "angel"
	ProviderSQLite     = "sqlite"
)

// Config holds all application configuration loaded from the environment,
// an optional .env file and an optional strategy YAML file.
type Config struct {
	// Scan scope
	Instruments []string
	Timeframes  []model.Timeframe // empty means every timeframe in the mode table

	// Candle provider
	Provider          string
	TwelveDataAPIKey  string
	TwelveDataBaseURL string

	// Angel One credentials
	AngelAPIKey     string
	AngelClientCode string
	AngelPassword   string
	AngelTOTPSecret string

	// Fetching
	FetchBars    int // 0 means the evaluator's minimum plus headroom
	FetchTimeout time.Duration
	FetchRetries int
	PollInterval time.Duration

	// Alert gate
	AlertWindow         time.Duration
	GateRetentionMargin time.Duration
	GateMaxKeys         int

	// Scanner
	ScanWorkers      int
	WindowPrefilter  bool
	MarketHoursGuard bool

	// Infrastructure
	RedisAddr      string // empty disables Redis
	RedisPassword  string
	RedisDB        int
	SignalStream   string
	SQLitePath     string // empty disables the journal
	ArchiveCandles bool
	HTTPAddr       string // empty disables the HTTP API

	// Notification
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	// Logging
	LogLevel  string
	LogPretty bool

	// Strategy
	StrategyFile string
	Strategy     strategy.Params
}

// Load reads configuration. A .env file in the working directory is
// applied first without overriding variables already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("component", "config").Msg("ignoring unreadable .env")
	}

	var errs []error
	c := &Config{
		Instruments: splitList(getEnv("INSTRUMENTS", "EUR/USD,GBP/USD,USD/JPY")),

		Provider:          strings.ToLower(getEnv("CANDLE_PROVIDER", ProviderTwelveData)),
		TwelveDataAPIKey:  getEnv("TWELVE_DATA_API_KEY", ""),
		TwelveDataBaseURL: getEnv("TWELVE_DATA_BASE_URL", ""),

		AngelAPIKey:     getEnv("ANGEL_API_KEY", ""),
		AngelClientCode: getEnv("ANGEL_CLIENT_CODE", ""),
		AngelPassword:   getEnv("ANGEL_PASSWORD", ""),
		AngelTOTPSecret: getEnv("ANGEL_TOTP_SECRET", ""),

		FetchBars:    getInt("FETCH_BARS", 0, &errs),
		FetchTimeout: getDuration("FETCH_TIMEOUT", 10*time.Second, &errs),
		FetchRetries: getInt("FETCH_RETRIES", 1, &errs),
		PollInterval: getDuration("POLL_INTERVAL", time.Second, &errs),

		AlertWindow:         getDuration("ALERT_WINDOW", 30*time.Second, &errs),
		GateRetentionMargin: getDuration("GATE_RETENTION_MARGIN", 5*time.Minute, &errs),
		GateMaxKeys:         getInt("GATE_MAX_KEYS", 10000, &errs),

		ScanWorkers:      getInt("SCAN_WORKERS", 8, &errs),
		WindowPrefilter:  getBool("WINDOW_PREFILTER", true, &errs),
		MarketHoursGuard: getBool("MARKET_HOURS_GUARD", false, &errs),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getInt("REDIS_DB", 0, &errs),
		SignalStream:   getEnv("SIGNAL_STREAM", "fxscan:signals"),
		SQLitePath:     getEnv("SQLITE_PATH", "data/signals.db"),
		ArchiveCandles: getBool("ARCHIVE_CANDLES", false, &errs),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getBool("LOG_PRETTY", false, &errs),

		StrategyFile: getEnv("STRATEGY_FILE", ""),
	}

	tfs, err := ParseTimeframes(getEnv("TIMEFRAMES", ""))
	if err != nil {
		errs = append(errs, err)
	}
	c.Timeframes = tfs

	c.Strategy = strategy.DefaultParams()
	if c.StrategyFile != "" {
		p, err := LoadStrategy(c.StrategyFile)
		if err != nil {
			errs = append(errs, err)
		} else {
			c.Strategy = p
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadStrategy reads a YAML strategy file over the defaults. Keys absent
// from the file keep their default values.
func LoadStrategy(path string) (strategy.Params, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("strategy file: %w", err)
	}
	p := strategy.DefaultParams()
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return strategy.Params{}, fmt.Errorf("strategy file %s: %w", path, err)
	}
	return p, nil
}

// ScanTimeframes returns the timeframes to scan: the configured list, or
// every timeframe in the mode table.
func (c *Config) ScanTimeframes() []model.Timeframe {
	if len(c.Timeframes) > 0 {
		return c.Timeframes
	}
	return c.Strategy.Modes.Timeframes()
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Instruments) == 0 {
		errs = append(errs, errors.New("INSTRUMENTS is empty"))
	}
	if err := c.Strategy.Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, tf := range c.Timeframes {
		if _, ok := c.Strategy.Modes.ModeFor(tf); !ok {
			errs = append(errs, fmt.Errorf("TIMEFRAMES: %s has no mode in the strategy table", tf))
		}
	}
	switch c.Provider {
	case ProviderTwelveData:
		if c.TwelveDataAPIKey == "" {
			errs = append(errs, errors.New("TWELVE_DATA_API_KEY required for provider twelvedata"))
		}
	case ProviderAngel:
		if c.AngelAPIKey == "" || c.AngelClientCode == "" || c.AngelPassword == "" || c.AngelTOTPSecret == "" {
			errs = append(errs, errors.New("ANGEL_API_KEY, ANGEL_CLIENT_CODE, ANGEL_PASSWORD and ANGEL_TOTP_SECRET required for provider angel"))
		}
	case ProviderSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH required for provider sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("CANDLE_PROVIDER %q unknown", c.Provider))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.AlertWindow <= 0 {
		errs = append(errs, errors.New("ALERT_WINDOW must be positive"))
	}
	if c.FetchRetries < 0 || c.FetchBars < 0 || c.GateMaxKeys < 0 {
		errs = append(errs, errors.New("FETCH_RETRIES, FETCH_BARS and GATE_MAX_KEYS must not be negative"))
	}
	if c.ScanWorkers < 1 {
		errs = append(errs, errors.New("SCAN_WORKERS must be >= 1"))
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == "") {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}
	return errors.Join(errs...)
}

// ParseTimeframes parses a comma-separated list such as "1m,2m,3,5min".
func ParseTimeframes(s string) ([]model.Timeframe, error) {
	var out []model.Timeframe
	for _, p := range splitList(s) {
		tf, err := model.ParseTimeframe(p)
		if err != nil {
			return nil, fmt.Errorf("TIMEFRAMES: %w", err)
		}
		out = append(out, tf)
	}
	return out, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func getBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return fallback
	}
	return b
}

// getDuration accepts Go durations ("30s") or bare seconds ("30").
func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return fallback
	}
	return d
}
