package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/strategy"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/symbols"
)

// Config holds all application configuration.
type Config struct {
	Strategy struct {
		MinMovePercent             float64 `yaml:"min_move_percent"`
		TolerancePercent           float64 `yaml:"tolerance_percent"`
		DropThresholdPercent       float64 `yaml:"drop_threshold_percent"`
		MovingAverageWindow        int     `yaml:"moving_average_window"`
		PatternLookbackBars        int     `yaml:"pattern_lookback_bars"`
		MaxConsecutiveNonGreenDays int     `yaml:"max_consecutive_non_green_days"`
		MinSeriesBars              int     `yaml:"min_series_bars"`
	} `yaml:"strategy"`
	Scan struct {
		Workers      int           `yaml:"workers"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		NotifyEmpty  bool          `yaml:"notify_empty"`
	} `yaml:"scan"`
	Groups      []model.Group               `yaml:"groups"`
	GroupRules  map[string][]model.RuleName `yaml:"group_rules"`
	SymbolsFile string                      `yaml:"symbols_file"`
	DataSource  struct {
		Provider  string            `yaml:"provider"` // yahoo, rest or mock
		BaseURL   string            `yaml:"base_url"`
		APIKey    string            `yaml:"api_key"`
		RateLimit float64           `yaml:"rate_limit"` // requests per second
		SymbolMap map[string]string `yaml:"symbol_map"`
	} `yaml:"data_source"`
	Cache struct {
		SQLitePath string `yaml:"sqlite_path"` // empty disables the bar cache
	} `yaml:"cache"`
	Email struct {
		From     string   `yaml:"from"`
		Password string   `yaml:"password"`
		To       []string `yaml:"to"`
		Host     string   `yaml:"host"`
		Port     int      `yaml:"port"`
		Subject  string   `yaml:"subject"`
	} `yaml:"email"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		ScanCron string `yaml:"scan_cron"`
		Timezone string `yaml:"timezone"`
	} `yaml:"schedule"`
	Proxy string `yaml:"proxy"`

	// EventName is the CI event that started the process (GITHUB_EVENT_NAME).
	EventName string `yaml:"-"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A .env file in the working directory is loaded
// first if present; variables already set in the environment win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	cfg.presetStrategy()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		c.Email.From = v
	}
	if v := os.Getenv("EMAIL_PASSWORD"); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv("EMAIL_TO"); v != "" {
		c.Email.To = splitList(v)
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.Email.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		c.Email.Port = port
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("SYMBOLS_FILE"); v != "" {
		c.SymbolsFile = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Cache.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("CRON_SCAN"); v != "" {
		c.Schedule.ScanCron = v
	}
	c.EventName = os.Getenv("GITHUB_EVENT_NAME")
	return nil
}

// presetStrategy seeds the strategy section before the YAML is decoded over
// it, so an explicit 0 in the file survives.
func (c *Config) presetStrategy() {
	def := strategy.DefaultConfig()
	c.Strategy.MinMovePercent = def.Scan.MinMovePercent
	c.Strategy.TolerancePercent = def.TolerancePercent
	c.Strategy.DropThresholdPercent = def.DropThresholdPercent
	c.Strategy.MovingAverageWindow = def.MovingAverageWindow
	c.Strategy.PatternLookbackBars = def.PatternLookbackBars
	c.Strategy.MaxConsecutiveNonGreenDays = def.Scan.MaxNonGreenDays
	c.Strategy.MinSeriesBars = def.Scan.MinBars
}

func (c *Config) applyDefaults() {
	if c.Scan.Workers == 0 {
		c.Scan.Workers = 4
	}
	if c.Scan.FetchTimeout == 0 {
		c.Scan.FetchTimeout = 30 * time.Second
	}
	if c.SymbolsFile == "" && len(c.Groups) == 0 {
		c.SymbolsFile = "stocks_layout.csv"
	}
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.RateLimit == 0 {
		c.DataSource.RateLimit = 2
	}
	if c.Email.Host == "" {
		c.Email.Host = "smtp.gmail.com"
	}
	if c.Email.Port == 0 {
		c.Email.Port = 465
	}
	if c.Email.Subject == "" {
		c.Email.Subject = "Stock Strategy Alert"
	}
	if c.Schedule.ScanCron == "" {
		c.Schedule.ScanCron = "0 30 16 * * 1-5"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Asia/Kolkata"
	}
}

// Validate checks ranges and that every configured name resolves.
func (c *Config) Validate() error {
	s := c.Strategy
	if s.MinMovePercent < 0 {
		return fmt.Errorf("strategy.min_move_percent must not be negative")
	}
	if s.TolerancePercent < 0 {
		return fmt.Errorf("strategy.tolerance_percent must not be negative")
	}
	if s.DropThresholdPercent < 0 {
		return fmt.Errorf("strategy.drop_threshold_percent must not be negative")
	}
	if s.MovingAverageWindow < 1 {
		return fmt.Errorf("strategy.moving_average_window must be at least 1")
	}
	if s.PatternLookbackBars < 0 {
		return fmt.Errorf("strategy.pattern_lookback_bars must not be negative")
	}
	if s.MaxConsecutiveNonGreenDays < 0 {
		return fmt.Errorf("strategy.max_consecutive_non_green_days must not be negative")
	}
	if s.MinSeriesBars < 0 {
		return fmt.Errorf("strategy.min_series_bars must not be negative")
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be at least 1")
	}
	if c.Scan.FetchTimeout < 0 {
		return fmt.Errorf("scan.fetch_timeout must be positive")
	}
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not one of yahoo, rest, mock", c.DataSource.Provider)
	}
	for _, g := range c.Groups {
		if g.Name == "" {
			return fmt.Errorf("groups: entry without a name")
		}
		if err := validRules(g.Rules); err != nil {
			return fmt.Errorf("group %s: %w", g.Name, err)
		}
	}
	for name, rs := range c.GroupRules {
		if err := validRules(rs); err != nil {
			return fmt.Errorf("group_rules.%s: %w", name, err)
		}
	}
	if c.Email.Port < 1 || c.Email.Port > 65535 {
		return fmt.Errorf("email.port %d out of range", c.Email.Port)
	}
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(c.Schedule.ScanCron); err != nil {
		return fmt.Errorf("schedule.scan_cron: %w", err)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	return nil
}

func validRules(rs []model.RuleName) error {
	for _, r := range rs {
		if r != model.RuleBreakout && r != model.RuleMeanReversion {
			return fmt.Errorf("unknown rule %q", r)
		}
	}
	return nil
}

// StrategyConfig converts the strategy section into engine settings.
func (c *Config) StrategyConfig() strategy.Config {
	s := c.Strategy
	return strategy.Config{
		Scan: strategy.ScanConfig{
			MinMovePercent:  s.MinMovePercent,
			MaxNonGreenDays: s.MaxConsecutiveNonGreenDays,
			MinBars:         s.MinSeriesBars,
		},
		TolerancePercent:     s.TolerancePercent,
		DropThresholdPercent: s.DropThresholdPercent,
		MovingAverageWindow:  s.MovingAverageWindow,
		PatternLookbackBars:  s.PatternLookbackBars,
	}
}

// LoadGroups returns the inline groups if any are configured, otherwise the
// groups of the symbols file. Inline groups without rules take the default
// rules for their name.
func (c *Config) LoadGroups() ([]model.Group, error) {
	if len(c.Groups) == 0 {
		return symbols.LoadFile(c.SymbolsFile, c.GroupRules)
	}
	out := make([]model.Group, len(c.Groups))
	for i, g := range c.Groups {
		if len(g.Rules) == 0 {
			if rs, ok := c.GroupRules[g.Name]; ok {
				g.Rules = rs
			} else if rs, ok := symbols.DefaultRules[g.Name]; ok {
				g.Rules = rs
			} else {
				return nil, fmt.Errorf("group %s has no rules configured", g.Name)
			}
		}
		out[i] = g
	}
	return out, nil
}

// Location returns the schedule timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
