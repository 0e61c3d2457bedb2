package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Remote     RemoteConfig     `yaml:"remote"`
	Server     ServerConfig     `yaml:"server"`
	Session    SessionConfig    `yaml:"session"`
	Redis      RedisConfig      `yaml:"redis"`
	Pagination PaginationConfig `yaml:"pagination"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	GRPC       GRPCConfig       `yaml:"grpc"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// RemoteConfig describes the REST API the gateway forwards to.
type RemoteConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	RPS      float64       `yaml:"rps"`
	Burst    int           `yaml:"burst"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// CatalogMaxAge bounds how long the shared catalog lists are served
	// before they are fetched again.
	CatalogMaxAge time.Duration `yaml:"catalog_max_age"`
}

type ServerConfig struct {
	Port         int             `yaml:"port"`
	CookieName   string          `yaml:"cookie_name"`
	CookieSecure bool            `yaml:"cookie_secure"`
	CORS         CORSConfig      `yaml:"cors"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	// Submissions caps public form posts per visitor over Window.
	Submissions SubmissionLimitConfig `yaml:"submissions"`
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type SubmissionLimitConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

type SessionConfig struct {
	Store      string        `yaml:"store"`
	SQLitePath string        `yaml:"sqlite_path"`
	TTL        time.Duration `yaml:"ttl"`
	IdleTTL    time.Duration `yaml:"idle_ttl"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type PaginationConfig struct {
	Limit           int `yaml:"limit"`
	MinSearchLength int `yaml:"min_search_length"`
}

type ScheduleConfig struct {
	Timezone string                 `yaml:"timezone"`
	Days     map[string]HoursConfig `yaml:"days"`
}

type HoursConfig struct {
	Open  int `yaml:"open"`
	Close int `yaml:"close"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type ExportConfig struct {
	PageSize int `yaml:"page_size"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
	ContactsSpreadSheetID string `yaml:"contacts_spreadsheet_id"`
}

func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" && g.BookingSpreadSheetID != ""
}

type TelegramConfig struct {
	BotToken      string  `yaml:"bot_token"`
	NotifyChatIDs []int64 `yaml:"notify_chat_ids"`
	Debug         bool    `yaml:"debug"`
}

func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && len(t.NotifyChatIDs) > 0
}

type GRPCConfig struct {
	Enabled    bool      `yaml:"enabled"`
	Port       int       `yaml:"port"`
	Reflection bool      `yaml:"reflection"`
	TLS        TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

const (
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
	StoreFailover = "failover"
)

func Load(configPath string) (*Config, error) {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return errors.New("remote base_url is required")
	}
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("remote base_url %q is not an absolute URL", c.Remote.BaseURL)
	}

	switch c.Session.Store {
	case StoreRedis, StoreSQLite, StoreMemory, StoreFailover:
	default:
		return fmt.Errorf("unknown session store %q", c.Session.Store)
	}
	if c.Session.Store == StoreSQLite && c.Session.SQLitePath == "" {
		return errors.New("session.sqlite_path is required for the sqlite store")
	}

	if c.Pagination.Limit <= 0 {
		return fmt.Errorf("pagination limit must be positive, got %d", c.Pagination.Limit)
	}

	return ValidateSchedule(c.Schedule)
}

// ValidateSchedule checks weekday names and that every open day has open < close within a day.
func ValidateSchedule(s ScheduleConfig) error {
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("schedule timezone: %w", err)
		}
	}
	for day, hours := range s.Days {
		if _, ok := ParseWeekday(day); !ok {
			return fmt.Errorf("schedule: unknown weekday %q", day)
		}
		if hours.Open < 0 || hours.Close > 24 || hours.Open >= hours.Close {
			return fmt.Errorf("schedule: invalid hours for %s: %d-%d", day, hours.Open, hours.Close)
		}
	}
	return nil
}

// ParseWeekday accepts english weekday names, case insensitive.
func ParseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, true
		}
	}
	return time.Sunday, false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "advocat"
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = 10 * time.Second
	}
	if c.Remote.RPS == 0 {
		c.Remote.RPS = 20
	}
	if c.Remote.Burst == 0 {
		c.Remote.Burst = 40
	}
	if c.Remote.CatalogMaxAge == 0 {
		c.Remote.CatalogMaxAge = time.Minute
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.CookieName == "" {
		c.Server.CookieName = "advocat_vid"
	}
	if c.Server.RateLimit.RPS == 0 {
		c.Server.RateLimit.RPS = 2
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = 5
	}
	if c.Server.Submissions.Max == 0 {
		c.Server.Submissions.Max = 10
	}
	if c.Server.Submissions.Window == 0 {
		c.Server.Submissions.Window = 10 * time.Minute
	}
	if c.Session.Store == "" {
		c.Session.Store = StoreMemory
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 7 * 24 * time.Hour
	}
	if c.Session.IdleTTL == 0 {
		c.Session.IdleTTL = 30 * time.Minute
	}
	if c.Pagination.Limit == 0 {
		c.Pagination.Limit = 3
	}
	if c.Pagination.MinSearchLength == 0 {
		c.Pagination.MinSearchLength = 2
	}
	if len(c.Schedule.Days) == 0 {
		c.Schedule.Days = map[string]HoursConfig{
			"monday":    {Open: 9, Close: 18},
			"tuesday":   {Open: 9, Close: 18},
			"wednesday": {Open: 9, Close: 18},
			"thursday":  {Open: 9, Close: 18},
			"friday":    {Open: 9, Close: 18},
			"saturday":  {Open: 9, Close: 18},
		}
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Exports.PageSize == 0 {
		c.Exports.PageSize = 100
	}
	if c.GRPC.Port == 0 {
		c.GRPC.Port = 8081
	}
}
