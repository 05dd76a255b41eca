package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	lockMargin  = 30 * time.Second
	writeMargin = 15 * time.Second
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string

	Log struct {
		Level  string
		Format string
		Output string
	}

	DB struct {
		Driver     string
		Host       string
		Port       string
		User       string
		Password   string
		Database   string
		SSLMode    string
		SQLitePath string
	}

	Freshdesk struct {
		Domain  string
		APIKey  string
		BaseURL string
		Timeout time.Duration
		// VIDsFieldKey: ключ custom field, в котором оператор перечисляет VID устройств.
		VIDsFieldKey string
	}

	OpenAI struct {
		APIKey  string
		Model   string
		BaseURL string
		Timeout time.Duration
		RPS     float64
	}

	Teams struct {
		ClientID     string
		ClientSecret string
		TenantID     string
		TokenURL     string
		// SearchUserID: пользователь, чьи чаты просматриваются при поиске с сервисными учётными данными.
		SearchUserID   string
		GraphBaseURL   string
		Timeout        time.Duration
		MonthsBack     int
		MaxSearchTerms int
		// SearchDeadline ограничивает весь поиск по чатам для одного RMA.
		SearchDeadline time.Duration
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	ProcessLockTTL time.Duration

	KafkaBrokers  []string
	KafkaTopicRMA string

	// SearchServiceURL: если задан, обработанные RMA отправляются в search-service для индексации.
	SearchServiceURL string
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:          getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:         firstEnv("APP_PORT", "HTTP_PORT", "8098"),
		AppEnv:           getEnv("APP_ENV", "development"),
		SearchServiceURL: getEnv("SEARCH_SERVICE_URL", ""),
		KafkaBrokers:     ParseList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicRMA:    getEnv("KAFKA_TOPIC_RMA", "rma.events"),
	}
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "text")
	cfg.Log.Output = getEnv("LOG_OUTPUT", "stdout")

	cfg.DB.Driver = strings.ToLower(getEnv("DB_DRIVER", DriverPostgres))
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "rma_service")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DB.SQLitePath = getEnv("SQLITE_PATH", "rma_service.db")

	cfg.Freshdesk.Domain = firstEnv("FRESHDESK_DOMAIN", "FRESHDESK_SUBDOMAIN", "")
	cfg.Freshdesk.APIKey = getEnv("FRESHDESK_API_KEY", "")
	cfg.Freshdesk.BaseURL = getEnv("FRESHDESK_BASE_URL", "")
	cfg.Freshdesk.VIDsFieldKey = getEnv("VIDS_FIELD_KEY", "cf_vids_associated")

	cfg.OpenAI.APIKey = getEnv("OPENAI_API_KEY", "")
	cfg.OpenAI.Model = getEnv("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", "")

	cfg.Teams.ClientID = getEnv("MICROSOFT_CLIENT_ID", "")
	cfg.Teams.ClientSecret = getEnv("MICROSOFT_CLIENT_SECRET", "")
	cfg.Teams.TenantID = getEnv("MICROSOFT_TENANT_ID", "")
	cfg.Teams.TokenURL = getEnv("MICROSOFT_TOKEN_URL", "")
	cfg.Teams.SearchUserID = getEnv("TEAMS_SEARCH_USER_ID", "")
	cfg.Teams.GraphBaseURL = getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")

	var err error
	if cfg.Freshdesk.Timeout, err = getDuration("FRESHDESK_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.OpenAI.Timeout, err = getDuration("OPENAI_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.Teams.Timeout, err = getDuration("TEAMS_SEARCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Teams.SearchDeadline, err = getDuration("TEAMS_SEARCH_DEADLINE", 45*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProcessLockTTL, err = getDuration("PROCESS_LOCK_TTL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Teams.MonthsBack, err = getInt("TEAMS_SEARCH_MONTHS_BACK", 6); err != nil {
		return nil, err
	}
	if cfg.Teams.MaxSearchTerms, err = getInt("MAX_TEAMS_SEARCH_TERMS", 10); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if v := getEnv("OPENAI_RPS", "3"); v != "" {
		rps, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return nil, fmt.Errorf("config: OPENAI_RPS: %w", perr)
		}
		cfg.OpenAI.RPS = rps
	}
	return cfg, nil
}

// Validate проверяет только настройки БД, этого достаточно для migrate.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("config: DB_HOST and DB_DATABASE are required")
		}
		if c.IsProduction() && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	case DriverSQLite:
		if c.DB.SQLitePath == "" {
			return errors.New("config: SQLITE_PATH is required for sqlite driver")
		}
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DB.Driver)
	}
	return nil
}

// ValidateServices проверяет учётные данные внешних API, нужные для обработки RMA.
func (c *Config) ValidateServices() error {
	var missing []string
	if c.Freshdesk.Domain == "" && c.Freshdesk.BaseURL == "" {
		missing = append(missing, "FRESHDESK_DOMAIN")
	}
	if c.Freshdesk.APIKey == "" {
		missing = append(missing, "FRESHDESK_API_KEY")
	}
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// TeamsConfigured: заданы ли учётные данные приложения для поиска по чатам.
func (c *Config) TeamsConfigured() bool {
	return c.Teams.ClientID != "" && c.Teams.ClientSecret != "" && c.Teams.TenantID != "" && c.Teams.SearchUserID != ""
}

// ProcessDeadline: предельное время внешних вызовов при обработке одного RMA
// (Freshdesk, классификатор, поиск по чатам).
func (c *Config) ProcessDeadline() time.Duration {
	return c.Freshdesk.Timeout + c.OpenAI.Timeout + c.Teams.SearchDeadline
}

// LockTTL не меньше ProcessDeadline с запасом на запись в БД, иначе блокировка
// истечёт раньше, чем закончится обработка.
func (c *Config) LockTTL() time.Duration {
	return max(c.ProcessLockTTL, c.ProcessDeadline()+lockMargin)
}

// WriteTimeout HTTP-сервера должен пережить самую долгую обработку RMA.
func (c *Config) WriteTimeout() time.Duration {
	return c.ProcessDeadline() + writeMargin
}

func (c *Config) DSN() string {
	if c.DB.Driver == DriverSQLite {
		return c.DB.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

// ParseList разбивает строку "a:9092, b:9092" на слайс без пустых элементов.
func ParseList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
