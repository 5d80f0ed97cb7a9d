package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrInvalidConfig is returned by Validate when a setting is out of range
var ErrInvalidConfig = errors.New("invalid configuration")

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func loadEnvString(key string, result *string) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	*result = s
}

func loadEnvUint(key string, result *uint) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return
	}
	*result = uint(n)
}

func loadEnvInt(key string, result *int) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return
	}
	*result = n
}

func loadEnvBool(key string, result *bool) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return
	}
	*result = b
}

// loadEnvDuration accepts Go duration strings ("90s", "12h").
func loadEnvDuration(key string, result *time.Duration) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Ignoring malformed duration")
		return
	}
	*result = d
}

/* Configuration */

/* PgSQL Configuration */
type pgSqlConfig struct {
	Host      string `json:"host"`
	Port      uint   `json:"port"`
	Database  string `json:"database"`
	SslMode   string `json:"ssl_mode"`
	User      string `json:"user"`
	Password  string `json:"password"`
	TraceSkip string `json:"trace_skip"`
}

func (p pgSqlConfig) ConnStr() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s", p.Host, p.Port, p.User, p.Password, p.Database, p.SslMode)
}

func defaultPgSql() pgSqlConfig {
	return pgSqlConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "catalog",
		User:     "",
		Password: "",
		SslMode:  "disable",
	}
}

func (p *pgSqlConfig) loadFromEnv() {
	loadEnvString("POSTGRES_HOST", &p.Host)
	loadEnvUint("POSTGRES_PORT", &p.Port)
	loadEnvString("POSTGRES_DB_NAME", &p.Database)
	loadEnvString("POSTGRES_SSLMODE", &p.SslMode)
	loadEnvString("POSTGRES_USERNAME", &p.User)
	loadEnvString("POSTGRES_PASSWORD", &p.Password)
	loadEnvString("POSTGRES_TRACE_SKIP", &p.TraceSkip)
}

/* Listen Configuration */

type listenConfig struct {
	Host string `json:"host"`
	Port uint   `json:"port"`
}

func (l listenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

func defaultListenConfig() listenConfig {
	return listenConfig{
		Host: "127.0.0.1",
		Port: 8080,
	}
}

func (l *listenConfig) loadFromEnv() {
	loadEnvString("LISTEN_HOST", &l.Host)
	loadEnvUint("LISTEN_PORT", &l.Port)
}

type natsConfig struct {
	Enabled  bool
	Host     string
	Port     uint
	Username string
	Password string
	Subject  string
}

func (c *natsConfig) loadFromEnv() {
	loadEnvBool("NATS_ENABLED", &c.Enabled)
	c.Host = getEnv("NATS_HOST", c.Host)
	loadEnvUint("NATS_PORT", &c.Port)
	c.Username = getEnv("NATS_USER", "")
	c.Password = getEnv("NATS_PASSWORD", "")
	loadEnvString("NATS_SUBJECT_PREFIX", &c.Subject)
}

func (c *natsConfig) URL() string {
	return fmt.Sprintf("nats://%s:%d", c.Host, c.Port)
}

func defaultNatsConfig() natsConfig {
	return natsConfig{
		Enabled:  false,
		Host:     "localhost",
		Port:     4222,
		Username: "",
		Password: "",
		Subject:  "catalog",
	}
}

type redisConfig struct {
	Host     string `json:"host"`
	Port     uint   `json:"port"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

func (r *redisConfig) loadFromEnv() {
	loadEnvString("REDIS_HOST", &r.Host)
	loadEnvUint("REDIS_PORT", &r.Port)
	loadEnvString("REDIS_PASSWORD", &r.Password)
	loadEnvInt("REDIS_DB", &r.DB)
	log.Info().Interface("redis", r).Msg("Redis config loaded")
}

func (r redisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func defaultRedisConfig() redisConfig {
	return redisConfig{
		Host:     "localhost",
		Port:     6379,
		Password: "",
		DB:       0,
	}
}

type GCSConfig struct {
	ProjectID       string
	CredentialsFile string
	Bucket          string
}

// Enabled reports whether snapshots should be archived
func (g GCSConfig) Enabled() bool {
	return g.Bucket != ""
}

func (g *GCSConfig) loadFromEnv() {
	g.ProjectID = getEnv("GCS_PROJECT_ID", "")
	g.CredentialsFile = getEnv("GCS_CREDENTIALS_FILE", "")
	g.Bucket = getEnv("GCS_STORAGE_BUCKET", "")
}

func defaultGcsConfig() GCSConfig {
	return GCSConfig{
		ProjectID:       "",
		CredentialsFile: "",
		Bucket:          "",
	}
}

type logConfig struct {
	Level  string
	Format string
}

func (l *logConfig) loadFromEnv() {
	loadEnvString("LOG_LEVEL", &l.Level)
	loadEnvString("LOG_FORMAT", &l.Format)
}

func defaultLogConfig() logConfig {
	return logConfig{
		Level:  "info",
		Format: "json",
	}
}

// ScraperConfig drives the headless browser and the catalog selectors
type ScraperConfig struct {
	URL           string
	Cap           int
	SettleDelay   time.Duration
	RenderTimeout time.Duration
	Headless      bool
	BrowserBin    string
	ItemSelector  string
	NameSelector  string
	PriceSelector string
}

func (s *ScraperConfig) loadFromEnv() {
	loadEnvString("SCRAPER_URL", &s.URL)
	loadEnvInt("SCRAPER_CAP", &s.Cap)
	loadEnvDuration("SCRAPER_SETTLE_DELAY", &s.SettleDelay)
	loadEnvDuration("SCRAPER_RENDER_TIMEOUT", &s.RenderTimeout)
	loadEnvBool("SCRAPER_HEADLESS", &s.Headless)
	loadEnvString("SCRAPER_BROWSER_BIN", &s.BrowserBin)
	loadEnvString("SCRAPER_ITEM_SELECTOR", &s.ItemSelector)
	loadEnvString("SCRAPER_NAME_SELECTOR", &s.NameSelector)
	loadEnvString("SCRAPER_PRICE_SELECTOR", &s.PriceSelector)
}

func defaultScraperConfig() ScraperConfig {
	return ScraperConfig{
		URL:           "https://steampay.com/games",
		Cap:           50,
		SettleDelay:   3 * time.Second,
		RenderTimeout: 10 * time.Second,
		Headless:      true,
		ItemSelector:  "a.catalog-item",
		NameSelector:  "div.catalog-item__name",
		PriceSelector: "span.catalog-item__price-span",
	}
}

type syncConfig struct {
	Interval      time.Duration
	RunOnStart    bool
	ShutdownGrace time.Duration
	LockTTL       time.Duration
	Notify        bool
}

func (s *syncConfig) loadFromEnv() {
	loadEnvDuration("SYNC_INTERVAL", &s.Interval)
	loadEnvBool("SYNC_RUN_ON_START", &s.RunOnStart)
	loadEnvDuration("SYNC_SHUTDOWN_GRACE", &s.ShutdownGrace)
	loadEnvDuration("SYNC_LOCK_TTL", &s.LockTTL)
	loadEnvBool("SYNC_NOTIFY", &s.Notify)
}

func defaultSyncConfig() syncConfig {
	return syncConfig{
		Interval:      12 * time.Hour,
		RunOnStart:    true,
		ShutdownGrace: 30 * time.Second,
		LockTTL:       time.Hour,
		Notify:        true,
	}
}

type broadcastConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
}

func (b *broadcastConfig) loadFromEnv() {
	loadEnvInt("WS_QUEUE_SIZE", &b.QueueSize)
	loadEnvDuration("WS_WRITE_TIMEOUT", &b.WriteTimeout)
}

func defaultBroadcastConfig() broadcastConfig {
	return broadcastConfig{
		QueueSize:    64,
		WriteTimeout: 10 * time.Second,
	}
}

type Config struct {
	Listen    listenConfig
	PgSql     pgSqlConfig
	Nats      natsConfig
	Redis     redisConfig
	GCS       GCSConfig
	Log       logConfig
	Scraper   ScraperConfig
	Sync      syncConfig
	Broadcast broadcastConfig
}

func (c *Config) LoadFromEnv() {
	c.Listen.loadFromEnv()
	c.PgSql.loadFromEnv()
	c.Nats.loadFromEnv()
	c.Redis.loadFromEnv()
	c.GCS.loadFromEnv()
	c.Log.loadFromEnv()
	c.Scraper.loadFromEnv()
	c.Sync.loadFromEnv()
	c.Broadcast.loadFromEnv()
}

// Validate rejects settings the sync pipeline cannot run with
func (c Config) Validate() error {
	if c.Scraper.URL == "" {
		return fmt.Errorf("%w: scraper url is required", ErrInvalidConfig)
	}
	if c.Scraper.Cap <= 0 {
		return fmt.Errorf("%w: scraper cap must be positive, got %d", ErrInvalidConfig, c.Scraper.Cap)
	}
	if c.Scraper.RenderTimeout <= 0 {
		return fmt.Errorf("%w: render timeout must be positive", ErrInvalidConfig)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("%w: sync interval must be positive", ErrInvalidConfig)
	}
	if c.Broadcast.QueueSize <= 0 {
		return fmt.Errorf("%w: websocket queue size must be positive", ErrInvalidConfig)
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		Listen:    defaultListenConfig(),
		PgSql:     defaultPgSql(),
		Nats:      defaultNatsConfig(),
		Redis:     defaultRedisConfig(),
		GCS:       defaultGcsConfig(),
		Log:       defaultLogConfig(),
		Scraper:   defaultScraperConfig(),
		Sync:      defaultSyncConfig(),
		Broadcast: defaultBroadcastConfig(),
	}
}
