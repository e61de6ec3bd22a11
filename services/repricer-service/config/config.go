package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// RangeConfig описывает один диапазон таблицы (магазин) и его учетные данные в маркетплейсе
type RangeConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	SheetRange  string `mapstructure:"sheetRange" validate:"required,contains=!"`
	OutputRange string `mapstructure:"outputRange"`
	BusinessID  string `mapstructure:"businessID" validate:"required,numeric"`
	APIKeyEnv   string `mapstructure:"apiKeyEnv"`
	APIKey      string `mapstructure:"apiKey" validate:"required"`
}

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Repricer struct {
		CycleInterval  time.Duration `validate:"gt=0"`  // пауза между циклами
		RangePause     time.Duration `validate:"gte=0"` // пауза между диапазонами внутри цикла
		Debug          bool          // dry-run: обновления цен только логируются
		WorkerPoolSize int           `validate:"gt=0"` // размер пула для разбора/сведения/переоценки
		Currency       string
		OwnStorefronts []string // витрины продавца, которые не нужно перебивать
		LockTTL        time.Duration
		SnapshotDir    string // каталог для xlsx-снимков в debug-режиме
	}

	Report struct {
		PollInterval  time.Duration `validate:"gt=0"`
		MaxWait       time.Duration `validate:"gt=0"`  // верхняя граница ожидания генерации отчета
		MaxPollErrors int           `validate:"gte=0"` // подряд идущие ошибки опроса до отказа
		DateFrom      string        // dd-mm-yyyy
	}

	Market struct {
		BaseURL           string
		Timeout           time.Duration
		RequestsPerSecond float64 // темп обновлений цен, 0 - без ограничения
	}

	Listing struct {
		Backend         string // google | xlsx
		SpreadsheetID   string
		CredentialsFile string
		TokenFile       string
		WorkbookPath    string
	}

	Ranges []RangeConfig

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	Postgres struct {
		Enabled   bool
		Host      string
		Port      int
		User      string
		Password  string
		DBName    string
		SSLMode   string
		Timeout   time.Duration
		PoolSize  int           // размер пула соединений
		Retention time.Duration // срок хранения истории, 0 - хранить всегда
	}

	Redis struct {
		Enabled    bool
		Host       string
		Port       int
		Password   string
		DB         int
		SummaryTTL time.Duration // срок хранения сводки по последнему прогону
	}

	Kafka struct {
		Enabled bool
		Brokers []string
		Topic   string
	}

	Metrics struct {
		Enabled  bool
		Endpoint string
		Port     int
	}

	Security struct {
		JWTPublicKeyFile string // пусто - API без авторизации
		JWTIssuer        string
		CORSAllowOrigins []string
	}
}

// Load загружает .env, конфигурационный файл и переменные окружения.
// configPath может быть именем конфигурации (без расширения) или путем к файлу.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("ошибка чтения .env: %w", err)
	}

	v := viper.New()

	switch {
	case configPath == "":
		v.SetConfigName("config")
	case filepath.Ext(configPath) != "":
		v.SetConfigFile(configPath)
	default:
		v.SetConfigName(configPath)
	}
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("../../config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// без файла работаем на значениях по умолчанию и переменных окружения
	}

	setDefaults(v)
	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	if cfg.ENV == "" {
		cfg.ENV = "development"
	}

	cfg.resolveRanges()

	return &cfg, nil
}

// resolveRanges подставляет API-ключи из окружения и диапазон записи по умолчанию
func (c *Config) resolveRanges() {
	for i := range c.Ranges {
		r := &c.Ranges[i]
		if r.APIKey == "" && r.APIKeyEnv != "" {
			r.APIKey = os.Getenv(r.APIKeyEnv)
		}
		if r.OutputRange == "" {
			r.OutputRange = DefaultOutputRange(r.SheetRange)
		}
	}
}

// DefaultOutputRange возвращает диапазон записи: тот же лист, начиная с третьей строки.
// "YM_Tech_PC!A1:L" -> "YM_Tech_PC!A3:L"
func DefaultOutputRange(sheetRange string) string {
	sheet, cells, ok := strings.Cut(sheetRange, "!")
	if !ok {
		return sheetRange
	}
	return sheet + "!" + strings.Replace(cells, "1", "3", 1)
}

// Validate проверяет интервалы работы воркера и диапазоны.
// Нулевой интервал опроса или цикла недопустим.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c.Repricer); err != nil {
		return fmt.Errorf("repricer: %w", err)
	}
	if err := validate.Struct(c.Report); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return c.ValidateRanges()
}

// ValidateRanges проверяет, что воркеру есть что обрабатывать и все диапазоны заполнены
func (c *Config) ValidateRanges() error {
	if len(c.Ranges) == 0 {
		return errors.New("не задано ни одного диапазона (ranges)")
	}

	validate := validator.New()
	seen := make(map[string]struct{}, len(c.Ranges))
	for _, r := range c.Ranges {
		if err := validate.Struct(r); err != nil {
			return fmt.Errorf("диапазон %q: %w", r.Name, err)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("диапазон %q указан дважды", r.Name)
		}
		seen[r.Name] = struct{}{}
	}

	switch c.Listing.Backend {
	case "google":
		if c.Listing.SpreadsheetID == "" {
			return errors.New("listing.spreadsheetID обязателен для google")
		}
	case "xlsx":
		if c.Listing.WorkbookPath == "" {
			return errors.New("listing.workbookPath обязателен для xlsx")
		}
	default:
		return fmt.Errorf("неизвестный listing.backend: %q", c.Listing.Backend)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("appName", "repricer-service")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("logLevel", "info")
	v.SetDefault("env", "development")

	v.SetDefault("repricer.cycleInterval", "30m")
	v.SetDefault("repricer.rangePause", "60s")
	v.SetDefault("repricer.debug", false)
	v.SetDefault("repricer.workerPoolSize", 4)
	v.SetDefault("repricer.currency", "RUR")
	v.SetDefault("repricer.ownStorefronts", []string{"SSmart shop", "Tech PC Components", "ByMarket"})
	v.SetDefault("repricer.lockTTL", "25m")
	v.SetDefault("repricer.snapshotDir", "snapshots")

	v.SetDefault("report.pollInterval", "10s")
	v.SetDefault("report.maxWait", "30m")
	v.SetDefault("report.maxPollErrors", 3)
	v.SetDefault("report.dateFrom", "01-01-2023")

	v.SetDefault("market.baseURL", "https://api.partner.market.yandex.ru")
	v.SetDefault("market.timeout", "60s")
	v.SetDefault("market.requestsPerSecond", 0)

	v.SetDefault("listing.backend", "google")
	v.SetDefault("listing.credentialsFile", "credentials.json")
	v.SetDefault("listing.tokenFile", "token.json")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "10s")
	v.SetDefault("server.shutdownTimeout", "5s")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "repricer")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timeout", "5s")
	v.SetDefault("postgres.poolSize", 10)
	v.SetDefault("postgres.retention", "720h")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.summaryTTL", "168h")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "repricer-events")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("security.jwtIssuer", "")
	v.SetDefault("security.corsAllowOrigins", []string{"*"})
}

func bindEnvVariables(v *viper.Viper) {
	_ = v.BindEnv("appName", "APP_NAME")
	_ = v.BindEnv("version", "APP_VERSION")
	_ = v.BindEnv("logLevel", "LOG_LEVEL")
	_ = v.BindEnv("env", "APP_ENV")

	_ = v.BindEnv("repricer.cycleInterval", "REPRICER_CYCLE_INTERVAL")
	_ = v.BindEnv("repricer.rangePause", "REPRICER_RANGE_PAUSE")
	_ = v.BindEnv("repricer.debug", "DEBUG")
	_ = v.BindEnv("repricer.workerPoolSize", "REPRICER_WORKER_POOL_SIZE")

	_ = v.BindEnv("report.pollInterval", "REPORT_POLL_INTERVAL")
	_ = v.BindEnv("report.maxWait", "REPORT_MAX_WAIT")

	_ = v.BindEnv("market.baseURL", "MARKET_BASE_URL")

	_ = v.BindEnv("listing.backend", "LISTING_BACKEND")
	_ = v.BindEnv("listing.spreadsheetID", "SPREADSHEET_ID")
	_ = v.BindEnv("listing.credentialsFile", "GOOGLE_CREDENTIALS_FILE")
	_ = v.BindEnv("listing.tokenFile", "GOOGLE_TOKEN_FILE")
	_ = v.BindEnv("listing.workbookPath", "LISTING_WORKBOOK_PATH")

	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("server.port", "SERVER_PORT")

	_ = v.BindEnv("postgres.enabled", "POSTGRES_ENABLED")
	_ = v.BindEnv("postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	_ = v.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")

	_ = v.BindEnv("redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")

	_ = v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("kafka.topic", "KAFKA_TOPIC")

	_ = v.BindEnv("metrics.enabled", "METRICS_ENABLED")
	_ = v.BindEnv("metrics.port", "METRICS_PORT")

	_ = v.BindEnv("security.jwtPublicKeyFile", "JWT_PUBLIC_KEY_FILE")
	_ = v.BindEnv("security.jwtIssuer", "JWT_ISSUER")
	_ = v.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")
}
