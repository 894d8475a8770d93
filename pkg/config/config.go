package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Dataset   DatasetConfig
	Dashboard DashboardConfig
	Redis     RedisConfig
	SQLite    SQLiteConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	Development  bool
}

type DatasetConfig struct {
	Path        string
	FillMissing bool
	StripHTML   bool
	DateLayout  string
	Sentinel    string
}

type DashboardConfig struct {
	DefaultTopTerms int
	MinTopTerms     int
	MaxTopTerms     int
	ChartTerms      int
	ChartLimit      int
	PageSize        int
	MaxPageSize     int
	MaxSearchTerms  int
	MemoTTLSeconds  int
}

type RedisConfig struct {
	Enabled    bool
	Host       string
	Port       int
	Password   string
	DB         int
	TTLSeconds int
}

type SQLiteConfig struct {
	Enabled bool
	Path    string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads config.yaml (if any) from the usual search paths and applies
// RULINGS_* environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/rulings-explorer")
	}

	v.SetEnvPrefix("RULINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.development", false)

	v.SetDefault("dataset.path", "sentencias_ambientales_data.csv")
	v.SetDefault("dataset.fillMissing", true)
	v.SetDefault("dataset.stripHTML", false)
	v.SetDefault("dataset.dateLayout", "2-1-2006")
	v.SetDefault("dataset.sentinel", "Todos")

	v.SetDefault("dashboard.defaultTopTerms", 20)
	v.SetDefault("dashboard.minTopTerms", 10)
	v.SetDefault("dashboard.maxTopTerms", 50)
	v.SetDefault("dashboard.chartTerms", 15)
	v.SetDefault("dashboard.chartLimit", 10)
	v.SetDefault("dashboard.pageSize", 50)
	v.SetDefault("dashboard.maxPageSize", 500)
	v.SetDefault("dashboard.maxSearchTerms", 20)
	v.SetDefault("dashboard.memoTTLSeconds", 600)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSeconds", 600)

	v.SetDefault("sqlite.enabled", true)
	v.SetDefault("sqlite.path", "./data/rulings.db")

	v.SetDefault("rateLimit.requestsPerMinute", 120)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
