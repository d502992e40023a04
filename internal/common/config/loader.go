package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gcloud-docgen/internal/common/validation"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

// Default returns a configuration with every default applied and nothing
// else. It is not validated: the CLI only needs the template and docgen
// sections.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that were left empty after expansion
// from their conventional environment variable names.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty := func(dst *string, envKey string) {
		if *dst == "" {
			if val := os.Getenv(envKey); val != "" {
				*dst = val
			}
		}
	}

	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Template.Path, "SERVICE_DESC_TEMPLATE_PATH")
	setIfEmpty(&cfg.Storage.Azure.ConnectionString, "AZURE_STORAGE_CONNECTION_STRING")
	setIfEmpty(&cfg.Storage.SharePoint.ClientSecret, "SHAREPOINT_CLIENT_SECRET")
	setIfEmpty(&cfg.AWS.Region, "AWS_REGION")
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "service-documents"
	}

	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "eu-west-2"
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageBackendLocal
	}
	if cfg.Storage.Local.Root == "" {
		cfg.Storage.Local.Root = "./output"
	}

	if cfg.Template.DocsDir == "" {
		cfg.Template.DocsDir = "docs"
	}
	if cfg.Template.TemplatesDir == "" {
		cfg.Template.TemplatesDir = "templates"
	}

	if cfg.Docgen.HeadingPrefix == "" {
		cfg.Docgen.HeadingPrefix = "Heading"
	}
	if cfg.Docgen.NumeralColor == "" {
		cfg.Docgen.NumeralColor = "FF0000"
	}
	if cfg.Docgen.SpaceAfter == 0 {
		cfg.Docgen.SpaceAfter = 120
	}
	if cfg.Docgen.ImageTimeout == 0 {
		cfg.Docgen.ImageTimeout = 10000
	}
	if cfg.Docgen.MaxImageBytes == 0 {
		cfg.Docgen.MaxImageBytes = 10 << 20
	}
	if cfg.Docgen.MaxImageWidthEMU == 0 {
		cfg.Docgen.MaxImageWidthEMU = 5486400
	}
	if cfg.Docgen.MaxImagePixels == 0 {
		cfg.Docgen.MaxImagePixels = 40_000_000
	}
	if cfg.Docgen.FrameworkVersion == "" {
		cfg.Docgen.FrameworkVersion = "15"
	}
	if cfg.Docgen.Lot == "" {
		cfg.Docgen.Lot = "3"
	}

	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = 120000
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if err := validateStorage(cfg.Storage); err != nil {
		return err
	}

	if len(cfg.Docgen.NumeralColor) != 6 {
		return fmt.Errorf("docgen.numeral_color must be a 6 digit hex color")
	}

	if cfg.PDF.Enabled && cfg.PDF.TopicARN == "" {
		return fmt.Errorf("pdf.topic_arn is required when pdf is enabled")
	}

	if email := cfg.Notifications.Email; email.Enabled {
		if email.FromEmail == "" {
			return fmt.Errorf("notifications.email.from_email is required when email is enabled")
		}
		for _, addr := range append([]string{email.FromEmail}, email.Recipients...) {
			if !validation.ValidateEmail(addr) {
				return fmt.Errorf("notifications.email: invalid address %q", addr)
			}
		}
	}

	return nil
}

func validateStorage(s StorageConfig) error {
	switch s.Backend {
	case StorageBackendLocal:
		return nil
	case StorageBackendS3:
		if s.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
	case StorageBackendAzure:
		if s.Azure.ConnectionString == "" || s.Azure.Container == "" {
			return fmt.Errorf("storage.azure.connection_string and container are required")
		}
	case StorageBackendGCS:
		if s.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required")
		}
	case StorageBackendSharePoint:
		sp := s.SharePoint
		if sp.TenantID == "" || sp.ClientID == "" || sp.ClientSecret == "" || sp.SiteID == "" {
			return fmt.Errorf("storage.sharepoint tenant_id, client_id, client_secret and site_id are required")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", s.Backend)
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
