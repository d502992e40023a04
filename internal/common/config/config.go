package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	AWS           AWSConfig               `mapstructure:"aws"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Template      TemplateConfig          `mapstructure:"template"`
	Docgen        DocgenConfig            `mapstructure:"docgen"`
	PDF           PDFConfig               `mapstructure:"pdf"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Lock          LockConfig              `mapstructure:"lock"`
	Tracing       TracingConfig           `mapstructure:"tracing"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"`
	Index      string   `mapstructure:"index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AWSConfig is shared by the S3 backend, the PDF requester and the mailer.
type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Document Storage ---

const (
	StorageBackendLocal      = "local"
	StorageBackendS3         = "s3"
	StorageBackendAzure      = "azure"
	StorageBackendGCS        = "gcs"
	StorageBackendSharePoint = "sharepoint"
)

// StorageConfig selects exactly one backend for generated documents.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`

	Local struct {
		Root string `mapstructure:"root"`
	} `mapstructure:"local"`

	S3 struct {
		Bucket       string `mapstructure:"bucket"`
		Endpoint     string `mapstructure:"endpoint"`
		UsePathStyle bool   `mapstructure:"use_path_style"`
	} `mapstructure:"s3"`

	Azure struct {
		ConnectionString string `mapstructure:"connection_string"`
		Container        string `mapstructure:"container"`
	} `mapstructure:"azure"`

	GCS struct {
		Bucket          string `mapstructure:"bucket"`
		CredentialsFile string `mapstructure:"credentials_file"`
	} `mapstructure:"gcs"`

	SharePoint struct {
		TenantID     string `mapstructure:"tenant_id"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		SiteID       string `mapstructure:"site_id"`
		BasePath     string `mapstructure:"base_path"`
	} `mapstructure:"sharepoint"`
}

// --- Document Generation ---

// TemplateConfig locates the service description template.
type TemplateConfig struct {
	Path         string `mapstructure:"path"`
	DocsDir      string `mapstructure:"docs_dir"`
	TemplatesDir string `mapstructure:"templates_dir"`
}

// DocgenConfig tunes the document transformation engine.
type DocgenConfig struct {
	HeadingPrefix     string `mapstructure:"heading_prefix"`
	NumeralColor      string `mapstructure:"numeral_color"`
	SpaceAfter        int    `mapstructure:"space_after"`   // twips
	ImageTimeout      int    `mapstructure:"image_timeout"` // milliseconds
	MaxImageBytes     int64  `mapstructure:"max_image_bytes"`
	MaxImageWidthEMU  int64  `mapstructure:"max_image_width_emu"`
	MaxImagePixels    int    `mapstructure:"max_image_pixels"`
	FrameworkVersion  string `mapstructure:"framework_version"`
	Lot               string `mapstructure:"lot"`
	ExciseSubheadings bool   `mapstructure:"excise_subheadings"`
}

type PDFConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	TopicARN string `mapstructure:"topic_arn"`
}

// NotificationConfig holds settings for publish notifications.
type NotificationConfig struct {
	Email struct {
		Enabled    bool     `mapstructure:"enabled"`
		FromEmail  string   `mapstructure:"from_email"`
		Recipients []string `mapstructure:"recipients"`
	} `mapstructure:"email"`
}

type LockConfig struct {
	TTL int `mapstructure:"ttl"` // milliseconds
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
