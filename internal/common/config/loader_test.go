package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: gcloud_docgen
    user: docgen
  elasticsearch:
    addresses:
      - http://localhost:9200
  redis:
    address: localhost:6379
storage:
  backend: s3
  s3:
    bucket: ${TEST_DOCS_BUCKET}
workers:
  generate-service-description:
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_DOCS_BUCKET", "pa-gcloud")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "localhost:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, "pa-gcloud", cfg.Storage.S3.Bucket)
	assert.Equal(t, "http://localhost:9200", cfg.Database.Elasticsearch.URL)

	// defaults
	assert.Equal(t, "Heading", cfg.Docgen.HeadingPrefix)
	assert.Equal(t, "FF0000", cfg.Docgen.NumeralColor)
	assert.Equal(t, 120, cfg.Docgen.SpaceAfter)
	assert.Equal(t, "service-documents", cfg.Database.Elasticsearch.Index)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	worker := GetWorkerConfig(cfg, "generate-service-description")
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 30000, worker.Timeout)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing broker",
			yaml:    "database:\n  postgres:\n    host: x\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "unknown backend",
			yaml: `
camunda: {broker_address: b}
database:
  postgres: {host: h, database: d, user: u}
  elasticsearch: {url: "http://es:9200"}
  redis: {address: r}
storage: {backend: ftp}
`,
			wantErr: `unknown storage.backend "ftp"`,
		},
		{
			name: "pdf without topic",
			yaml: `
camunda: {broker_address: b}
database:
  postgres: {host: h, database: d, user: u}
  elasticsearch: {url: "http://es:9200"}
  redis: {address: r}
pdf: {enabled: true}
`,
			wantErr: "pdf.topic_arn is required",
		},
		{
			name: "invalid recipient",
			yaml: `
camunda: {broker_address: b}
database:
  postgres: {host: h, database: d, user: u}
  elasticsearch: {url: "http://es:9200"}
  redis: {address: r}
notifications:
  email:
    enabled: true
    from_email: docs@example.com
    recipients: [bid-team]
`,
			wantErr: `invalid address "bid-team"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, StorageBackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "templates", cfg.Template.TemplatesDir)
	assert.Equal(t, "15", cfg.Docgen.FrameworkVersion)
	assert.Equal(t, "3", cfg.Docgen.Lot)
	assert.Equal(t, int64(5486400), cfg.Docgen.MaxImageWidthEMU)
	assert.Equal(t, 40_000_000, cfg.Docgen.MaxImagePixels)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"search-service-documents": {Enabled: false},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "search-service-documents"))
	assert.True(t, IsWorkerEnabled(cfg, "unknown"))
}
