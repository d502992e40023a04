package generateservicedescription

import (
	"fmt"
	"time"

	"gcloud-docgen/internal/common/config"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// Placement defaults for jobs that name a service but no framework
	// version or lot.
	FrameworkVersion string `mapstructure:"framework_version"`
	Lot              string `mapstructure:"lot"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		MaxJobsActive:    2,
		Timeout:          2 * time.Minute,
		FrameworkVersion: "15",
		Lot:              "3",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	if workerCfg, exists := appConfig.Workers[TaskType]; exists {
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
		}
	}
	if appConfig.Docgen.FrameworkVersion != "" {
		cfg.FrameworkVersion = appConfig.Docgen.FrameworkVersion
	}
	if appConfig.Docgen.Lot != "" {
		cfg.Lot = appConfig.Docgen.Lot
	}
	return cfg
}
