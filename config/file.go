package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with optional fields so a config file can
// override only the keys it names. Durations are strings in the file.
type fileConfig struct {
	BaseURL          *string `yaml:"base_url"`
	RootPath         *string `yaml:"root_path"`
	IncludeAggregate *bool   `yaml:"include_aggregate"`
	MaxDepth         *int    `yaml:"max_depth"`
	MaxPages         *int    `yaml:"max_pages"`
	Parallelism      *int    `yaml:"parallelism"`
	Delay            *string `yaml:"delay"`
	RandomDelay      *string `yaml:"random_delay"`
	Timeout          *string `yaml:"timeout"`
	MaxRetries       *int    `yaml:"max_retries"`
	RetryBackoff     *string `yaml:"retry_backoff"`
	RetryBackoffMax  *string `yaml:"retry_backoff_max"`
	URLCacheSize     *int    `yaml:"url_cache_size"`
	OutputFile       *string `yaml:"output_file"`
	OutputFormat     *string `yaml:"output_format"`
	UserAgent        *string `yaml:"user_agent"`
	AcceptLanguage   *string `yaml:"accept_language"`
	MetricsAddr      *string `yaml:"metrics_addr"`
}

// LoadFile overlays cfg with values from a YAML config file.
func LoadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	applyDuration := func(dst *time.Duration, src *string, key string) error {
		if src == nil {
			return nil
		}
		parsed, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("config file %s: %s: %w", path, key, err)
		}
		*dst = parsed
		return nil
	}

	applyString(&cfg.BaseURL, fc.BaseURL)
	applyString(&cfg.RootPath, fc.RootPath)
	if fc.IncludeAggregate != nil {
		cfg.IncludeAggregate = *fc.IncludeAggregate
	}
	applyInt(&cfg.MaxDepth, fc.MaxDepth)
	applyInt(&cfg.MaxPages, fc.MaxPages)
	applyInt(&cfg.Parallelism, fc.Parallelism)
	applyInt(&cfg.MaxRetries, fc.MaxRetries)
	applyInt(&cfg.URLCacheSize, fc.URLCacheSize)
	applyString(&cfg.OutputFile, fc.OutputFile)
	applyString(&cfg.OutputFormat, fc.OutputFormat)
	applyString(&cfg.UserAgent, fc.UserAgent)
	applyString(&cfg.AcceptLanguage, fc.AcceptLanguage)
	applyString(&cfg.MetricsAddr, fc.MetricsAddr)

	if err := applyDuration(&cfg.Delay, fc.Delay, "delay"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.RandomDelay, fc.RandomDelay, "random_delay"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.Timeout, fc.Timeout, "timeout"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.RetryBackoff, fc.RetryBackoff, "retry_backoff"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.RetryBackoffMax, fc.RetryBackoffMax, "retry_backoff_max"); err != nil {
		return err
	}

	return nil
}
