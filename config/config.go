package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds crawler configuration.
type Config struct {
	BaseURL            string
	RootPath           string
	IncludeAggregate   bool
	MaxDepth           int
	MaxPages           int
	Parallelism        int
	Delay              time.Duration
	RandomDelay        time.Duration
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RetryBackoffMax    time.Duration
	URLCacheSize       int
	OutputFile         string
	OutputFormat       string // csv, json, xlsx, dual, or all
	UserAgent          string
	AcceptLanguage     string
	MetricsAddr        string
	PipelineBufferSize int
	BatchSize          int
	Verbose            bool
}

// DefaultConfig returns conservative defaults for the target site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://www.ss.lv",
		RootPath:         "/lv/real-estate/plots-and-lands/",
		IncludeAggregate: true,
		MaxDepth:         0,
		MaxPages:         5000,
		Parallelism:      2,
		Delay:            100 * time.Millisecond,
		RandomDelay:      0,
		Timeout:          30 * time.Second,
		MaxRetries:       3,
		RetryBackoff:     500 * time.Millisecond,
		RetryBackoffMax:  8 * time.Second,
		URLCacheSize:     4096,
		OutputFile:       "output/plots.csv",
		OutputFormat:     "csv",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) " +
			"Chrome/123.0 Safari/537.36",
		AcceptLanguage:     "lv-LV,lv;q=0.9,en;q=0.8",
		MetricsAddr:        "",
		PipelineBufferSize: 512,
		BatchSize:          64,
		Verbose:            false,
	}
}

// RootURL returns the absolute URL of the root category node.
func (c *Config) RootURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.RootPath
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if !strings.HasPrefix(c.RootPath, "/") || !strings.HasSuffix(c.RootPath, "/") {
		return fmt.Errorf("root path must start and end with a slash")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth cannot be negative")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.URLCacheSize <= 0 {
		return fmt.Errorf("url cache size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "json", "xlsx", "dual", "all":
	default:
		return fmt.Errorf("output format must be csv, json, xlsx, dual, or all")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	return nil
}
