package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zemeslab/sslv-plots/config"
	"github.com/zemeslab/sslv-plots/models"
	"github.com/zemeslab/sslv-plots/pipeline"
	"github.com/zemeslab/sslv-plots/scraper"
)

func main() {
	// A missing .env is fine; only explicit configuration errors are fatal.
	_ = godotenv.Load()

	defaults := config.DefaultConfig()
	if err := applyEnv(defaults); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	configFile := flag.String("config", "", "Optional YAML config file")
	baseURL := flag.String("base-url", defaults.BaseURL, "Base origin to crawl")
	rootPath := flag.String("root-path", defaults.RootPath, "Root category path under the base origin")
	aggregateSell := flag.Bool("aggregate-sell", defaults.IncludeAggregate, "Also crawl the root-level aggregate listing")
	maxDepth := flag.Int("max-depth", defaults.MaxDepth, "Category tree depth bound (0 = unbounded)")
	maxPages := flag.Int("pages", defaults.MaxPages, "Maximum listing pages per category (redirect-loop fail-safe)")
	parallelism := flag.Int("parallel", defaults.Parallelism, "Number of concurrent requests")
	delayMs := flag.Int("delay", int(defaults.Delay/time.Millisecond), "Delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", int(defaults.RandomDelay/time.Millisecond), "Random jitter added to delay (milliseconds)")
	timeoutSec := flag.Int("timeout", int(defaults.Timeout/time.Second), "Request timeout (seconds)")
	maxRetries := flag.Int("max-retries", defaults.MaxRetries, "Maximum retry attempts per URL")
	retryBackoffMs := flag.Int("retry-backoff", int(defaults.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaults.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	outputFile := flag.String("output", defaults.OutputFile, "Output file path")
	outputFormat := flag.String("format", defaults.OutputFormat, "Output format: csv, json, xlsx, dual, or all")
	metricsAddr := flag.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaults
	if *configFile != "" {
		if err := config.LoadFile(*configFile, cfg); err != nil {
			slog.Error("loading config file", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Flags the user actually passed win over the config file; untouched
	// flags keep the file's values.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlag := func(name string, apply func()) {
		if set[name] {
			apply()
		}
	}
	applyFlag("base-url", func() { cfg.BaseURL = *baseURL })
	applyFlag("root-path", func() { cfg.RootPath = *rootPath })
	applyFlag("aggregate-sell", func() { cfg.IncludeAggregate = *aggregateSell })
	applyFlag("max-depth", func() { cfg.MaxDepth = *maxDepth })
	applyFlag("pages", func() { cfg.MaxPages = *maxPages })
	applyFlag("parallel", func() { cfg.Parallelism = *parallelism })
	applyFlag("delay", func() { cfg.Delay = time.Duration(*delayMs) * time.Millisecond })
	applyFlag("random-delay", func() { cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond })
	applyFlag("timeout", func() { cfg.Timeout = time.Duration(*timeoutSec) * time.Second })
	applyFlag("max-retries", func() { cfg.MaxRetries = *maxRetries })
	applyFlag("retry-backoff", func() { cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond })
	applyFlag("retry-backoff-max", func() { cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond })
	applyFlag("output", func() { cfg.OutputFile = *outputFile })
	applyFlag("format", func() { cfg.OutputFormat = *outputFormat })
	applyFlag("metrics-addr", func() { cfg.MetricsAddr = *metricsAddr })
	cfg.Verbose = *verbose
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting crawl",
		slog.String("root", cfg.RootURL()),
		slog.Int("workers", cfg.Parallelism),
		slog.Duration("delay", cfg.Delay),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := s.Run(ctx, p)
	if err != nil {
		slog.Error("crawl failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
	}
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, time.Since(startTime), cfg.OutputFile, p.GetMetrics())
}

func applyEnv(cfg *config.Config) error {
	if value, ok := config.EnvString("SSLV_BASE_URL"); ok {
		cfg.BaseURL = value
	}
	if value, ok := config.EnvString("SSLV_ROOT_PATH"); ok {
		cfg.RootPath = value
	}
	if value, ok, err := config.EnvInt("SSLV_PARALLEL"); err != nil {
		return err
	} else if ok {
		cfg.Parallelism = value
	}
	if value, ok, err := config.EnvInt("SSLV_MAX_PAGES"); err != nil {
		return err
	} else if ok {
		cfg.MaxPages = value
	}
	if value, ok, err := config.EnvDuration("SSLV_DELAY"); err != nil {
		return err
	} else if ok {
		cfg.Delay = value
	}
	if value, ok := config.EnvString("SSLV_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := config.EnvString("SSLV_FORMAT"); ok {
		cfg.OutputFormat = value
	}
	if value, ok := config.EnvString("SSLV_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	if value, ok, err := config.EnvBool("SSLV_AGGREGATE_SELL"); err != nil {
		return err
	} else if ok {
		cfg.IncludeAggregate = value
	}
	return nil
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	switch format {
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "xlsx":
		return pipeline.NewXLSXWriter(filename)
	case "dual", "all":
		csvWriter, err := pipeline.NewCSVWriter(base + ".csv")
		if err != nil {
			return nil, err
		}
		jsonWriter, err := pipeline.NewJSONWriter(base + ".json")
		if err != nil {
			csvWriter.Close()
			return nil, err
		}
		writers := []pipeline.OutputWriter{csvWriter, jsonWriter}
		if format == "all" {
			xlsxWriter, err := pipeline.NewXLSXWriter(base + ".xlsx")
			if err != nil {
				csvWriter.Close()
				jsonWriter.Close()
				return nil, err
			}
			writers = append(writers, xlsxWriter)
		}
		return pipeline.NewMultiWriter(writers...)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.CrawlResult, duration time.Duration, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")

	totalRecords := int64(0)
	if processed, ok := metrics["processed_ads"].(int64); ok {
		totalRecords = processed
	}

	fmt.Printf("  Categories:    %d\n", result.CategoryCount)
	fmt.Printf("  Listings:      %d (%d pages)\n", result.SellURLCount, result.ListingPageCount)
	fmt.Printf("  Unique links:  %d\n", result.LinkCount)
	fmt.Printf("  Records:       %d\n", totalRecords)
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
