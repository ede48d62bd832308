package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/browser"
	"github.com/KeerthivasanKvm/novaresolver/internal/cache"
	"github.com/KeerthivasanKvm/novaresolver/internal/config"
	"github.com/KeerthivasanKvm/novaresolver/internal/datastore"
	"github.com/KeerthivasanKvm/novaresolver/internal/httpclient"
	"github.com/KeerthivasanKvm/novaresolver/internal/logger"
	"github.com/KeerthivasanKvm/novaresolver/internal/resolver"
	"github.com/KeerthivasanKvm/novaresolver/internal/rslimiter"
	"github.com/KeerthivasanKvm/novaresolver/internal/strategy"
	"github.com/rs/zerolog"
)

func main() {
	flags := ParseFlags()

	gCfg, err := config.LoadGlobalConfig(flags.GlobalConfigFile)
	if err != nil {
		log.Fatalf("[FATAL] Could not load global config using path '%s': %v", flags.GlobalConfigFile, err)
	}
	if err := config.ValidateConfig(gCfg); err != nil {
		log.Fatalf("[FATAL] Configuration validation failed: %v", err)
	}

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Fatalf("[FATAL] Could not initialize logger: %v", err)
	}
	zLogger.Info().Msg("Logger initialized successfully")

	targets, err := collectTargets(flags)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to collect target URLs")
	}
	if len(targets) == 0 {
		zLogger.Fatal().Msg("No target URLs to resolve")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := buildEngine(ctx, gCfg, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to assemble resolution engine")
	}
	defer cleanup()

	var allowed []string
	if flags.Strategies != "" {
		for _, name := range strings.Split(flags.Strategies, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				allowed = append(allowed, trimmed)
			}
		}
	} else {
		allowed = gCfg.ResolverConfig.EnabledStrategies
	}

	exitCode := resolveTargets(ctx, engine, targets, allowed, gCfg, zLogger, flags.JSONOutput)
	cleanup()
	os.Exit(exitCode)
}

// buildEngine wires the cache store, fetcher, browser driver and
// strategy chain into a resolver. The returned cleanup is idempotent.
func buildEngine(ctx context.Context, gCfg *config.GlobalConfig, zLogger zerolog.Logger) (*resolver.Resolver, func(), error) {
	var cleanups []func()
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			for i := len(cleanups) - 1; i >= 0; i-- {
				cleanups[i]()
			}
		})
	}

	store, storeCleanup, err := buildCacheStore(ctx, gCfg, zLogger)
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, storeCleanup)

	fetcher, err := buildFetcher(gCfg.FetcherConfig, zLogger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var browserDriver strategy.LocationResolver
	if gCfg.BrowserConfig.Enabled {
		limiter := rslimiter.NewLimiter(gCfg.ResourceLimiterConfig, zLogger)
		driver := browser.NewDriver(gCfg.BrowserConfig, limiter, zLogger)
		if err := driver.Start(); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to start browser driver: %w", err)
		}
		cleanups = append(cleanups, driver.Stop)
		browserDriver = driver
	}

	chain := strategy.NewDefaultChain(fetcher, browserDriver, gCfg.ResolverConfig.MaxHops, zLogger)

	engine := resolver.NewResolver(
		store,
		fetcher,
		chain,
		gCfg.CacheConfig.TTL(),
		gCfg.ResolverConfig.Budget(),
		gCfg.ResolverConfig.MaxHops,
		zLogger,
	)

	if gCfg.StorageConfig.Enabled {
		history, err := datastore.NewHistoryStore(gCfg.StorageConfig, zLogger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to initialize resolution history: %w", err)
		}
		cleanups = append(cleanups, func() {
			if err := history.Close(); err != nil {
				zLogger.Error().Err(err).Msg("Failed to flush resolution history")
			}
		})
		engine.WithHistory(history)
	}

	return engine, cleanup, nil
}

func buildCacheStore(ctx context.Context, gCfg *config.GlobalConfig, zLogger zerolog.Logger) (cache.Store, func(), error) {
	switch gCfg.CacheConfig.Backend {
	case "sqlite":
		store, err := cache.NewSQLiteStore(gCfg.CacheConfig.SQLitePath, zLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite cache: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				zLogger.Error().Err(err).Msg("Failed to close sqlite cache")
			}
		}, nil
	default:
		store := cache.NewMemoryStore(zLogger)
		interval := time.Duration(gCfg.CacheConfig.SweepIntervalMins) * time.Minute
		if interval > 0 {
			store.StartSweeper(ctx, interval)
		}
		return store, func() {}, nil
	}
}

func buildFetcher(cfg config.FetcherConfig, zLogger zerolog.Logger) (*httpclient.Client, error) {
	builder := httpclient.NewClientBuilder(zLogger)
	if cfg.TimeoutSecs > 0 {
		builder.WithTimeout(time.Duration(cfg.TimeoutSecs) * time.Second)
	}
	if cfg.MaxRedirects > 0 {
		builder.WithMaxRedirects(cfg.MaxRedirects)
	}
	if cfg.UserAgent != "" {
		builder.WithUserAgent(cfg.UserAgent)
	}
	if cfg.MaxContentSizeMB > 0 {
		builder.WithMaxContentSize(cfg.MaxContentSizeMB * 1024 * 1024)
	}
	if cfg.InsecureSkipVerify {
		builder.WithInsecureSkipVerify(true)
	}
	if cfg.Proxy != "" {
		builder.WithProxy(cfg.Proxy)
	}
	return builder.Build()
}

// resolveTargets runs the engine over every target with bounded
// concurrency and prints the results. Returns the process exit code.
func resolveTargets(
	ctx context.Context,
	engine *resolver.Resolver,
	targets []string,
	allowed []string,
	gCfg *config.GlobalConfig,
	zLogger zerolog.Logger,
	jsonOutput bool,
) int {
	concurrency := gCfg.ResolverConfig.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	var failures int64
	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)

	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(url string) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := engine.Resolve(ctx, resolver.Request{
				URL:               url,
				AllowedStrategies: allowed,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				zLogger.Error().Err(err).Str("url", url).Msg("Resolution failed")
				if jsonOutput {
					line, _ := json.Marshal(map[string]string{"source_url": url, "error": err.Error()})
					fmt.Println(string(line))
				}
				return
			}
			if jsonOutput {
				line, _ := json.Marshal(result)
				fmt.Println(string(line))
			} else {
				provenance := "resolved"
				if result.FromCache {
					provenance = "cached"
				}
				fmt.Printf("%s -> %s  [%s, %s, %s]\n",
					url, result.Destination, result.Strategy, provenance, result.Elapsed.Round(time.Millisecond))
			}
		}(target)
	}
	wg.Wait()

	if failures > 0 {
		zLogger.Warn().Int64("failed", failures).Int("total", len(targets)).Msg("Some resolutions failed")
		return 1
	}
	return 0
}

func collectTargets(flags AppFlags) ([]string, error) {
	var targets []string
	if flags.URL != "" {
		targets = append(targets, flags.URL)
	}
	if flags.TargetsFile != "" {
		file, err := os.Open(flags.TargetsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open targets file '%s': %w", flags.TargetsFile, err)
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			targets = append(targets, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read targets file '%s': %w", flags.TargetsFile, err)
		}
	}
	return targets, nil
}
