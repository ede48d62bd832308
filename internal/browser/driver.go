package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/config"
	"github.com/KeerthivasanKvm/novaresolver/internal/rslimiter"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// Selectors clicked (first match wins) to reveal a gated destination when
// the page needs an interaction before navigating away.
var defaultRevealSelectors = []string{
	"a.download", "a.btn-download", "a.get-link",
	"#download", "#get-link", "#skip", "#skip-ad",
	"button.download", "button.get-link", "button.skip",
}

// Driver manages the headless-browser session pool used by the
// automation strategy.
type Driver struct {
	cfg     config.BrowserConfig
	limiter *rslimiter.Limiter
	logger  zerolog.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	pool     *Pool
	running  bool
}

// NewDriver creates a browser driver. Start must be called before use.
func NewDriver(cfg config.BrowserConfig, limiter *rslimiter.Limiter, logger zerolog.Logger) *Driver {
	return &Driver{
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.With().Str("component", "BrowserDriver").Logger(),
	}
}

// Start launches the browser process and initializes the session pool.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	if !d.cfg.Enabled {
		d.logger.Info().Msg("Headless browser is disabled in config")
		return nil
	}

	l := launcher.New()
	if d.cfg.ChromePath != "" {
		l = l.Bin(d.cfg.ChromePath)
	}
	if d.cfg.UserDataDir != "" {
		l = l.UserDataDir(d.cfg.UserDataDir)
	}

	l = l.
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("disable-default-apps").
		Set("disable-sync")

	if d.cfg.DisableImages {
		l = l.Set("blink-settings", "imagesEnabled=false")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	d.launcher = l

	cfg := d.cfg
	logger := d.logger
	factory := func() (Session, error) {
		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect browser session: %w", err)
		}
		return &rodSession{browser: b, cfg: cfg, logger: logger}, nil
	}

	d.pool = NewPool(d.cfg.PoolSize, factory, d.logger)
	d.running = true
	d.logger.Info().Int("pool_size", d.cfg.PoolSize).Msg("Browser driver started")
	return nil
}

// Stop shuts down the pool and the browser process.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	d.pool.Close()
	if d.launcher != nil {
		d.launcher.Cleanup()
	}
	d.running = false
	d.logger.Info().Msg("Browser driver stopped")
}

// Enabled reports whether the driver is configured to run.
func (d *Driver) Enabled() bool {
	return d.cfg.Enabled
}

// ResolveLocation navigates to the URL in a pooled session and returns
// the final location after the page settles and any reveal interaction.
// A session whose operation errors (including ctx cancellation) is
// closed and replaced, never returned to the pool.
func (d *Driver) ResolveLocation(ctx context.Context, url string) (string, error) {
	d.mu.Lock()
	running := d.running
	pool := d.pool
	d.mu.Unlock()

	if !running {
		return "", fmt.Errorf("browser driver not running")
	}
	if d.limiter != nil {
		if err := d.limiter.Allow(); err != nil {
			return "", err
		}
	}

	session, err := pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire browser session: %w", err)
	}

	location, err := session.Resolve(ctx, url)
	if err != nil {
		pool.Discard(session)
		return "", err
	}
	pool.Release(session)
	return location, nil
}

// rodSession adapts a rod browser connection to the Session interface.
type rodSession struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
	logger  zerolog.Logger
}

func (s *rodSession) Resolve(ctx context.Context, url string) (string, error) {
	timeout := time.Duration(s.cfg.PageLoadTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	pageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := s.browser.Context(pageCtx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  s.cfg.WindowWidth,
		Height: s.cfg.WindowHeight,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to set viewport")
	}

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load timeout for %s: %w", url, err)
	}

	if err := s.settle(pageCtx); err != nil {
		return "", err
	}

	if s.clickReveal(page) {
		if err := s.settle(pageCtx); err != nil {
			return "", err
		}
	}

	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page location: %w", err)
	}
	return info.URL, nil
}

// settle waits the configured post-load delay, bounded by ctx so a
// budget-exhausted caller does not keep the session busy.
func (s *rodSession) settle(ctx context.Context) error {
	wait := time.Duration(s.cfg.WaitAfterLoadMs) * time.Millisecond
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// clickReveal clicks the first matching reveal element, if any.
func (s *rodSession) clickReveal(page *rod.Page) bool {
	selectors := s.cfg.RevealSelectors
	if len(selectors) == 0 {
		selectors = defaultRevealSelectors
	}
	for _, sel := range selectors {
		el, err := page.Timeout(500 * time.Millisecond).Element(sel)
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			s.logger.Debug().Err(err).Str("selector", sel).Msg("Reveal click failed")
			continue
		}
		s.logger.Debug().Str("selector", sel).Msg("Clicked reveal element")
		return true
	}
	return false
}

func (s *rodSession) Close() error {
	return s.browser.Close()
}
