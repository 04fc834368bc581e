// File: internal/browser/session.go

// Package browser owns the controllable measurement session: a local headless
// Chrome emulating the device's viewport. It exists because the device itself
// cannot report page geometry; this surrogate renders the same pages at the
// same width and answers the resolver's read-only script evaluations. It must
// never stand in for the device: no input events are dispatched through it.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/kimjiwoons/blindscroll/internal/config"
	"github.com/kimjiwoons/blindscroll/internal/geometry"
	"go.uber.org/zap"
)

// Session is one headless Chrome instance plus the tab used for measurement.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	cfg     config.BrowserConfig
	log     *zap.Logger
}

// NewSession launches the browser and prepares a measurement tab. The caller
// must Close the session to reap the browser process.
func NewSession(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	log := logger.Named("browser").With(zap.String("session", uuid.NewString()[:8]))

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)

	ctxOpts := []chromedp.ContextOption{}
	if cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(log.Sugar().Debugf))
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, ctxOpts...)

	s := &Session{
		ctx:     tabCtx,
		cancels: []context.CancelFunc{cancelTab, cancelAlloc},
		cfg:     cfg,
		log:     log,
	}

	// Starting the browser eagerly surfaces launch failures here instead of
	// at the first measurement.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: failed to launch: %w", err)
	}

	s.log.Info("Measurement browser started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// EmulateViewport sizes the tab to the device's effective page area and
// overrides the user agent so pages serve their mobile layout. Document
// offsets measured here only line up with the device when the emulated height
// excludes the device's browser chrome.
func (s *Session) EmulateViewport(v geometry.Viewport) error {
	if !v.Valid() {
		return fmt.Errorf("browser: refusing to emulate invalid viewport %dx%d (effective %d)",
			v.ScreenWidth, v.ScreenHeight, v.EffectiveHeight())
	}

	err := chromedp.Run(s.ctx,
		emulation.SetUserAgentOverride(s.cfg.UserAgent).
			WithAcceptLanguage(s.cfg.AcceptLanguage).
			WithPlatform(s.cfg.Platform),
		emulation.SetDeviceMetricsOverride(
			int64(v.ScreenWidth), int64(v.EffectiveHeight()), 2, true).
			WithScreenWidth(int64(v.ScreenWidth)).
			WithScreenHeight(int64(v.ScreenHeight)),
	)
	if err != nil {
		return fmt.Errorf("browser: viewport emulation failed: %w", err)
	}

	s.log.Debug("Viewport emulated",
		zap.Int("width", v.ScreenWidth),
		zap.Int("effectiveHeight", v.EffectiveHeight()))
	return nil
}

// Navigate loads a URL and waits the configured settle time so late-loading
// result modules reach their final positions before anything is measured.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	navCtx := s.ctx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}

	s.log.Debug("Navigating", zap.String("url", url))
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(s.cfg.PageLoadWait),
	); err != nil {
		return fmt.Errorf("browser: navigation to %s failed: %w", url, err)
	}
	return nil
}

// Evaluate runs a page-context expression and unmarshals the structured result
// into out. Implements geometry.Evaluator.
func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("browser: evaluation failed: %w", err)
	}
	return nil
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	// Give leakless a moment to reap on slow hosts.
	time.Sleep(50 * time.Millisecond)
	s.log.Debug("Measurement browser closed")
}
