// Package browser implements domain.Port: Rod drives a headless Chrome
// session, HTTP fetches static HTML and queries it with goquery.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"autopilot/internal/domain"
)

// RodConfig configures the headless browser port.
type RodConfig struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome. Empty
	// launches a local one.
	RemoteURL    string
	NoSandbox    bool
	FetchTimeout time.Duration
	UserAgent    string
	// IdleTime is how long the network must be quiet for WaitNetworkIdle.
	IdleTime time.Duration
	Logger   *slog.Logger
}

func (c *RodConfig) defaults() {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.IdleTime <= 0 {
		c.IdleTime = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Rod owns one browser session for an engine run. Every Open gets its own
// stealth page which the returned Document closes.
type Rod struct {
	cfg     RodConfig
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

func NewRod(cfg RodConfig) *Rod {
	cfg.defaults()
	return &Rod{cfg: cfg}
}

// Launch starts (or connects to) Chrome. Calling it on a live session is a
// no-op.
func (r *Rod) Launch(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return nil
	}

	log := r.cfg.Logger
	wsURL := r.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Context(ctx).Headless(true).NoSandbox(r.cfg.NoSandbox)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		r.lnch = l
		log.Info("browser launched", "url", wsURL)
	} else {
		log.Info("browser connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		r.cleanupLocked()
		return fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	r.browser = b
	return nil
}

func (r *Rod) Available() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.browser != nil
}

func (r *Rod) Open(ctx context.Context, url string, wait domain.WaitPolicy) (domain.Document, error) {
	r.mu.RLock()
	b := r.browser
	r.mu.RUnlock()
	if b == nil {
		return nil, domain.ErrPortUnavailable
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, &domain.FetchError{Target: url, Err: fmt.Errorf("create page: %w", err)}
	}

	// The timeout covers navigation and every later extraction on this page.
	tctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	p := page.Context(tctx)
	fail := func(err error) (domain.Document, error) {
		cancel()
		_ = page.Close()
		return nil, &domain.FetchError{Target: url, Err: err}
	}

	if r.cfg.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.cfg.UserAgent}); err != nil {
			r.cfg.Logger.Warn("browser: set user agent failed", "error", err)
		}
	}

	var waitIdle func()
	if wait == domain.WaitNetworkIdle {
		waitIdle = p.WaitRequestIdle(r.cfg.IdleTime, nil, nil, nil)
	}
	if err := p.Navigate(url); err != nil {
		return fail(fmt.Errorf("navigate: %w", err))
	}
	if err := p.WaitLoad(); err != nil {
		return fail(fmt.Errorf("wait load: %w", err))
	}
	if waitIdle != nil {
		waitIdle()
		if err := tctx.Err(); err != nil {
			return fail(fmt.Errorf("wait network idle: %w", err))
		}
	}

	info, err := p.Info()
	if err != nil {
		return fail(fmt.Errorf("page info: %w", err))
	}

	return &rodDocument{page: page, p: p, cancel: cancel, title: info.Title}, nil
}

// Close shuts the browser down. The port stays usable for a later Launch.
func (r *Rod) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanupLocked()
}

func (r *Rod) cleanupLocked() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	if err != nil {
		return fmt.Errorf("browser: close: %w", err)
	}
	return nil
}

type rodDocument struct {
	page   *rod.Page
	p      *rod.Page
	cancel context.CancelFunc
	title  string
	once   sync.Once
}

func (d *rodDocument) Title() string { return d.title }

func (d *rodDocument) Texts(_ context.Context, selector string) ([]string, error) {
	els, err := d.p.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			return nil, fmt.Errorf("text of %q: %w", selector, err)
		}
		out = append(out, strings.TrimSpace(text))
	}
	return out, nil
}

func (d *rodDocument) Attrs(_ context.Context, selector, attr string) ([]string, error) {
	els, err := d.p.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		v, err := el.Attribute(attr)
		if err != nil {
			return nil, fmt.Errorf("attribute %s of %q: %w", attr, selector, err)
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (d *rodDocument) Close() error {
	var err error
	d.once.Do(func() {
		d.cancel()
		err = d.page.Close()
	})
	return err
}
