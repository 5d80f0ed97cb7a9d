package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// BrowserConfig represents the configuration of the headless browser
type BrowserConfig struct {
	Headless     bool
	Bin          string
	BrowserFlags []string
	UserAgent    string
}

// DefaultBrowserConfig returns the default configuration for the browser
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:     true,
		BrowserFlags: []string{"--no-sandbox", "--disable-setuid-sandbox", "--disable-gpu"},
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}
}

// RodRenderer renders pages in a shared Chromium instance driven by rod
type RodRenderer struct {
	Config BrowserConfig

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	// stop ends the browser process and any download still in flight
	stop context.CancelFunc
}

func NewRodRenderer(config BrowserConfig) *RodRenderer {
	return &RodRenderer{Config: config}
}

// Setup launches the browser. Render calls it lazily when needed.
// ctx bounds the launch only; the browser outlives it.
func (r *RodRenderer) Setup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setup(ctx)
}

type launched struct {
	browser *rod.Browser
	err     error
}

func (r *RodRenderer) setup(ctx context.Context) error {
	if r.browser != nil {
		return nil
	}
	log.Info().Bool("headless", r.Config.Headless).Msg("Setting up browser")

	lifetime, stop := context.WithCancel(context.Background())
	l := launcher.New().Context(lifetime).Headless(r.Config.Headless)
	if r.Config.Bin != "" {
		l = l.Bin(r.Config.Bin)
	}
	for _, f := range r.Config.BrowserFlags {
		name, value, _ := strings.Cut(strings.TrimLeft(f, "-"), "=")
		if value == "" {
			l = l.Set(flags.Flag(name))
			continue
		}
		l = l.Set(flags.Flag(name), value)
	}

	// a first launch may download a browser, so it runs apart from ctx
	done := make(chan launched, 1)
	go func() {
		controlURL, err := l.Launch()
		if err != nil {
			done <- launched{err: fmt.Errorf("launching browser: %w", err)}
			return
		}
		browser := rod.New().Context(lifetime).ControlURL(controlURL)
		if err := browser.Connect(); err != nil {
			done <- launched{err: fmt.Errorf("connecting to browser: %w", err)}
			return
		}
		done <- launched{browser: browser}
	}()

	select {
	case <-ctx.Done():
		stop()
		l.Kill()
		go func() {
			if res := <-done; res.err == nil {
				_ = res.browser.Close()
			}
			l.Cleanup()
		}()
		return fmt.Errorf("launching browser: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			stop()
			l.Kill()
			return res.err
		}
		r.browser = res.browser
		r.launcher = l
		r.stop = stop
	}

	log.Info().Msg("Browser setup complete")
	return nil
}

// Teardown closes the browser
func (r *RodRenderer) Teardown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	log.Info().Msg("Tearing down browser")

	err := r.browser.Close()
	r.stop()
	r.launcher.Cleanup()
	r.browser = nil
	r.launcher = nil
	r.stop = nil
	return err
}

// Render opens url in a new tab and waits for the load event. ctx bounds the
// whole acquisition, including the first browser launch.
func (r *RodRenderer) Render(ctx context.Context, url string) (Page, error) {
	r.mu.Lock()
	if err := r.setup(ctx); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	browser := r.browser
	r.mu.Unlock()

	tab, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	// the returned page must stay usable, and closable, after ctx ends
	page := tab.Context(context.WithoutCancel(ctx))

	if r.Config.UserAgent != "" {
		if err := tab.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.Config.UserAgent}); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("setting user agent: %w", err)
		}
	}

	if err := tab.Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}
	if err := tab.WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("waiting for load of %s: %w", url, err)
	}

	return &rodPage{page: page}, nil
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) ScrollToBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (p *rodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	bound := p.page.Context(ctx).Timeout(timeout)
	defer bound.CancelTimeout()

	_, err := bound.Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: waiting for %q: %v", ErrRenderTimeout, selector, err)
		}
		return err
	}
	return nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
