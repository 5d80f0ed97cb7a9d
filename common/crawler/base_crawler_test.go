package crawler

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hangingBrowser returns a browser binary that starts but never reports its
// DevTools endpoint, like a first launch stuck on a download.
func hangingBrowser(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	bin := filepath.Join(t.TempDir(), "chromium")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755))
	return bin
}

func TestRenderBoundsBrowserLaunch(t *testing.T) {
	config := DefaultBrowserConfig()
	config.Bin = hangingBrowser(t)
	renderer := NewRodRenderer(config)
	defer func() { _ = renderer.Teardown(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	page, err := renderer.Render(ctx, "https://example.test/games")

	require.Error(t, err)
	assert.Nil(t, page)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestScrapeReportsRenderTimeoutOnStuckLaunch(t *testing.T) {
	config := DefaultBrowserConfig()
	config.Bin = hangingBrowser(t)
	renderer := NewRodRenderer(config)
	defer func() { _ = renderer.Teardown(context.Background()) }()

	scraper := NewScraper(renderer, ScraperConfig{
		Selectors:     DefaultSelectors(),
		RenderTimeout: 200 * time.Millisecond,
	})

	start := time.Now()
	_, err := scraper.Scrape(context.Background(), "https://example.test/games", 10)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScrapeFailed)
	assert.ErrorIs(t, err, ErrRenderTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitForReturnsOnceItemAppears(t *testing.T) {
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no local browser")
	}

	config := DefaultBrowserConfig()
	config.Bin = bin
	renderer := NewRodRenderer(config)
	defer func() { _ = renderer.Teardown(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	page, err := renderer.Render(ctx, "data:text/html,"+url.PathEscape(catalogPage(catalogItem("Widget", "9 ₽"))))
	require.NoError(t, err)
	defer func() { _ = page.Close() }()

	start := time.Now()
	require.NoError(t, page.WaitFor(ctx, DefaultSelectors().Item, time.Hour))
	assert.Less(t, time.Since(start), 10*time.Second)

	html, err := page.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "Widget")
}
