package crawler

import (
	"context"
	"time"
)

// Renderer opens pages whose dynamic content is executed
type Renderer interface {
	// Render opens url and returns a handle on the rendered page
	Render(ctx context.Context, url string) (Page, error)
}

// Page is one rendered browser tab
type Page interface {
	// HTML returns the current rendered document
	HTML(ctx context.Context) (string, error)

	// ScrollToBottom triggers the page's load-more behaviour
	ScrollToBottom(ctx context.Context) error

	// WaitFor blocks until selector matches or timeout elapses.
	// A timeout is reported as ErrRenderTimeout.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// Close releases the tab
	Close() error
}
