package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakePage reveals `perScroll` more catalog items on every scroll, up to `total`
type fakePage struct {
	mu        sync.Mutex
	total     int
	perScroll int
	visible   int
	scrolls   int
	reads     int
	closed    int

	waitErr   error
	htmlErr   error
	scrollErr error
}

func newFakePage(total, perScroll int) *fakePage {
	return &fakePage{total: total, perScroll: perScroll, visible: min(total, perScroll)}
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if p.htmlErr != nil {
		return "", p.htmlErr
	}

	items := make([]string, 0, p.visible)
	for i := 0; i < p.visible; i++ {
		items = append(items, catalogItem(fmt.Sprintf("Game %d", i), fmt.Sprintf("%d ₽", 100+i)))
	}
	return catalogPage(items...), nil
}

func (p *fakePage) ScrollToBottom(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scrollErr != nil {
		return p.scrollErr
	}
	p.scrolls++
	p.visible = min(p.total, p.visible+p.perScroll)
	return nil
}

func (p *fakePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return p.waitErr
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

type fakeRenderer struct {
	page      *fakePage
	err       error
	block     bool
	lastURL   string
	renderCnt int
}

func (r *fakeRenderer) Render(ctx context.Context, url string) (Page, error) {
	r.renderCnt++
	r.lastURL = url
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.page, nil
}

var errBoom = errors.New("boom")
