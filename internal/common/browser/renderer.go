// Package browser loads channel pages in headless Chrome for the cases where
// the player only reveals its manifest after scripts run.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rizkirmdhn/catcast/internal/common/httpclient"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultSettle is how long a page may keep loading after navigation
	DefaultSettle = 3 * time.Second
)

var blockedURLs = []string{"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.woff", "*.woff2"}

// Renderer implements httpclient.Getter with a shared Chrome instance.
// Every Get opens its own tab, so concurrent calls are allowed.
type Renderer struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	identity httpclient.Identity
	timeout  time.Duration
	settle   time.Duration
	log      logrus.FieldLogger
}

// NewRenderer starts an allocator bound to ctx. Chrome itself is launched
// lazily by the first Get. Call Close when done.
func NewRenderer(ctx context.Context, identity httpclient.Identity, timeout time.Duration, log logrus.FieldLogger) *Renderer {
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocatorOptions(identity)...)
	return &Renderer{
		allocCtx: allocCtx,
		cancel:   cancel,
		identity: identity,
		timeout:  timeout,
		settle:   DefaultSettle,
		log:      log,
	}
}

func allocatorOptions(identity httpclient.Identity) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if identity.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(identity.UserAgent))
	}
	return append(opts, chromedp.Flag("mute-audio", true))
}

// Close shuts the browser down
func (r *Renderer) Close() {
	r.cancel()
}

// Get navigates to url and returns the rendered document. Manifest URLs the
// page requested while loading are appended to the body as quoted strings,
// so extraction works the same on rendered and plain pages.
func (r *Renderer) Get(ctx context.Context, url string, headers map[string]string) (*httpclient.Response, error) {
	tabCtx, cancelTab := chromedp.NewContext(r.allocCtx, chromedp.WithLogf(r.log.Debugf))
	defer cancelTab()

	// the tab must also stop when the caller gives up
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	seen := newCapture()
	chromedp.ListenTarget(tabCtx, seen.listen)

	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetBlockedURLs(blockedURLs),
		network.SetExtraHTTPHeaders(extraHeaders(r.identity, headers)),
		chromedp.Navigate(url),
		chromedp.Sleep(r.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &httpclient.TransportError{URL: url, Err: fmt.Errorf("render: %w", err)}
	}

	return &httpclient.Response{
		Status: seen.documentStatus(),
		Body:   []byte(seen.annotate(html)),
	}, nil
}

// extraHeaders builds the per-tab headers. The user agent is set on the
// allocator and is left out here.
func extraHeaders(identity httpclient.Identity, headers map[string]string) network.Headers {
	merged := httpclient.MergeHeaders(map[string]string{
		"Referer": identity.Referer,
		"Origin":  identity.Origin,
	}, headers)

	out := make(network.Headers, len(merged))
	for k, v := range merged {
		if v == "" || k == "User-Agent" {
			continue
		}
		out[k] = v
	}
	return out
}

// capture records what a tab did while loading
type capture struct {
	mu        sync.Mutex
	status    int
	manifests []string
	seen      map[string]struct{}
}

func newCapture() *capture {
	return &capture{seen: make(map[string]struct{})}
}

func (c *capture) listen(ev interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Request == nil || !strings.Contains(e.Request.URL, ".m3u8") {
			return
		}
		if _, ok := c.seen[e.Request.URL]; ok {
			return
		}
		c.seen[e.Request.URL] = struct{}{}
		c.manifests = append(c.manifests, e.Request.URL)
	case *network.EventResponseReceived:
		// first document response is the page itself
		if c.status == 0 && e.Type == network.ResourceTypeDocument && e.Response != nil {
			c.status = int(e.Response.Status)
		}
	}
}

// documentStatus is the status of the page, 200 when none was observed
func (c *capture) documentStatus() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *capture) annotate(html string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.manifests) == 0 {
		return html
	}

	var b strings.Builder
	b.WriteString(html)
	b.WriteString("\n<!-- captured -->\n")
	for _, u := range c.manifests {
		b.WriteString(`"` + u + `"` + "\n")
	}
	return b.String()
}
