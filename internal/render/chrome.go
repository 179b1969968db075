package render

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/chromedp/chromedp"
)

// Rasterizer converts an HTML page into PNG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, html []byte, width, height int) ([]byte, error)
}

// ChromeConfig configures the headless browser.
type ChromeConfig struct {
	ExecPath string        // empty searches the usual Chrome/Chromium locations
	Timeout  time.Duration // per page
	Settle   time.Duration // wait for echarts to draw before the screenshot
}

// Chrome rasterizes pages with a headless Chrome driven by chromedp.
type Chrome struct {
	cfg ChromeConfig
}

// NewChrome creates a Chrome rasterizer.
func NewChrome(cfg ChromeConfig) *Chrome {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 1500 * time.Millisecond
	}
	return &Chrome{cfg: cfg}
}

// Rasterize loads html as a data URI and captures the full page.
func (c *Chrome) Rasterize(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	allocCtx := ctx
	if c.cfg.ExecPath != "" {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.ExecPath(c.cfg.ExecPath))
		var cancelAlloc context.CancelFunc
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, allocOpts...)
		defer cancelAlloc()
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, c.cfg.Timeout)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.cfg.Settle),
		// quality 100 selects PNG encoding
		chromedp.FullScreenshot(&screenshot, 100),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
