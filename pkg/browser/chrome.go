package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"price-resolution-api/internal/models"
)

type Config struct {
	// Empty uses the Chrome found on PATH.
	ExecPath  string
	UserAgent string
	Timeout   time.Duration
	// Time to let client-side scripts inject markup after the body is ready.
	Settle time.Duration
}

// PageRenderer loads pages in headless Chrome and returns the rendered DOM. It is
// the fallback for review pages that only emit structured data from JavaScript.
type PageRenderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	cfg         Config
	logger      zerolog.Logger
}

func NewPageRenderer(cfg Config, logger zerolog.Logger) *PageRenderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &PageRenderer{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		cfg:         cfg,
		logger:      logger.With().Str("component", "chrome").Logger(),
	}
}

// FetchPage renders pageURL and returns the document's outer HTML.
func (p *PageRenderer) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: chrome renderer not available", models.ErrUnavailable)
	}

	tabCtx, cancel := chromedp.NewContext(p.allocCtx)
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, p.cfg.Timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(p.cfg.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: render %s: %v", models.ErrUnavailable, pageURL, err)
	}

	p.logger.Debug().Str("url", pageURL).Dur("took", time.Since(start)).Int("bytes", len(html)).Msg("rendered page")
	return []byte(html), nil
}

func (p *PageRenderer) Name() string { return "chrome" }

func (p *PageRenderer) Close() {
	if p == nil {
		return
	}
	p.allocCancel()
}
