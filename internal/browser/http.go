package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"autopilot/internal/domain"
)

// maxBodySize caps how much HTML a single fetch reads.
const maxBodySize = 8 << 20

// HTTP is a browserless port: it fetches static HTML and queries it with
// CSS selectors. Scripts never run, so it sees only server-rendered content.
type HTTP struct {
	client    *http.Client
	userAgent string
}

func NewHTTP(timeout time.Duration, userAgent string) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (h *HTTP) Available() bool { return true }

// Open ignores wait: there is no network activity to settle after the body
// has been read.
func (h *HTTP) Open(ctx context.Context, url string, _ domain.WaitPolicy) (domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.FetchError{Target: url, Err: err}
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Target: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.FetchError{Target: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &domain.FetchError{Target: url, Err: fmt.Errorf("parse html: %w", err)}
	}
	return &htmlDocument{doc: doc}, nil
}

func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

type htmlDocument struct {
	doc *goquery.Document
}

func (d *htmlDocument) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

func (d *htmlDocument) Texts(_ context.Context, selector string) ([]string, error) {
	var out []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out, nil
}

func (d *htmlDocument) Attrs(_ context.Context, selector, attr string) ([]string, error) {
	var out []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok {
			out = append(out, v)
		}
	})
	return out, nil
}

func (d *htmlDocument) Close() error { return nil }
