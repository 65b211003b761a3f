// Package fetch loads source documents from the web and the local disk.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
	"ragpipe/internal/domain"
	"ragpipe/internal/port"
)

var _ port.DocumentLoader = (*WebLoader)(nil)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultMinLineLength = 3
	maxBodyBytes         = 32 << 20
)

// WebOptions configures a WebLoader. Zero values fall back to defaults.
type WebOptions struct {
	Timeout       time.Duration
	Delay         time.Duration
	UserAgent     string
	MinLineLength int
	StripTags     []string
}

// WebLoader downloads HTML pages and reduces them to readable text.
type WebLoader struct {
	client        *http.Client
	limiter       *rate.Limiter
	userAgent     string
	minLineLength int
	stripTags     map[string]bool
}

func NewWebLoader(opts WebOptions) *WebLoader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinLineLength <= 0 {
		opts.MinLineLength = DefaultMinLineLength
	}
	if opts.StripTags == nil {
		opts.StripTags = []string{"script", "style", "nav", "header", "footer"}
	}

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	strip := make(map[string]bool, len(opts.StripTags))
	for _, tag := range opts.StripTags {
		strip[strings.ToLower(tag)] = true
	}

	return &WebLoader{
		client:        &http.Client{Timeout: opts.Timeout},
		limiter:       rate.NewLimiter(limit, 1),
		userAgent:     opts.UserAgent,
		minLineLength: opts.MinLineLength,
		stripTags:     strip,
	}
}

// Load fetches url and returns its cleaned text. Requests share one limiter,
// so concurrent callers are still paced.
func (l *WebLoader) Load(ctx context.Context, url string) (domain.Document, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return domain.Document{}, fmt.Errorf("%w: %s: %w", domain.ErrFetchFailed, url, err)
	}

	body, contentType, err := l.get(ctx, url)
	if err != nil {
		return domain.Document{}, err
	}

	text, err := l.extract(body, contentType)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, url, err)
	}

	return domain.Document{ID: url, Text: text, Kind: domain.KindWeb}, nil
}

func (l *WebLoader) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", domain.ErrFetchFailed, url, err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", domain.ErrFetchFailed, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: %s: status %d", domain.ErrFetchFailed, url, resp.StatusCode)
	}

	// the client timeout also covers reading the body
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: read body: %w", domain.ErrFetchFailed, url, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (l *WebLoader) extract(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}

	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	l.collectText(doc, &sb)
	return CleanLines(sb.String(), l.minLineLength), nil
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true, "tr": true,
	"td": true, "th": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "section": true, "article": true, "blockquote": true,
	"pre": true, "table": true, "ul": true, "ol": true, "dd": true, "dt": true,
}

func (l *WebLoader) collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if l.stripTags[n.Data] || n.Data == "noscript" || n.Data == "template" {
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		l.collectText(c, sb)
	}

	if n.Type == html.ElementNode && blockTags[n.Data] {
		sb.WriteByte('\n')
	}
}

// CleanLines trims every line, collapses inner whitespace, drops lines
// shorter than minLen characters and joins the rest with single spaces.
func CleanLines(text string, minLen int) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || utf8.RuneCountInString(line) < minLen {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, " ")
}
