package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ExtractedArticle holds the readable content pulled out of a web page.
type ExtractedArticle struct {
	Title  string
	Domain string
	Text   string
}

// Extractor fetches a page and strips it down to readable article text.
type Extractor struct {
	httpClient *http.Client
}

// NewExtractor creates an Extractor. A nil client gets a sensible default.
func NewExtractor(httpClient *http.Client) *Extractor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{httpClient: httpClient}
}

// Extract fetches the URL and runs readability extraction. It fails when
// the fetch fails or the page yields no usable text; no article should be
// created in that case.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*ExtractedArticle, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid article URL %q: %w", rawURL, err)
	}

	html, err := e.fetchHTML(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	domain := strings.TrimPrefix(pageURL.Hostname(), "www.")
	if domain == "" {
		domain = rawURL
	}

	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract article from %s: %w", rawURL, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, fmt.Errorf("no readable text extracted from %s", rawURL)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = domain
	}

	return &ExtractedArticle{
		Title:  title,
		Domain: domain,
		Text:   text,
	}, nil
}

func (e *Extractor) fetchHTML(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body from %s: %w", rawURL, err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty response body from %s", rawURL)
	}
	return string(body), nil
}
