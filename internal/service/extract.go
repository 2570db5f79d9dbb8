package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	extractMaxBytes       = 10 << 20
	defaultExtractTimeout = 30 * time.Second
)

// HTTPTextExtractor fetches plain-text renditions of papers over HTTP.
// Archives commonly expose a text mirror next to the PDF; binary content
// types are rejected rather than mis-ingested.
type HTTPTextExtractor struct {
	client *http.Client
}

func NewHTTPTextExtractor(timeout time.Duration) *HTTPTextExtractor {
	if timeout <= 0 {
		timeout = defaultExtractTimeout
	}
	return &HTTPTextExtractor{
		client: &http.Client{Timeout: timeout},
	}
}

// Extract downloads the document at url and returns its text content.
func (e *HTTPTextExtractor) Extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isTextContentType(contentType) {
		return "", fmt.Errorf("fetch %s: unsupported content type %q", url, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, extractMaxBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", fmt.Errorf("fetch %s: empty document", url)
	}
	return text, nil
}

func isTextContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "text/"):
		return true
	case strings.Contains(ct, "json"):
		return true
	case ct == "":
		return true
	}
	return false
}
