package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxDocumentBytes = 4 << 20

// Source fetches the raw catalog document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, Format, error)
	String() string
}

// NewSource returns an HTTPSource for http(s) locations and a FileSource otherwise.
func NewSource(location string, timeout time.Duration) Source {
	location = strings.TrimSpace(location)
	lower := strings.ToLower(location)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return &HTTPSource{URL: location, Client: &http.Client{Timeout: timeout}}
	}
	return FileSource{Path: location}
}

// FileSource reads the document from the local filesystem.
type FileSource struct {
	Path string
}

// Fetch implements Source.
func (s FileSource) Fetch(ctx context.Context) ([]byte, Format, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	f, err := os.Open(filepath.Clean(s.Path))
	if err != nil {
		return nil, "", fmt.Errorf("catalog: open %s: %w", s.Path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxDocumentBytes))
	if err != nil {
		return nil, "", fmt.Errorf("catalog: read %s: %w", s.Path, err)
	}
	return raw, DetectFormat(s.Path, ""), nil
}

func (s FileSource) String() string { return s.Path }

// HTTPSource downloads the document with a GET request.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, Format, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("catalog: fetch %s: %w", s.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("catalog: fetch %s: unexpected status %d", s.URL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, "", fmt.Errorf("catalog: read %s: %w", s.URL, err)
	}
	return raw, DetectFormat(req.URL.Path, resp.Header.Get("Content-Type")), nil
}

func (s *HTTPSource) String() string { return s.URL }
