package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// ErrDimensionChanged reports a remote model that returned vectors of a
// different length than before. Distances across dimensions are meaningless.
var ErrDimensionChanged = errors.New("embedding: remote vector dimension changed")

// HTTP delegates embedding to a model server. The image is POSTed as PNG and
// the server answers {"embedding": [...]}.
type HTTP struct {
	url        string
	httpClient *http.Client

	mu  sync.Mutex
	dim int
}

// HTTPOption customizes the remote embedder.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		if client != nil {
			h.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(h *HTTP) {
		if timeout > 0 {
			h.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewHTTP constructs a remote embedder for url.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("embedding request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Embed implements Embedder.
func (h *HTTP) Embed(ctx context.Context, img image.Image) (Vector, error) {
	if !validImage(img) {
		return nil, ErrInvalidImage
	}
	if h.url == "" {
		return nil, errors.New("embedding request: url required")
	}

	var body bytes.Buffer
	if err := png.Encode(&body, img); err != nil {
		return nil, fmt.Errorf("embedding request: encode image: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, &body)
	if err != nil {
		return nil, fmt.Errorf("embedding request: build: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(excerpt)}
	}

	var parsed embedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embedding request: decode response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, errors.New("embedding request: empty embedding in response")
	}
	if err := h.checkDimension(len(parsed.Embedding)); err != nil {
		return nil, err
	}
	return Vector(parsed.Embedding), nil
}

func (h *HTTP) checkDimension(n int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dim == 0 {
		h.dim = n
		return nil
	}
	if h.dim != n {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionChanged, n, h.dim)
	}
	return nil
}
