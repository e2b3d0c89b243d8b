package imagegen

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"TrendIllustrator/internal/ports"
)

// FailureKind classifies backend failures for the retry policy.
type FailureKind string

const (
	KindRateLimit FailureKind = "rate_limit"
	KindAuth      FailureKind = "auth"
	KindEmpty     FailureKind = "empty"
	KindHTTP      FailureKind = "http"
	KindNetwork   FailureKind = "network"
)

// BackendError is the typed failure reported by the image backend.
type BackendError struct {
	Kind   FailureKind
	Status int
	Msg    string
}

func (e *BackendError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("image backend %s (HTTP %d): %s", e.Kind, e.Status, e.Msg)
	}
	return fmt.Sprintf("image backend %s: %s", e.Kind, e.Msg)
}

// Retryable reports whether an error is worth another attempt. Credential
// problems never heal by waiting; everything else might.
func Retryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind != KindAuth
	}
	return true
}

// PollinationsBackend generates images via a Pollinations-compatible HTTP
// endpoint: the prompt is path-escaped into the request URL and the response
// body is the image itself.
type PollinationsBackend struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.ImageBackend = (*PollinationsBackend)(nil)

// NewPollinationsBackend wires the endpoint; the HTTP client carries the
// per-call timeout demanded of every network operation.
func NewPollinationsBackend(baseURL, model string, timeout time.Duration, logger *slog.Logger) *PollinationsBackend {
	if baseURL == "" {
		baseURL = "https://image.pollinations.ai"
	}
	if model == "" {
		model = "flux"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PollinationsBackend{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Generate requests one image for the prompt and returns its bytes. The seed
// is derived from the prompt so retries of the same story reproduce the same
// picture.
func (p *PollinationsBackend) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	requestURL := fmt.Sprintf(
		"%s/prompt/%s?width=%d&height=%d&nologo=true&model=%s&seed=%d",
		p.baseURL, url.PathEscape(prompt), width, height, p.model, promptSeed(prompt),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "TrendIllustrator/1.0")

	p.debug("generating image", "prompt_len", len(prompt), "width", width, "height", height)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &BackendError{Kind: KindNetwork, Msg: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &BackendError{Kind: KindRateLimit, Status: resp.StatusCode, Msg: "rate limited"}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &BackendError{Kind: KindAuth, Status: resp.StatusCode, Msg: "rejected credentials"}
	case resp.StatusCode != http.StatusOK:
		return nil, &BackendError{Kind: KindHTTP, Status: resp.StatusCode, Msg: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{Kind: KindNetwork, Msg: fmt.Sprintf("read body: %v", err)}
	}
	if len(data) == 0 {
		return nil, &BackendError{Kind: KindEmpty, Status: resp.StatusCode, Msg: "empty response body"}
	}

	return data, nil
}

func promptSeed(prompt string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	return h.Sum32()
}

func (p *PollinationsBackend) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
