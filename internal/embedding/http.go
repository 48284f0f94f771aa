package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// GPU embedder model-size dimensions, matching the sentence-transformer
// checkpoints the retrieval layer expects per spec §4.3.
const (
	SmallModelDimensions  = 384
	MediumModelDimensions = 768
	LargeModelDimensions  = 1024
)

const (
	DefaultGPUEndpoint   = "http://localhost:9659"
	DefaultGPUModel      = "small"
	DefaultGPUMaxRetries = 2
	DefaultGPUBatchSize  = 32
)

// HTTPConfig configures the GPU embedder's remote server.
type HTTPConfig struct {
	Endpoint        string
	Model           string
	SkipHealthCheck bool
}

func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{Endpoint: DefaultGPUEndpoint, Model: DefaultGPUModel}
}

// HTTPEmbedder calls a local GPU inference server over HTTP. Request
// timeouts are set per-call via context.WithTimeout rather than on the
// *http.Client, so timeout scaling can track batch progress and
// thermal throttling on sustained indexing runs.
type HTTPEmbedder struct {
	client       *http.Client
	config       HTTPConfig
	dims         int
	model        string
	mu           sync.RWMutex
	closed       bool
	batchIndex   int
	isFinalBatch bool
}

var _ Embedder = (*HTTPEmbedder)(nil)

func NewHTTPEmbedder(ctx context.Context, cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGPUEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGPUModel
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	e := &HTTPEmbedder{client: client, config: cfg, model: cfg.Model}

	switch cfg.Model {
	case "small":
		e.dims = SmallModelDimensions
	case "medium":
		e.dims = MediumModelDimensions
	case "large":
		e.dims = LargeModelDimensions
	default:
		e.dims = MediumModelDimensions
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := e.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("GPU embedder health check failed: %w", err)
		}
		if dims, err := e.getDimensionsFromServer(checkCtx); err == nil {
			e.dims = dims
		}
	}

	slog.Debug("gpu_embedder_created",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("model", cfg.Model),
		slog.Int("dimensions", e.dims))

	return e, nil
}

func (e *HTTPEmbedder) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to GPU embedder server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GPU embedder server unhealthy (status %d): %s", resp.StatusCode, string(body))
	}

	var health httpHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("GPU embedder server status: %s", health.Status)
	}
	return nil
}

func (e *HTTPEmbedder) getDimensionsFromServer(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+"/models", nil)
	if err != nil {
		return 0, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to get models: status %d", resp.StatusCode)
	}

	var result httpModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	if m, ok := result.Models[e.config.Model]; ok {
		return m.Dimensions, nil
	}
	return 0, fmt.Errorf("model %s not found", e.config.Model)
}

// Embed generates an embedding for a single text. Query-mode callers
// (retrieval, not indexing) should prepend QueryTaskPrefix to text
// before calling this.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	reqBody := httpEmbedRequest{Text: text, Model: e.config.Model}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint+"/embed", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result httpEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	vec := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		vec[i] = float32(v)
	}
	return appendSentimentComponent(normalizeVector(vec)), nil
}

// EmbedBatch generates embeddings for multiple texts with retry and
// progressive timeout scaling for thermal throttling on the server.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	var lastErr error
	for attempt := 0; attempt < DefaultGPUMaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if attempt > 0 {
			backoff := time.Duration(500<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		timeout := e.getProgressiveTimeout()
		timeoutCtx, cancel := context.WithTimeout(ctx, timeout)

		slog.Debug("gpu_embedding_attempt",
			slog.Int("attempt", attempt+1),
			slog.Int("batch_index", e.batchIndex),
			slog.Duration("timeout", timeout),
			slog.Bool("final_batch", e.isFinalBatch),
			slog.Int("texts_count", len(texts)))

		embeddings, err := e.doEmbedBatch(timeoutCtx, texts)
		cancel()
		if err == nil {
			return embeddings, nil
		}
		lastErr = err

		slog.Debug("gpu_embedding_attempt_failed",
			slog.Int("attempt", attempt+1),
			slog.Duration("timeout_used", timeout),
			slog.String("error", err.Error()))
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", DefaultGPUMaxRetries, lastErr)
}

func (e *HTTPEmbedder) doEmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := httpEmbedBatchRequest{Texts: texts, Model: e.config.Model}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint+"/embed_batch", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch embeddings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("batch embedding failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result httpEmbedBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		embeddings[i] = appendSentimentComponent(normalizeVector(vec))
	}
	return embeddings, nil
}

func (e *HTTPEmbedder) Dimensions() int { return e.dims }

func (e *HTTPEmbedder) ModelName() string {
	return fmt.Sprintf("gpu-%s", e.model)
}

func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return e.healthCheck(checkCtx) == nil
}

func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if transport, ok := e.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

func (e *HTTPEmbedder) SetBatchIndex(idx int) {
	e.mu.Lock()
	e.batchIndex = idx
	e.mu.Unlock()
}

func (e *HTTPEmbedder) SetFinalBatch(isFinal bool) {
	e.mu.Lock()
	e.isFinalBatch = isFinal
	e.mu.Unlock()
}

// getProgressiveTimeout scales the per-request timeout with batch
// progress: later batches in a long indexing run take longer as the
// server warms past its idle state, and the final batch gets an extra
// boost for the same reason.
func (e *HTTPEmbedder) getProgressiveTimeout() time.Duration {
	baseTimeout := DefaultWarmTimeout

	e.mu.RLock()
	batchIdx := e.batchIndex
	isFinal := e.isFinalBatch
	e.mu.RUnlock()

	progression := 1.0 + float64(batchIdx*DefaultGPUBatchSize)/2000.0
	if progression > MaxTimeoutProgression {
		progression = MaxTimeoutProgression
	}

	finalBoost := 1.0
	if isFinal {
		finalBoost = DefaultTimeoutProgression
	}

	return time.Duration(float64(baseTimeout) * progression * finalBoost)
}

// TokenCount asks the server for nothing; it approximates using the
// same whitespace heuristic the parser falls back to, since sentence-
// transformer subword counts are close enough for window sizing and a
// round-trip per chunk would be prohibitively slow during indexing.
func (e *HTTPEmbedder) TokenCount(text string) int {
	return len(bytes.Fields([]byte(text)))
}

type httpHealthResponse struct {
	Status      string `json:"status"`
	ModelStatus string `json:"model_status"`
	LoadedModel string `json:"loaded_model"`
}

type httpModelsResponse struct {
	Models map[string]httpModelInfo `json:"models"`
}

type httpModelInfo struct {
	Dimensions int `json:"dimensions"`
}

type httpEmbedRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type httpEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type httpEmbedBatchRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type httpEmbedBatchResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}
