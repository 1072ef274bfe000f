package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaOptions contains configuration options for the Ollama encoder.
type OllamaOptions struct {
	// BaseURL is the Ollama server address.
	BaseURL string

	// Model is the embedding model name.
	Model string

	// Dimension is the output dimensionality of the configured model.
	Dimension int

	// HTTPClient is the client used for API calls.
	HTTPClient *http.Client
}

// DefaultOllamaOptions contains the default configuration options for the
// Ollama encoder.
var DefaultOllamaOptions = OllamaOptions{
	BaseURL:   "http://localhost:11434",
	Model:     "nomic-embed-text",
	Dimension: 768,
}

// Ollama is an Encoder backed by the Ollama embeddings API.
type Ollama struct {
	opts OllamaOptions
}

var _ Encoder = (*Ollama)(nil)

// NewOllama creates a new Ollama encoder.
func NewOllama(optFns ...func(o *OllamaOptions)) (*Ollama, error) {
	opts := DefaultOllamaOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("encoder: dimension must be positive, got %d", opts.Dimension)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Ollama{opts: opts}, nil
}

// Encode generates an embedding for a single text.
func (o *Ollama) Encode(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(map[string]any{
		"model":  o.opts.Model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("encoder: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.opts.BaseURL+"/api/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encoder: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encoder: ollama returned status %d", resp.StatusCode)
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("encoder: failed to decode response: %w", err)
	}

	if len(result.Embedding) != o.opts.Dimension {
		return nil, fmt.Errorf("encoder: model returned %d dimensions, expected %d",
			len(result.Embedding), o.opts.Dimension)
	}

	return result.Embedding, nil
}

// Dimension returns the configured output dimensionality.
func (o *Ollama) Dimension() int { return o.opts.Dimension }
