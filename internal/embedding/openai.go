package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/notemap/internal/config"
)

const (
	// OpenAIDefaultBaseURL is the default API endpoint; any
	// OpenAI-compatible proxy works as well.
	OpenAIDefaultBaseURL = "https://api.openai.com/v1"

	openAIHTTPTimeout = 30 * time.Second
	openAIBatchSize   = 64
)

// OpenAIProvider talks to an OpenAI-compatible embeddings endpoint.
type OpenAIProvider struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	modelName  string
	dimensions int
}

type openAIEmbedRequest struct {
	Input          interface{} `json:"input"`
	Model          string      `json:"model"`
	EncodingFormat string      `json:"encoding_format"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// NewOpenAIProvider builds a provider from configuration. The API key is
// required; base URL, model, and dimensions fall back to defaults.
func NewOpenAIProvider(cfg *config.Config) (*OpenAIProvider, error) {
	apiKey := config.GetEmbeddingAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("NOTEMAP_EMBEDDING_API_KEY is required for the openai provider")
	}

	baseURL := config.GetEmbeddingBaseURL()
	if baseURL == "" {
		baseURL = OpenAIDefaultBaseURL
	}
	modelName := cfg.EmbeddingModel
	if modelName == "" {
		modelName = config.DefaultEmbeddingModel
	}
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = config.DefaultEmbeddingDimensions
	}

	return &OpenAIProvider{
		client:     &http.Client{Timeout: openAIHTTPTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		modelName:  modelName,
		dimensions: dimensions,
	}, nil
}

// Name returns the configured model name.
func (p *OpenAIProvider) Name() string { return p.modelName }

// Dimensions returns the embedding vector size.
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// Embed returns the embedding for a single text. Empty text yields a zero
// vector without an API call.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return make([]float64, p.dimensions), nil
	}
	results, err := p.embedRequest(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("embedding API returned no results for model %s", p.modelName)
	}
	return results[0], nil
}

// EmbedBatch embeds texts in order, chunking requests to the API batch
// limit.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += openAIBatchSize {
		end := start + openAIBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		results, err := p.embedRequest(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(results) != end-start {
			return nil, fmt.Errorf("embedding API returned %d results for %d inputs", len(results), end-start)
		}
		out = append(out, results...)
	}
	return out, nil
}

// embedRequest performs one API call and returns embeddings in input order.
func (p *OpenAIProvider) embedRequest(ctx context.Context, inputs []string) ([][]float64, error) {
	body, err := json.Marshal(openAIEmbedRequest{
		Input:          inputs,
		Model:          p.modelName,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding API status %d: %s", resp.StatusCode, string(payload))
	}

	var parsed openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	// The API may return results out of order; restore input order.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	out := make([][]float64, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
