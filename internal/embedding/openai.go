package embedding

import (
	"context"
	"errors"
	"fmt"

	"ecoguard/pkg/types"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI embeds through the OpenAI embeddings endpoint, or any compatible
// server when a base URL is set.
type OpenAI struct {
	client     openai.Client
	model      string
	dimensions int
}

func NewOpenAI(baseURL, apiKey, model string, dimensions int) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" || model == defaultGeminiModel {
		model = openai.EmbeddingModelTextEmbedding3Small
	}

	return &OpenAI{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: dimensions,
	}
}

func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &types.RemoteError{Service: "embedding", Message: "empty embedding response"}
	}
	return vectors[0], nil
}

func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: o.model,
	}
	if o.dimensions > 0 {
		params.Dimensions = openai.Int(int64(o.dimensions))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &types.RemoteError{
				Service:    "embedding",
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Message,
				Retryable:  apiErr.StatusCode == 429 || apiErr.StatusCode >= 500,
				Err:        err,
			}
		}
		return nil, &types.RemoteError{Service: "embedding", Retryable: true, Err: fmt.Errorf("failed to create embeddings: %w", err)}
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			continue
		}
		vector := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vector[i] = float32(v)
		}
		out[d.Index] = vector
	}
	return out, nil
}
