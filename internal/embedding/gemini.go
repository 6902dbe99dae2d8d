package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ecoguard/pkg/types"

	"github.com/go-resty/resty/v2"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "text-embedding-004"
)

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedRequest struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiEmbedding struct {
	Values []float32 `json:"values"`
}

type geminiEmbedResponse struct {
	Embedding geminiEmbedding `json:"embedding"`
}

type geminiBatchResponse struct {
	Embeddings []geminiEmbedding `json:"embeddings"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Gemini calls the Generative Language embedContent endpoints.
type Gemini struct {
	client     *resty.Client
	model      string
	dimensions int
}

func NewGemini(baseURL, apiKey, model string, dimensions int) *Gemini {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if model == "" {
		model = defaultGeminiModel
	}
	model = strings.TrimPrefix(model, "models/")

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetQueryParam("key", apiKey)

	return &Gemini{client: client, model: model, dimensions: dimensions}
}

func (g *Gemini) Model() string {
	return g.model
}

func (g *Gemini) request(text string) geminiEmbedRequest {
	return geminiEmbedRequest{
		Model:                "models/" + g.model,
		Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
		OutputDimensionality: g.dimensions,
	}
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	var result geminiEmbedResponse
	var apiErr geminiError

	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("model", g.model).
		SetBody(g.request(text)).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1beta/models/{model}:embedContent")
	if err != nil {
		return nil, &types.RemoteError{Service: "embedding", Retryable: true, Err: fmt.Errorf("failed to call embedContent: %w", err)}
	}
	if resp.IsError() {
		return nil, geminiRemoteError(resp, apiErr)
	}

	return result.Embedding.Values, nil
}

func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body := geminiBatchRequest{Requests: make([]geminiEmbedRequest, 0, len(texts))}
	for _, text := range texts {
		body.Requests = append(body.Requests, g.request(text))
	}

	var result geminiBatchResponse
	var apiErr geminiError

	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("model", g.model).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1beta/models/{model}:batchEmbedContents")
	if err != nil {
		return nil, &types.RemoteError{Service: "embedding", Retryable: true, Err: fmt.Errorf("failed to call batchEmbedContents: %w", err)}
	}
	if resp.IsError() {
		return nil, geminiRemoteError(resp, apiErr)
	}

	out := make([][]float32, 0, len(result.Embeddings))
	for _, e := range result.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

func geminiRemoteError(resp *resty.Response, apiErr geminiError) error {
	msg := apiErr.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	return &types.RemoteError{
		Service:    "embedding",
		StatusCode: resp.StatusCode(),
		Message:    msg,
		Retryable:  resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError,
	}
}
