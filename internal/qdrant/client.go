// Package qdrant is a small client for the Qdrant REST API covering the
// calls the router needs.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ecoguard/pkg/types"

	"github.com/go-resty/resty/v2"
)

const DistanceCosine = "Cosine"

var ErrCollectionNotFound = errors.New("collection not found")

type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type ScoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// PayloadString returns the payload value under key when it is a string.
func (p ScoredPoint) PayloadString(key string) string {
	if p.Payload == nil {
		return ""
	}
	s, _ := p.Payload[key].(string)
	return s
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type upsertRequest struct {
	Points []Point `json:"points"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []ScoredPoint `json:"result"`
}

type matchValue struct {
	Value string `json:"value"`
}

type fieldCondition struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type deleteRequest struct {
	Filter struct {
		Must []fieldCondition `json:"must"`
	} `json:"filter"`
}

type errorResponse struct {
	Status struct {
		Error string `json:"error"`
	} `json:"status"`
}

type Client struct {
	http       *resty.Client
	dimensions int
}

func New(baseURL, apiKey string, dimensions int) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("api-key", apiKey)
	}

	return &Client{http: client, dimensions: dimensions}
}

func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("collection", name).
		Get("/collections/{collection}")
	if err != nil {
		return false, remoteErr(fmt.Errorf("failed to check collection %s: %w", name, err))
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return false, nil
	case resp.IsError():
		return false, statusErr(resp, nil)
	}
	return true, nil
}

func (c *Client) CreateCollection(ctx context.Context, name string) error {
	var apiErr errorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("collection", name).
		SetBody(createCollectionRequest{Vectors: vectorParams{Size: c.dimensions, Distance: DistanceCosine}}).
		SetError(&apiErr).
		Put("/collections/{collection}")
	if err != nil {
		return remoteErr(fmt.Errorf("failed to create collection %s: %w", name, err))
	}
	if resp.IsError() {
		return statusErr(resp, &apiErr)
	}
	return nil
}

// EnsureCollection creates the collection when it does not exist yet.
func (c *Client) EnsureCollection(ctx context.Context, name string) error {
	exists, err := c.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return c.CreateCollection(ctx, name)
}

func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	var apiErr errorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("collection", collection).
		SetQueryParam("wait", "true").
		SetBody(upsertRequest{Points: points}).
		SetError(&apiErr).
		Put("/collections/{collection}/points")
	if err != nil {
		return remoteErr(fmt.Errorf("failed to upsert points into %s: %w", collection, err))
	}
	if resp.IsError() {
		return statusErr(resp, &apiErr)
	}
	return nil
}

// Search returns the nearest points with payloads. A missing collection is
// reported as ErrCollectionNotFound.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	var result searchResponse
	var apiErr errorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("collection", collection).
		SetBody(searchRequest{Vector: vector, Limit: limit, WithPayload: true}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/collections/{collection}/points/search")
	if err != nil {
		return nil, remoteErr(fmt.Errorf("failed to search %s: %w", collection, err))
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if resp.IsError() {
		return nil, statusErr(resp, &apiErr)
	}

	if result.Result == nil {
		return []ScoredPoint{}, nil
	}
	return result.Result, nil
}

// DeleteByPayload removes every point whose payload key equals value.
func (c *Client) DeleteByPayload(ctx context.Context, collection, key, value string) error {
	var body deleteRequest
	body.Filter.Must = []fieldCondition{{Key: key, Match: matchValue{Value: value}}}

	var apiErr errorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("collection", collection).
		SetQueryParam("wait", "true").
		SetBody(body).
		SetError(&apiErr).
		Post("/collections/{collection}/points/delete")
	if err != nil {
		return remoteErr(fmt.Errorf("failed to delete points from %s: %w", collection, err))
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	if resp.IsError() {
		return statusErr(resp, &apiErr)
	}
	return nil
}

func remoteErr(err error) error {
	return &types.RemoteError{Service: "qdrant", Retryable: true, Err: err}
}

func statusErr(resp *resty.Response, apiErr *errorResponse) error {
	msg := ""
	if apiErr != nil {
		msg = apiErr.Status.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	if msg == "" {
		msg = resp.Status()
	}
	return &types.RemoteError{
		Service:    "qdrant",
		StatusCode: resp.StatusCode(),
		Message:    msg,
		Retryable:  resp.StatusCode() >= http.StatusInternalServerError,
	}
}
