// Package push delivers device notifications through the Expo push service.
package push

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

const (
	DefaultBaseURL = "https://exp.host"
	sendPath       = "/--/api/v2/push/send"

	// MaxBatchSize is the most messages Expo accepts in one request.
	MaxBatchSize = 100
)

type Message struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Sound string         `json:"sound,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

type Ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

type sendResponse struct {
	Data   []Ticket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Result summarises a Send call across all batches.
type Result struct {
	Batches  int
	Accepted int
	Rejected int
	Tickets  []Ticket
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if accessToken != "" {
		client.SetAuthToken(accessToken)
	}

	return &Client{http: client}
}

// Send posts messages in batches of MaxBatchSize. A failing batch does not
// stop the remaining ones; their errors are joined in the returned error.
func (c *Client) Send(ctx context.Context, messages []Message) (*Result, error) {
	result := &Result{}
	var errs []error

	for start := 0; start < len(messages); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(messages))
		batch := messages[start:end]
		result.Batches++

		tickets, err := c.sendBatch(ctx, batch)
		if err != nil {
			result.Rejected += len(batch)
			errs = append(errs, err)
			continue
		}

		for _, ticket := range tickets {
			if ticket.Status == "ok" {
				result.Accepted++
			} else {
				result.Rejected++
			}
		}
		result.Tickets = append(result.Tickets, tickets...)
	}

	return result, errors.Join(errs...)
}

func (c *Client) sendBatch(ctx context.Context, batch []Message) ([]Ticket, error) {
	var out sendResponse
	var apiErr sendResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(batch).
		SetResult(&out).
		SetError(&apiErr).
		Post(sendPath)
	if err != nil {
		return nil, &types.RemoteError{Service: "push", Err: fmt.Errorf("failed to call expo push: %w", err)}
	}
	if resp.IsError() {
		msg := strings.TrimSpace(resp.String())
		if len(apiErr.Errors) > 0 {
			msg = apiErr.Errors[0].Message
		}
		return nil, &types.RemoteError{
			Service:    "push",
			StatusCode: resp.StatusCode(),
			Message:    msg,
			Retryable:  resp.StatusCode() >= http.StatusInternalServerError,
		}
	}

	return out.Data, nil
}
