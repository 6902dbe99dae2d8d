package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendBatches(t *testing.T) {
	var mu sync.Mutex
	var sizes []int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/--/api/v2/push/send", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var batch []Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))

		mu.Lock()
		sizes = append(sizes, len(batch))
		mu.Unlock()

		tickets := make([]Ticket, len(batch))
		for i := range batch {
			tickets[i] = Ticket{Status: "ok", ID: fmt.Sprintf("t-%d", i)}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": tickets})
	}))
	defer srv.Close()

	messages := make([]Message, 230)
	for i := range messages {
		messages[i] = Message{To: fmt.Sprintf("ExponentPushToken[%d]", i), Title: "t", Body: "b"}
	}

	result, err := NewClient(srv.URL, "tok").Send(context.Background(), messages)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 100, 30}, sizes)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 230, result.Accepted)
	assert.Zero(t, result.Rejected)
}

func TestClient_SendCountsTicketErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"a"},{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered"}}]}`))
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL, "").Send(context.Background(), []Message{{To: "a"}, {To: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, "DeviceNotRegistered", result.Tickets[1].Details.Error)
}

func TestClient_SendGatewayErrorContinues(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"errors":[{"code":"INTERNAL","message":"upstream down"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"status":"ok"}]}`))
	}))
	defer srv.Close()

	messages := make([]Message, 101)
	result, err := NewClient(srv.URL, "").Send(context.Background(), messages)
	require.Error(t, err)
	assert.ErrorContains(t, err, "upstream down")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 100, result.Rejected)
	assert.Equal(t, 1, result.Accepted)
}

func TestClient_SendNothing(t *testing.T) {
	result, err := NewClient("http://127.0.0.1:1", "").Send(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Batches)
}
