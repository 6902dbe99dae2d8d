package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	hub := NewHub(NewReducer(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(ctx, w, r, "user-1", r.URL.Query().Get("report_id"))
	}))
	t.Cleanup(func() {
		cancel()
		hub.Close()
		srv.Close()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readDelta(t *testing.T, conn *websocket.Conn) Delta {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var d Delta
	require.NoError(t, conn.ReadJSON(&d))
	return d
}

func TestHubBroadcastsAppliedDeltas(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	first := delta(OpInsert, "r1", 0, `{"status":"pending"}`)
	assert.True(t, hub.Publish(first))
	assert.False(t, hub.Publish(first), "duplicate is not re-sent")

	second := delta(OpUpdate, "r1", time.Second, `{"status":"received"}`)
	assert.True(t, hub.Publish(second))

	got := readDelta(t, conn)
	assert.Equal(t, OpInsert, got.Op)
	got = readDelta(t, conn)
	assert.Equal(t, OpUpdate, got.Op)
	assert.JSONEq(t, `{"status":"received"}`, string(got.Record))
}

func TestHubFiltersByReport(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url+"?report_id=r2")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(delta(OpUpdate, "r1", 0, `{}`))
	hub.Publish(Delta{Op: OpInsert, Table: "report_history", ID: "h9", ReportID: "r1", TS: t0})
	hub.Publish(Delta{Op: OpInsert, Table: "report_history", ID: "h1", ReportID: "r2", TS: t0})
	hub.Publish(delta(OpUpdate, "r2", time.Second, `{}`))

	got := readDelta(t, conn)
	assert.Equal(t, "h1", got.ID)
	got = readDelta(t, conn)
	assert.Equal(t, "r2", got.ID)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	hub := NewHub(NewReducer(), logger)

	slow := &Subscriber{UserID: "slow", send: make(chan Delta, 1), hub: hub}
	hub.register(slow)

	assert.True(t, hub.Publish(delta(OpInsert, "a", 0, `{}`)))
	assert.True(t, hub.Publish(delta(OpInsert, "b", 0, `{}`)))
	assert.Equal(t, 0, hub.Count())

	_, open := <-slow.send
	assert.True(t, open, "buffered delta is still readable")
	_, open = <-slow.send
	assert.False(t, open)
}
