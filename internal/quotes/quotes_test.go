package quotes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	s := NewStatic(map[string]decimal.Decimal{"aapl": decimal.NewFromInt(100)})
	s.Set(" msft ", decimal.NewFromInt(400))

	got, err := s.Quotes(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got["AAPL"].Equal(decimal.NewFromInt(100)))
	assert.True(t, got["MSFT"].Equal(decimal.NewFromInt(400)))

	// callers get a copy
	got["AAPL"] = decimal.Zero
	again, _ := s.Quotes(context.Background())
	assert.True(t, again["AAPL"].Equal(decimal.NewFromInt(100)))
}

func TestStreamAppliesQuoteMessages(t *testing.T) {
	subscribed := make(chan subscriptionMessage, 1)
	srv := newFeedServer(t, func(conn *websocket.Conn) {
		var sub subscriptionMessage
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub

		msgs := []string{
			`{"channel":"heartbeat"}`,
			`not json`,
			`{"channel":"quotes","data":{"prices":{"aapl":"187.25","MSFT":"bad","TSLA":"0"}}}`,
			`{"channel":"quotes","data":{"prices":{"MSFT":"410.5"}}}`,
		}
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// hold the connection open until the client goes away
		conn.ReadMessage()
	})

	s := NewStream(wsURL(srv), []string{"aapl", "msft"}, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case sub := <-subscribed:
		assert.Equal(t, "subscribe", sub.Method)
		assert.Equal(t, "quotes", sub.Subscription["type"])
		assert.ElementsMatch(t, []any{"AAPL", "MSFT"}, sub.Subscription["symbols"])
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription received")
	}

	assert.Eventually(t, func() bool {
		q, _ := s.Quotes(context.Background())
		return len(q) == 2
	}, 2*time.Second, 10*time.Millisecond)

	q, err := s.Quotes(context.Background())
	require.NoError(t, err)
	assert.True(t, q["AAPL"].Equal(decimal.RequireFromString("187.25")))
	assert.True(t, q["MSFT"].Equal(decimal.RequireFromString("410.5")))
	_, hasTSLA := q["TSLA"]
	assert.False(t, hasTSLA)
	assert.False(t, s.UpdatedAt().IsZero())
}

func TestStreamDialError(t *testing.T) {
	s := NewStream("ws://127.0.0.1:1/quotes", nil, nil)
	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "dial quote feed")
}

func TestPollerTracksOnInterval(t *testing.T) {
	tracker := &recordingTracker{}
	source := NewStatic(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(10)})
	p := NewPoller(source, tracker, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return tracker.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	first := tracker.first()
	assert.True(t, first["AAPL"].Equal(decimal.NewFromInt(10)))
}

func TestPollerSkipsFailedFetch(t *testing.T) {
	tracker := &recordingTracker{}
	p := NewPoller(failingSource{}, tracker, time.Hour, nil)

	p.poll(context.Background())
	assert.Equal(t, 0, tracker.count())
}

func TestNewPollerDefaultsInterval(t *testing.T) {
	p := NewPoller(NewStatic(nil), &recordingTracker{}, 0, nil)
	assert.Equal(t, DefaultPollInterval, p.interval)
}

// Helper functions

func newFeedServer(t *testing.T, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type recordingTracker struct {
	mu    sync.Mutex
	calls []map[string]decimal.Decimal
}

func (r *recordingTracker) TrackPortfolioValue(prices map[string]decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, prices)
}

func (r *recordingTracker) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingTracker) first() map[string]decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[0]
}

type failingSource struct{}

func (failingSource) Quotes(context.Context) (map[string]decimal.Decimal, error) {
	return nil, errors.New("feed down")
}
