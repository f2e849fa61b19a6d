package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"papertrader/types"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	quotesChannel     = "quotes"
	readTimeout       = 60 * time.Second
	maxReconnects     = 10
	reconnectBaseWait = 500 * time.Millisecond
)

var ErrStreamClosed = errors.New("quote stream closed")

type subscriptionMessage struct {
	Method       string         `json:"method"`
	Subscription map[string]any `json:"subscription"`
}

// QuotesMessage is a price update pushed by the feed:
// {"channel":"quotes","data":{"prices":{"AAPL":"187.25"}}}
type QuotesMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Prices map[string]string `json:"prices"`
	} `json:"data"`
}

// Stream keeps the latest price per symbol from a websocket feed.
type Stream struct {
	url     string
	symbols []string
	dialer  *websocket.Dialer
	logger  *zap.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	prices    map[string]decimal.Decimal
	updatedAt time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStream returns a stream for url that subscribes to symbols once
// connected. With no symbols the feed decides what to send.
func NewStream(url string, symbols []string, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	norm := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm = append(norm, types.NormalizeSymbol(s))
	}
	return &Stream{
		url:     url,
		symbols: norm,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		logger: logger.With(zap.String("feed", url)),
		prices: make(map[string]decimal.Decimal),
	}
}

// Start connects and begins reading in the background until ctx is done or
// Stop is called.
func (s *Stream) Start(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.readLoop(ctx)
	return nil
}

func (s *Stream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConn()
	s.wg.Wait()
}

func (s *Stream) Quotes(context.Context) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyPrices(s.prices), nil
}

// UpdatedAt is the time of the last applied price update.
func (s *Stream) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

func (s *Stream) connect(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial quote feed: %w", err)
	}
	if len(s.symbols) > 0 {
		msg := subscriptionMessage{
			Method: "subscribe",
			Subscription: map[string]any{
				"type":    quotesChannel,
				"symbols": s.symbols,
			},
		}
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.logger.Info("quote feed connected", zap.Strings("symbols", s.symbols))
	return nil
}

func (s *Stream) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Stream) readLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("quote feed read failed", zap.Error(err))
			if err := s.reconnect(ctx); err != nil {
				s.logger.Error("quote feed lost", zap.Error(err))
				return
			}
			continue
		}

		if messageType == websocket.TextMessage {
			s.processMessage(data)
		}
	}
}

func (s *Stream) reconnect(ctx context.Context) error {
	s.closeConn()
	wait := reconnectBaseWait
	for attempt := 1; attempt <= maxReconnects; attempt++ {
		select {
		case <-ctx.Done():
			return ErrStreamClosed
		case <-time.After(wait):
		}
		err := s.connect(ctx)
		if err == nil {
			return nil
		}
		s.logger.Warn("quote feed reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
		if wait < 30*time.Second {
			wait *= 2
		}
	}
	return fmt.Errorf("maximum reconnection attempts reached (%d)", maxReconnects)
}

func (s *Stream) processMessage(data []byte) {
	var msg QuotesMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Channel != quotesChannel {
		s.logger.Debug("ignoring feed message", zap.ByteString("data", data))
		return
	}

	updates := make(map[string]decimal.Decimal, len(msg.Data.Prices))
	for sym, raw := range msg.Data.Prices {
		p, err := decimal.NewFromString(raw)
		if err != nil || !p.IsPositive() {
			s.logger.Warn("invalid quote", zap.String("symbol", sym), zap.String("price", raw))
			continue
		}
		updates[types.NormalizeSymbol(sym)] = p
	}
	if len(updates) == 0 {
		return
	}

	s.mu.Lock()
	for sym, p := range updates {
		s.prices[sym] = p
	}
	s.updatedAt = time.Now()
	s.mu.Unlock()
}
