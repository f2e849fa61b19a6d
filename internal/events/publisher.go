// Package events publishes engine changes to NATS for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"papertrader/internal/engine"
	"papertrader/types"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// Subjects follow the pattern {prefix}.fills.{SYMBOL}, {prefix}.equity and
// {prefix}.reset.
const (
	fillsSubject  = "fills"
	equitySubject = "equity"
	resetSubject  = "reset"
)

type natsConn interface {
	Publish(subj string, data []byte) error
}

type FillMessage struct {
	AccountID   string            `json:"account_id"`
	Transaction types.Transaction `json:"transaction"`
}

type EquityMessage struct {
	AccountID string               `json:"account_id"`
	Snapshot  types.EquitySnapshot `json:"snapshot"`
}

type ResetMessage struct {
	AccountID string    `json:"account_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is an engine listener. Rejected orders are not published.
// Publish failures are logged and never block the engine.
type Publisher struct {
	conn   natsConn
	prefix string
	logger *zap.Logger
}

func NewPublisher(conn natsConn, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Connect dials NATS and returns a publisher on that connection. Close the
// returned connection when done.
func Connect(url, prefix string, logger *zap.Logger) (*Publisher, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("papertrader"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewPublisher(nc, prefix, logger), nc, nil
}

// EnsureStream creates (or updates) a JetStream stream capturing every
// subject under prefix, so consumers can replay history.
func EnsureStream(ctx context.Context, nc *nats.Conn, prefix string) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName(prefix),
		Subjects:  []string{prefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	return nil
}

func (p *Publisher) OnEvent(ev engine.Event) {
	var (
		subject string
		payload any
	)
	switch ev.Kind {
	case engine.EventOrder:
		if ev.Order == nil || !ev.Order.Success || ev.Order.Transaction == nil {
			return
		}
		subject = p.subject(fillsSubject, ev.Order.Symbol)
		payload = FillMessage{AccountID: ev.AccountID, Transaction: *ev.Order.Transaction}
	case engine.EventEquity:
		if ev.Equity == nil {
			return
		}
		subject = p.subject(equitySubject)
		payload = EquityMessage{AccountID: ev.AccountID, Snapshot: *ev.Equity}
	case engine.EventReset:
		subject = p.subject(resetSubject)
		payload = ResetMessage{AccountID: ev.AccountID, Timestamp: ev.Time}
	default:
		return
	}

	if err := p.publish(subject, payload); err != nil {
		p.logger.Warn("event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

func (p *Publisher) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.conn.Publish(subject, data)
}

func (p *Publisher) subject(parts ...string) string {
	s := p.prefix
	for _, part := range parts {
		s += "." + part
	}
	return s
}

func streamName(prefix string) string {
	out := make([]rune, 0, len(prefix))
	for _, r := range prefix {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r-'a'+'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out) + "_EVENTS"
}
