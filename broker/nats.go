package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

const natsSubjectPrefix = "estore."

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func (p *NATSPublisher) Publish(_ context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	if err := p.conn.Publish(Subject(env.EventType), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", env.EventType, err)
	}
	return nil
}

// Close 只 flush，連線由呼叫端管理
func (p *NATSPublisher) Close() error {
	return p.conn.Flush()
}

func Subject(eventType EventType) string {
	return natsSubjectPrefix + string(eventType)
}
