package broker

import "context"

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Noop 不發布任何事件
type Noop struct{}

func (Noop) Publish(context.Context, Envelope) error { return nil }

func (Noop) Close() error { return nil }
