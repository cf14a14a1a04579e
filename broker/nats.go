package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS publishes on subject "<prefix>.<key>".
type NATS struct {
	nc     *nats.Conn
	prefix string
}

func NewNATS(url, prefix string) (*NATS, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("eventhub"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATS{nc: nc, prefix: prefix}, nil
}

func (p *NATS) subject(key string) string {
	if p.prefix == "" {
		return key
	}
	return p.prefix + "." + key
}

func (p *NATS) Publish(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.nc.IsConnected() {
		return nats.ErrConnectionClosed
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject(key), b)
}

// Close flushes pending messages before closing the connection.
func (p *NATS) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	return err
}
