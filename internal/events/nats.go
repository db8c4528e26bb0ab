package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"carlot/internal/domain"
)

const (
	DefaultSubjectPrefix = "carlot.listings"

	connectWait   = 5 * time.Second
	maxReconnects = 5
	reconnectWait = 2 * time.Second
)

// Publisher emits listing events as JSON messages on
// <prefix>.created, <prefix>.updated and <prefix>.deleted.
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

func Connect(url, prefix string, log *logrus.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("carlot listing events"),
		nats.Timeout(connectWait),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return NewPublisher(conn, prefix), nil
}

func NewPublisher(conn *nats.Conn, prefix string) *Publisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: prefix}
}

func (p *Publisher) Publish(_ context.Context, event domain.ListingEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode listing event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return fmt.Errorf("publish listing event: %w", err)
	}
	return nil
}

func (p *Publisher) Subject(t domain.EventType) string {
	return p.prefix + "." + string(t)
}

// Close flushes buffered messages and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
