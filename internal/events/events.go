// Package events publishes import notifications.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fleetops/fleetops/internal/model"
)

// ImportCompleted is emitted after a successful import.
type ImportCompleted struct {
	CompanyUUID string           `json:"company_uuid"`
	Kind        model.EntityKind `json:"kind"`
	Files       []string         `json:"files"`
	Count       int              `json:"count"`
	Persisted   int64            `json:"persisted"`
	Warnings    int              `json:"warnings"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Publisher delivers import events.
type Publisher interface {
	PublishImport(ctx context.Context, ev ImportCompleted) error
}

// Nop drops every event.
type Nop struct{}

// PublishImport implements Publisher.
func (Nop) PublishImport(context.Context, ImportCompleted) error { return nil }

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSPublisher publishes JSON events with the trace context in the message
// headers.
type NATSPublisher struct {
	conn    Conn
	subject string
}

// NewNATSPublisher publishes on subject over conn.
func NewNATSPublisher(conn Conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

// Connect dials url and returns a publisher plus the connection to close.
func Connect(url, subject string) (*NATSPublisher, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("fleetops"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				zap.L().Warn("events: nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, nil, eris.Wrap(err, "events: connect nats")
	}
	return NewNATSPublisher(nc, subject), nc, nil
}

// PublishImport implements Publisher.
func (p *NATSPublisher) PublishImport(ctx context.Context, ev ImportCompleted) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "events: marshal import event")
	}
	msg := &nats.Msg{Subject: p.subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	if err := p.conn.PublishMsg(msg); err != nil {
		return eris.Wrapf(err, "events: publish %s", p.subject)
	}
	return nil
}

// headerCarrier adapts nats.Msg headers to a TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}
