// Package events emits operational events (dataset refreshes, feed
// state changes) to NATS for consumption by the site's admin surfaces.
// Publishing is best-effort: a nil *Publisher is valid and drops
// everything, and publish errors are logged, never propagated.
package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	TypeStaticRefreshed     = "static.refreshed"
	TypeStaticRefreshFailed = "static.refresh_failed"
	TypeFeedUpdated         = "feed.updated"
	TypeFeedFailed          = "feed.failed"
	TypeFeedDegraded        = "feed.degraded"
)

// Event is the wire form of one operational event.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

type Publisher struct {
	nc      *nats.Conn
	subject string
}

// Connect dials NATS and returns a publisher. An empty URL disables
// publishing and returns (nil, nil).
func Connect(url, subject string) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("arrivals"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, subject: subject}, nil
}

func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Drain()
	p.nc.Close()
}

// Publish emits one event. Safe to call on a nil publisher.
func (p *Publisher) Publish(eventType, detail string) {
	if p == nil || p.nc == nil {
		return
	}
	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("event marshal failed: %v", err)
		return
	}
	if err := p.nc.Publish(p.subject+"."+eventType, b); err != nil {
		log.Printf("event publish failed: %v", err)
	}
}
