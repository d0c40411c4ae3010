package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestConnectEmptyURLDisables(t *testing.T) {
	p, err := Connect("", "arrivals.events")
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Fatal("expected a nil publisher for an empty URL")
	}
}

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	p.Publish(TypeFeedDegraded, "3 consecutive failures")
	p.Close()
}

func TestEventEncoding(t *testing.T) {
	ev := Event{
		ID:        "e-1",
		Type:      TypeStaticRefreshed,
		Timestamp: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Event
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != "static.refreshed" || !decoded.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
	if decoded.Detail != "" {
		t.Errorf("empty detail must be omitted, got %q", decoded.Detail)
	}
}
