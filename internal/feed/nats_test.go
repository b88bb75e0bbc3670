package feed

import (
	"context"
	"testing"
	"time"

	"stockalert/internal/config"
	"stockalert/internal/domain"
	"stockalert/test/testutil"

	"github.com/nats-io/nats.go"
)

func TestNATSPublisherDeduplicatesEvents(t *testing.T) {
	url, stop := testutil.StartLocalNATSServer(t)
	defer stop()

	cfg := config.FeedConfig{Enabled: true, Stream: "FEED_TEST", Subject: "feed.test", MaxAgeSec: 3600}
	publisher, err := NewNATSPublisher(config.NATSConfig{URL: []string{url}}, cfg)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer publisher.Close()

	event := NewEvent(
		domain.Notification{ID: "n1", Kind: domain.KindOutOfStock, ProductID: "p1", CreatedAt: time.Now()},
		domain.Product{ID: "p1", Name: "Milk"},
		domain.DeliveryResult{EmailSent: true},
		time.Now(),
	)
	for i := 0; i < 2; i++ {
		if err := publisher.Publish(context.Background(), event); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	info, err := js.StreamInfo(cfg.Stream)
	if err != nil {
		t.Fatalf("stream info: %v", err)
	}
	if info.State.Msgs != 1 {
		t.Fatalf("expected duplicate publish to be dropped, got %d messages", info.State.Msgs)
	}

	reopened, err := NewNATSPublisher(config.NATSConfig{URL: []string{url}}, cfg)
	if err != nil {
		t.Fatalf("reopening existing stream must succeed: %v", err)
	}
	_ = reopened.Close()
}
