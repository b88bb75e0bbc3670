package trigger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"stockalert/internal/config"
	"stockalert/internal/domain"
	"stockalert/test/testutil"

	"github.com/nats-io/nats.go"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls [][]domain.ConditionKind
	done  chan struct{}
}

func (r *recordingRunner) RunCycle(_ context.Context, kinds ...domain.ConditionKind) domain.CycleCounts {
	r.mu.Lock()
	r.calls = append(r.calls, kinds)
	r.mu.Unlock()
	r.done <- struct{}{}
	return domain.CycleCounts{}
}

func TestNATSSubscriberRunsRequestedCycles(t *testing.T) {
	url, stop := testutil.StartLocalNATSServer(t)
	defer stop()

	cfg := config.TriggerConfig{
		Enabled:      true,
		Stream:       "CHECKS_TEST",
		Subject:      "checks.test.run",
		ConsumerName: "checks-test",
		DeliverGroup: "checks-workers",
		AckWaitSec:   30,
		NackDelayMS:  100,
		MaxDeliver:   3,
	}
	runner := &recordingRunner{done: make(chan struct{}, 4)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	subscriber, err := NewNATSSubscriber(config.NATSConfig{URL: []string{url}}, cfg, runner, logger)
	if err != nil {
		t.Fatalf("new subscriber: %v", err)
	}
	defer subscriber.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}

	for _, payload := range []string{`not json`, `{"kinds":["expiry"],"requested_by":"test"}`, ``} {
		if _, err := js.Publish(cfg.Subject, []byte(payload)); err != nil {
			t.Fatalf("publish %q: %v", payload, err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case <-runner.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for cycle %d", i+1)
		}
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 2 {
		t.Fatalf("invalid payload must be dropped, got calls %v", runner.calls)
	}
	if len(runner.calls[0]) != 1 || runner.calls[0][0] != domain.KindExpiry {
		t.Fatalf("unexpected first cycle kinds %v", runner.calls[0])
	}
	if len(runner.calls[1]) != len(domain.AllKinds()) {
		t.Fatalf("empty request must run every kind, got %v", runner.calls[1])
	}
}
